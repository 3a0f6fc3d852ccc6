package workflow_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/anonymity"
	"github.com/l3montree-dev/procurio/internal/core/budget"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/core/workflow"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/l3montree-dev/procurio/internal/testutils"
	"github.com/l3montree-dev/procurio/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	engine     *workflow.Engine
	ledger     *budget.Ledger
	rfqs       *testutils.FakeRFQRepository
	quotes     *testutils.FakeQuoteRepository
	orders     *testutils.FakeOrderRepository
	contracts  *testutils.FakeContractRepository
	deliveries *testutils.FakeDeliveryEventRepository
	projects   *testutils.FakeProjectRepository
	invoices   *testutils.FakeInvoiceRepository
	exceptions *testutils.FakeBudgetExceptionRepository
	outbox     *testutils.FakeOutboxRepository
	publisher  *testutils.CapturingPublisher

	project  models.Project
	buyer    core.Scope
	manager  core.Scope
	approver core.Scope
}

func newTestEnv(t *testing.T, plannedBudget decimal.Decimal, enforced bool) *testEnv {
	t.Helper()

	rbac, err := accesscontrol.NewCasbinRBAC()
	require.NoError(t, err)

	env := &testEnv{
		rfqs:       testutils.NewFakeRFQRepository(),
		quotes:     testutils.NewFakeQuoteRepository(),
		orders:     testutils.NewFakeOrderRepository(),
		contracts:  testutils.NewFakeContractRepository(),
		deliveries: testutils.NewFakeDeliveryEventRepository(),
		projects:   testutils.NewFakeProjectRepository(),
		invoices:   testutils.NewFakeInvoiceRepository(),
		exceptions: testutils.NewFakeBudgetExceptionRepository(),
		outbox:     testutils.NewFakeOutboxRepository(),
		publisher:  testutils.NewCapturingPublisher(),
	}

	recorder := events.NewRecorder(env.outbox, env.publisher)
	env.ledger = budget.NewLedger(env.projects, env.orders, env.invoices, env.exceptions, recorder, rbac)
	guard := anonymity.NewGuard(testutils.NewFakeRevealAuditRepository(), recorder, rbac)
	env.engine = workflow.NewEngine(env.rfqs, env.quotes, env.orders, env.contracts, env.deliveries, env.ledger, recorder, guard, rbac)

	env.project = env.projects.Put(models.Project{
		Name:           "plant-expansion",
		Slug:           "plant-expansion",
		CustomerOrgID:  uuid.New(),
		PlannedBudget:  plannedBudget,
		Currency:       "EUR",
		BudgetEnforced: enforced,
		Active:         true,
	})

	env.buyer = core.NewScope(env.project.CustomerOrgID, env.project.ID, "buyer-1", core.RoleBuyer)
	env.manager = core.NewScope(env.project.CustomerOrgID, env.project.ID, "manager-1", core.RoleProcurementManager)
	env.approver = core.NewScope(env.project.CustomerOrgID, env.project.ID, "approver-1", core.RoleApprover)
	return env
}

func (env *testEnv) supplierScope(orgID uuid.UUID) core.Scope {
	return core.NewScope(orgID, env.project.ID, "supplier-user", core.RoleSupplier)
}

// TestFullProcurementLifecycle walks one RFQ from draft to a completed
// order, covering second chance, anonymity and the budget gate.
func TestFullProcurementLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(80), true)

	supplierA := uuid.New()
	supplierB := uuid.New()

	rfq, err := env.engine.CreateRFQ(ctx, env.manager, workflow.CreateRFQPayload{
		Title:          "200 hydraulic pumps",
		Description:    "delivery to plant 2",
		SupplierOrgIDs: []uuid.UUID{supplierA, supplierB},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusDraft, rfq.Status)

	rfq, err = env.engine.PublishRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusBidding, rfq.Status)

	quoteA1, err := env.engine.SubmitQuote(ctx, env.supplierScope(supplierA), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(100),
		Note:        "questions? reach us at sales@pumps-a.example",
		Items: []workflow.QuoteItemPayload{
			{Description: "hydraulic pump", Quantity: 200, UnitPrice: decimal.RequireFromString("0.5")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, quoteA1.RevisionNo)

	_, err = env.engine.SubmitQuote(ctx, env.supplierScope(supplierB), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(120),
	})
	require.NoError(t, err)

	t.Run("quotes are anonymous before award", func(t *testing.T) {
		views, err := env.engine.ListQuotes(env.buyer, rfq.ID)
		require.NoError(t, err)
		require.Len(t, views, 2)
		for _, view := range views {
			assert.Nil(t, view.SupplierOrgID)
			assert.False(t, view.Revealed)
			assert.NotContains(t, view.Note, "sales@pumps-a.example")
		}

		// a supplier always sees its own quote
		own, err := env.engine.ListQuotes(env.supplierScope(supplierA), rfq.ID)
		require.NoError(t, err)
		require.Len(t, own, 2)
		for _, view := range own {
			if view.ID == quoteA1.ID {
				require.NotNil(t, view.SupplierOrgID)
				assert.Equal(t, supplierA, *view.SupplierOrgID)
			}
		}
	})

	t.Run("a buyer cannot award", func(t *testing.T) {
		_, err := env.engine.AwardRFQ(ctx, env.buyer, rfq.ID, workflow.AwardRFQPayload{QuoteID: quoteA1.ID})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeForbidden))
	})

	rfq, err = env.engine.TriggerSecondChance(ctx, env.manager, rfq.ID, workflow.SecondChancePayload{
		Deadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusSecondChance, rfq.Status)
	assert.True(t, rfq.SecondChanceUsed)

	t.Run("every bidding supplier gets one extra revision slot", func(t *testing.T) {
		var payload map[string]any
		for _, row := range env.outbox.Rows {
			if row.EventType == string(events.RFQSecondChanceOpened) {
				require.NoError(t, json.Unmarshal(row.Payload, &payload))
			}
		}
		require.NotNil(t, payload)
		assert.EqualValues(t, 2, payload["eligibleSuppliers"])
	})

	t.Run("the second chance is single use", func(t *testing.T) {
		_, err := env.engine.TriggerSecondChance(ctx, env.manager, rfq.ID, workflow.SecondChancePayload{
			Deadline: time.Now().Add(time.Hour),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	quoteA2, err := env.engine.SubmitQuote(ctx, env.supplierScope(supplierA), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(90),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, quoteA2.RevisionNo)

	t.Run("the extra revision slot is also single use", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(supplierA), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(85),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	order, err := env.engine.AwardRFQ(ctx, env.manager, rfq.ID, workflow.AwardRFQPayload{
		QuoteID:          quoteA2.ID,
		RequiresContract: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingSignature, order.Status)
	assert.Equal(t, quoteA2.ID, order.AcceptedQuoteID)
	assert.True(t, decimal.NewFromInt(90).Equal(order.TotalAmount))

	t.Run("award rejects every other open quote", func(t *testing.T) {
		accepted, err := env.quotes.GetByID(nil, env.manager, quoteA2.ID)
		require.NoError(t, err)
		assert.Equal(t, models.QuoteStatusAccepted, accepted.Status)

		rejected, err := env.quotes.GetByID(nil, env.manager, quoteA1.ID)
		require.NoError(t, err)
		assert.Equal(t, models.QuoteStatusRejected, rejected.Status)
	})

	t.Run("no quotes after award", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(supplierB), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(80),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	t.Run("signing requires a signed contract", func(t *testing.T) {
		_, err := env.engine.SignOrder(ctx, env.manager, order.ID, workflow.SignOrderPayload{})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))

		unsigned := env.contracts.Put(models.Contract{ProjectID: env.project.ID, OrderID: order.ID})
		_, err = env.engine.SignOrder(ctx, env.manager, order.ID, workflow.SignOrderPayload{ContractID: &unsigned.ID})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	contract := env.contracts.Put(models.Contract{
		ProjectID: env.project.ID,
		OrderID:   order.ID,
		SignedAt:  utils.Ptr(time.Now()),
	})
	order, err = env.engine.SignOrder(ctx, env.manager, order.ID, workflow.SignOrderPayload{ContractID: &contract.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusSigned, order.Status)

	t.Run("signing reveals the accepted quote only", func(t *testing.T) {
		views, err := env.engine.ListQuotes(env.buyer, rfq.ID)
		require.NoError(t, err)
		for _, view := range views {
			if view.ID == quoteA2.ID {
				require.NotNil(t, view.SupplierOrgID)
				assert.Equal(t, supplierA, *view.SupplierOrgID)
				assert.True(t, view.Revealed)
			} else {
				assert.Nil(t, view.SupplierOrgID)
			}
		}
	})

	t.Run("release is blocked while over budget", func(t *testing.T) {
		_, err := env.engine.ReleaseOrder(ctx, env.manager, order.ID)
		require.Error(t, err)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeBudgetExceeded))
	})

	exception, err := env.ledger.RequestException(ctx, env.manager, budget.RequestExceptionPayload{
		RequestedAmount: decimal.NewFromInt(20),
		Reason:          "price increase on raw material",
	})
	require.NoError(t, err)
	_, err = env.ledger.ApproveException(ctx, env.approver, exception.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	order, err = env.engine.ReleaseOrder(ctx, env.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReleased, order.Status)

	t.Run("a released order pins the rfq", func(t *testing.T) {
		_, err := env.engine.CancelRFQ(ctx, env.manager, rfq.ID)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))

		_, err = env.engine.CancelOrder(ctx, env.manager, order.ID)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	t.Run("delivery milestones are sequential", func(t *testing.T) {
		_, err := env.engine.RecordDelivery(ctx, env.manager, order.ID, workflow.DeliveryPayload{})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	order, err = env.engine.StartDelivery(ctx, env.manager, order.ID, workflow.DeliveryPayload{Note: "left the warehouse"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInDelivery, order.Status)

	order, err = env.engine.RecordDelivery(ctx, env.manager, order.ID, workflow.DeliveryPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)

	order, err = env.engine.CompleteOrder(ctx, env.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	rfq, err = env.rfqs.GetByID(nil, env.manager, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusClosed, rfq.Status)

	t.Run("every transition left a published outbox event", func(t *testing.T) {
		assert.Equal(t, 0, env.outbox.Unpublished())
		types := env.publisher.Types()
		for _, expected := range []events.EventType{
			events.RFQCreated, events.RFQPublished, events.RFQBiddingOpened,
			events.QuoteSubmitted, events.RFQSecondChanceOpened,
			events.RFQAwarded, events.OrderCreated, events.OrderSigned,
			events.BudgetExceptionRequested, events.BudgetExceptionApproved,
			events.OrderReleased, events.OrderDeliveryStarted, events.OrderDelivered,
			events.RFQClosed, events.OrderCompleted,
		} {
			assert.Contains(t, types, expected, string(expected))
		}
	})
}

func TestPublishRequiresTargetSuppliers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	rfq, err := env.engine.CreateRFQ(ctx, env.buyer, workflow.CreateRFQPayload{Title: "office chairs"})
	require.NoError(t, err)

	_, err = env.engine.PublishRFQ(ctx, env.buyer, rfq.ID)
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
}

func TestSubmitQuoteGuards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	targeted := uuid.New()
	rfq, err := env.engine.CreateRFQ(ctx, env.buyer, workflow.CreateRFQPayload{
		Title:          "steel beams",
		SupplierOrgIDs: []uuid.UUID{targeted},
	})
	require.NoError(t, err)

	t.Run("no quotes on a draft", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(targeted), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(10),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	_, err = env.engine.PublishRFQ(ctx, env.buyer, rfq.ID)
	require.NoError(t, err)

	t.Run("only targeted suppliers may bid", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(uuid.New()), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(10),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeForbidden))
	})

	t.Run("one revision during bidding", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(targeted), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(10),
		})
		require.NoError(t, err)

		_, err = env.engine.SubmitQuote(ctx, env.supplierScope(targeted), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(9),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	t.Run("amounts must be positive", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(targeted), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(-5),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeValidationFailed))
	})
}

func TestSecondChanceRequiresInitialQuote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	bidder := uuid.New()
	silent := uuid.New()
	rfq, err := env.engine.CreateRFQ(ctx, env.manager, workflow.CreateRFQPayload{
		Title:          "cabling",
		SupplierOrgIDs: []uuid.UUID{bidder, silent},
	})
	require.NoError(t, err)
	_, err = env.engine.PublishRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)

	_, err = env.engine.SubmitQuote(ctx, env.supplierScope(bidder), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	_, err = env.engine.TriggerSecondChance(ctx, env.manager, rfq.ID, workflow.SecondChancePayload{
		Deadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// a supplier that never bid gets no slot from the window
	_, err = env.engine.SubmitQuote(ctx, env.supplierScope(silent), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(45),
	})
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
}

func TestCloseSecondChance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	bidder := uuid.New()
	rfq, err := env.engine.CreateRFQ(ctx, env.manager, workflow.CreateRFQPayload{
		Title:          "fasteners",
		SupplierOrgIDs: []uuid.UUID{bidder},
	})
	require.NoError(t, err)
	_, err = env.engine.PublishRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	_, err = env.engine.SubmitQuote(ctx, env.supplierScope(bidder), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	_, err = env.engine.TriggerSecondChance(ctx, env.manager, rfq.ID, workflow.SecondChancePayload{
		Deadline: time.Now().Add(20 * time.Millisecond),
	})
	require.NoError(t, err)

	t.Run("cannot close while the window is open", func(t *testing.T) {
		_, err := env.engine.CloseSecondChance(ctx, env.manager, rfq.ID)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})

	time.Sleep(30 * time.Millisecond)

	rfq, err = env.engine.CloseSecondChance(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusBidding, rfq.Status)

	t.Run("late submissions are rejected after the deadline", func(t *testing.T) {
		_, err := env.engine.SubmitQuote(ctx, env.supplierScope(bidder), rfq.ID, workflow.SubmitQuotePayload{
			TotalAmount: decimal.NewFromInt(9),
		})
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeInvalidStateTransition))
	})
}

func TestCancelRFQCancelsPendingOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	bidder := uuid.New()
	rfq, err := env.engine.CreateRFQ(ctx, env.manager, workflow.CreateRFQPayload{
		Title:          "packaging",
		SupplierOrgIDs: []uuid.UUID{bidder},
	})
	require.NoError(t, err)
	_, err = env.engine.PublishRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	quote, err := env.engine.SubmitQuote(ctx, env.supplierScope(bidder), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	order, err := env.engine.AwardRFQ(ctx, env.manager, rfq.ID, workflow.AwardRFQPayload{QuoteID: quote.ID})
	require.NoError(t, err)

	rfq, err = env.engine.CancelRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RFQStatusCancelled, rfq.Status)

	order, err = env.orders.GetByID(nil, env.manager, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestScopeIsolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1000), true)

	rfq, err := env.engine.CreateRFQ(ctx, env.buyer, workflow.CreateRFQPayload{Title: "tooling"})
	require.NoError(t, err)

	foreign := core.NewScope(uuid.New(), uuid.New(), "intruder", core.RoleProcurementManager)
	_, err = env.engine.PublishRFQ(ctx, foreign, rfq.ID)
	// an id outside the caller's project reads as missing, not as forbidden
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeNotFound))
}

func TestBudgetNotEnforced(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, decimal.NewFromInt(1), false)

	bidder := uuid.New()
	rfq, err := env.engine.CreateRFQ(ctx, env.manager, workflow.CreateRFQPayload{
		Title:          "consulting",
		SupplierOrgIDs: []uuid.UUID{bidder},
	})
	require.NoError(t, err)
	_, err = env.engine.PublishRFQ(ctx, env.manager, rfq.ID)
	require.NoError(t, err)
	quote, err := env.engine.SubmitQuote(ctx, env.supplierScope(bidder), rfq.ID, workflow.SubmitQuotePayload{
		TotalAmount: decimal.NewFromInt(100000),
	})
	require.NoError(t, err)
	order, err := env.engine.AwardRFQ(ctx, env.manager, rfq.ID, workflow.AwardRFQPayload{QuoteID: quote.ID})
	require.NoError(t, err)
	_, err = env.engine.SignOrder(ctx, env.manager, order.ID, workflow.SignOrderPayload{})
	require.NoError(t, err)

	// the planned budget is decorative when enforcement is off
	_, err = env.engine.ReleaseOrder(ctx, env.manager, order.ID)
	require.NoError(t, err)
}
