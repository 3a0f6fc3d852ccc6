package anonymity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/anonymity"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/l3montree-dev/procurio/internal/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardEnv(t *testing.T) (*anonymity.Guard, *testutils.FakeRevealAuditRepository, *testutils.FakeOutboxRepository) {
	t.Helper()
	rbac, err := accesscontrol.NewCasbinRBAC()
	require.NoError(t, err)
	audits := testutils.NewFakeRevealAuditRepository()
	outbox := testutils.NewFakeOutboxRepository()
	recorder := events.NewRecorder(outbox, testutils.NewCapturingPublisher())
	return anonymity.NewGuard(audits, recorder, rbac), audits, outbox
}

func newQuote(supplierOrgID uuid.UUID) models.Quote {
	quote := models.Quote{
		RFQID:         uuid.New(),
		SupplierOrgID: supplierOrgID,
		RevisionNo:    1,
		Status:        models.QuoteStatusSubmitted,
		TotalAmount:   decimal.NewFromInt(100),
		SubmittedAt:   time.Now(),
		Note:          "call us at +49 30 1234567 or mail bids@supplier.example",
		DeliveryTerms: "details at https://supplier.example/terms",
	}
	quote.ID = uuid.New()
	return quote
}

func TestScrub(t *testing.T) {
	assert.NotContains(t, anonymity.Scrub("mail me: jane.doe@acme-parts.io"), "jane.doe@acme-parts.io")
	assert.NotContains(t, anonymity.Scrub("hotline +49 (0)30 555-1234 please"), "555-1234")
	assert.NotContains(t, anonymity.Scrub("see https://acme-parts.io/catalog"), "acme-parts.io")
	assert.Equal(t, "plain delivery in 14 days", anonymity.Scrub("plain delivery in 14 days"))
}

func TestMask(t *testing.T) {
	projectID := uuid.New()
	supplierOrg := uuid.New()
	quote := newQuote(supplierOrg)
	buyer := core.NewScope(uuid.New(), projectID, "buyer-1", core.RoleBuyer)

	guard, _, _ := newGuardEnv(t)

	t.Run("masks identity before award", func(t *testing.T) {
		view := guard.Mask(buyer, nil, quote)
		assert.Nil(t, view.SupplierOrgID)
		assert.False(t, view.Revealed)
		assert.NotContains(t, view.Note, "bids@supplier.example")
		assert.NotContains(t, view.DeliveryTerms, "supplier.example/terms")
		assert.True(t, quote.TotalAmount.Equal(view.TotalAmount))
	})

	t.Run("does not mutate the quote itself", func(t *testing.T) {
		guard.Mask(buyer, nil, quote)
		assert.Contains(t, quote.Note, "bids@supplier.example")
	})

	t.Run("keeps masking while the order is pending", func(t *testing.T) {
		order := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusPendingSignature}
		view := guard.Mask(buyer, order, quote)
		assert.Nil(t, view.SupplierOrgID)
	})

	t.Run("reveals once the order is signed", func(t *testing.T) {
		order := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusSigned}
		view := guard.Mask(buyer, order, quote)
		require.NotNil(t, view.SupplierOrgID)
		assert.Equal(t, supplierOrg, *view.SupplierOrgID)
		assert.True(t, view.Revealed)
		assert.Contains(t, view.Note, "bids@supplier.example")
	})

	t.Run("a signed order reveals only its accepted quote", func(t *testing.T) {
		otherQuote := newQuote(uuid.New())
		order := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusSigned}
		view := guard.Mask(buyer, order, otherQuote)
		assert.Nil(t, view.SupplierOrgID)
	})

	t.Run("suppliers see their own quotes unmasked", func(t *testing.T) {
		supplier := core.NewScope(supplierOrg, projectID, "supplier-1", core.RoleSupplier)
		view := guard.Mask(supplier, nil, quote)
		require.NotNil(t, view.SupplierOrgID)
		assert.Contains(t, view.Note, "bids@supplier.example")
	})

	t.Run("admin override bypasses masking", func(t *testing.T) {
		admin := core.NewScope(uuid.New(), projectID, "admin-1", core.RoleAdmin).WithAdminOverride("support ticket 99")
		view := guard.Mask(admin, nil, quote)
		require.NotNil(t, view.SupplierOrgID)
	})
}

func TestReveal(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()
	quote := newQuote(uuid.New())
	buyer := core.NewScope(uuid.New(), projectID, "buyer-1", core.RoleBuyer)

	t.Run("fails closed before the reveal point", func(t *testing.T) {
		guard, audits, _ := newGuardEnv(t)

		_, err := guard.Reveal(ctx, buyer, nil, quote)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeAnonymityViolation))

		pending := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusPendingSignature}
		_, err = guard.Reveal(ctx, buyer, pending, quote)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeAnonymityViolation))

		assert.Empty(t, audits.Records)
	})

	t.Run("appends exactly one audit record per reveal", func(t *testing.T) {
		guard, audits, outbox := newGuardEnv(t)
		order := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusReleased}

		view, err := guard.Reveal(ctx, buyer, order, quote)
		require.NoError(t, err)
		require.NotNil(t, view.SupplierOrgID)
		assert.Equal(t, quote.SupplierOrgID, *view.SupplierOrgID)

		count, err := audits.CountForQuote(nil, buyer, quote.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		_, err = guard.Reveal(ctx, buyer, order, quote)
		require.NoError(t, err)
		count, err = audits.CountForQuote(nil, buyer, quote.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		assert.Len(t, outbox.Rows, 2)
	})

	t.Run("suppliers have no reveal permission", func(t *testing.T) {
		guard, _, _ := newGuardEnv(t)
		supplier := core.NewScope(quote.SupplierOrgID, projectID, "supplier-1", core.RoleSupplier)
		order := &models.Order{AcceptedQuoteID: quote.ID, Status: models.OrderStatusSigned}

		_, err := guard.Reveal(ctx, supplier, order, quote)
		assert.True(t, core.HasErrorCode(err, core.ErrorCodeForbidden))
	})
}
