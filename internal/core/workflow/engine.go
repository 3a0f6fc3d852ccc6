// Copyright (C) 2024 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/anonymity"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
)

// Engine owns every lifecycle transition of RFQs and orders. Each
// operation runs in a single transaction: the transition guard, the
// entity update and the outbox event commit or roll back together.
//
// Concurrency follows from row locks, not from application state: the
// entity being transitioned is locked FOR UPDATE NOWAIT first, so of two
// concurrent transitions one commits and the other fails fast with a
// retriable lock error or a transition error against the new state.
type Engine struct {
	rfqRepository           rfqRepository
	quoteRepository         quoteRepository
	orderRepository         orderRepository
	contractRepository      contractRepository
	deliveryEventRepository deliveryEventRepository
	ledger                  budgetValidator
	recorder                eventRecorder
	masker                  quoteMasker
	rbac                    accessControl
}

func NewEngine(
	rfqRepository rfqRepository,
	quoteRepository quoteRepository,
	orderRepository orderRepository,
	contractRepository contractRepository,
	deliveryEventRepository deliveryEventRepository,
	ledger budgetValidator,
	recorder eventRecorder,
	masker quoteMasker,
	rbac accessControl,
) *Engine {
	return &Engine{
		rfqRepository:           rfqRepository,
		quoteRepository:         quoteRepository,
		orderRepository:         orderRepository,
		contractRepository:      contractRepository,
		deliveryEventRepository: deliveryEventRepository,
		ledger:                  ledger,
		recorder:                recorder,
		masker:                  masker,
		rbac:                    rbac,
	}
}

func (e *Engine) authorize(scope core.Scope, action accesscontrol.Action) error {
	allowed, err := e.rbac.IsAllowed(scope.Role, action)
	if err != nil {
		return err
	}
	if !allowed {
		return core.NewForbidden(string(action))
	}
	return nil
}

// CreateRFQ creates a draft RFQ with its target supplier set.
func (e *Engine) CreateRFQ(ctx context.Context, scope core.Scope, payload CreateRFQPayload) (models.RFQ, error) {
	if err := e.authorize(scope, accesscontrol.ActionCreateRFQ); err != nil {
		return models.RFQ{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.RFQ{}, err
	}

	rfq := models.RFQ{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      models.RFQStatusDraft,
		ExpiresAt:   payload.ExpiresAt,
	}
	seen := make(map[uuid.UUID]bool)
	for _, supplierOrgID := range payload.SupplierOrgIDs {
		if seen[supplierOrgID] {
			continue
		}
		seen[supplierOrgID] = true
		rfq.Suppliers = append(rfq.Suppliers, models.RFQSupplier{SupplierOrgID: supplierOrgID})
	}

	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		if err := e.rfqRepository.Create(tx, scope, &rfq); err != nil {
			return err
		}
		event := events.New(events.RFQCreated, scope.ProjectID, map[string]any{
			"rfqId": rfq.ID.String(),
			"title": rfq.Title,
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.RFQ{}, err
	}

	e.recorder.Flush(ctx, evts)
	return rfq, nil
}

// PublishRFQ moves a draft to published and immediately on to bidding.
// There is no operation between the two states, so both transitions run
// in the same transaction and both events are emitted.
func (e *Engine) PublishRFQ(ctx context.Context, scope core.Scope, rfqID uuid.UUID) (models.RFQ, error) {
	if err := e.authorize(scope, accesscontrol.ActionPublishRFQ); err != nil {
		return models.RFQ{}, err
	}

	var rfq models.RFQ
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		rfq, err = e.rfqRepository.GetByIDForUpdate(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if err := ensureRFQTransition(rfq.Status, models.RFQStatusPublished); err != nil {
			return err
		}

		supplierCount, err := e.rfqRepository.CountSuppliers(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if supplierCount == 0 {
			return core.NewError(core.ErrorCodeInvalidStateTransition, "cannot publish an rfq without target suppliers")
		}

		published := events.New(events.RFQPublished, scope.ProjectID, map[string]any{
			"rfqId": rfq.ID.String(),
		})
		biddingOpened := events.New(events.RFQBiddingOpened, scope.ProjectID, map[string]any{
			"rfqId": rfq.ID.String(),
		})
		evts = append(evts, published, biddingOpened)

		rfq.Status = models.RFQStatusBidding
		if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
			return err
		}
		if err := e.recorder.Record(tx, scope, published); err != nil {
			return err
		}
		return e.recorder.Record(tx, scope, biddingOpened)
	})
	if err != nil {
		return models.RFQ{}, err
	}

	e.recorder.Flush(ctx, evts)
	return rfq, nil
}

// SubmitQuote records a supplier bid. During bidding every targeted
// supplier gets exactly one revision; a second chance window grants one
// more to suppliers that already bid. The unique revision index backs
// this against concurrent submissions, no RFQ lock is taken.
func (e *Engine) SubmitQuote(ctx context.Context, scope core.Scope, rfqID uuid.UUID, payload SubmitQuotePayload) (models.Quote, error) {
	if err := e.authorize(scope, accesscontrol.ActionSubmitQuote); err != nil {
		return models.Quote{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.Quote{}, err
	}
	if !payload.TotalAmount.IsPositive() {
		return models.Quote{}, core.NewError(core.ErrorCodeValidationFailed, "total amount must be positive")
	}

	var quote models.Quote
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		rfq, err := e.rfqRepository.GetByID(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if rfq.Status != models.RFQStatusBidding && rfq.Status != models.RFQStatusSecondChance {
			return core.NewError(core.ErrorCodeInvalidStateTransition, "rfq is not accepting quotes")
		}

		targeted, err := e.rfqRepository.IsTargetedSupplier(tx, scope, rfqID, scope.OrganizationID)
		if err != nil {
			return err
		}
		if !targeted {
			return core.NewForbidden("bid on this rfq")
		}

		latest, err := e.quoteRepository.LatestRevision(tx, scope, rfqID, scope.OrganizationID)
		if err != nil {
			return err
		}

		switch rfq.Status {
		case models.RFQStatusBidding:
			if latest > 0 {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "initial quote already submitted")
			}
		case models.RFQStatusSecondChance:
			if rfq.SecondChanceDeadline != nil && time.Now().After(*rfq.SecondChanceDeadline) {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "second chance window expired")
			}
			if latest == 0 {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "second chance is limited to suppliers with an initial quote")
			}
			if latest > 1 {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "second chance revision already used")
			}
		}

		quote = models.Quote{
			RFQID:         rfqID,
			SupplierOrgID: scope.OrganizationID,
			RevisionNo:    latest + 1,
			Status:        models.QuoteStatusSubmitted,
			TotalAmount:   payload.TotalAmount,
			SubmittedAt:   time.Now(),
			Note:          payload.Note,
			DeliveryTerms: payload.DeliveryTerms,
		}
		for _, item := range payload.Items {
			quote.Items = append(quote.Items, models.QuoteItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}

		if err := e.quoteRepository.Create(tx, scope, &quote); err != nil {
			if database.IsDuplicateKeyError(err) {
				return core.NewError(core.ErrorCodeLocked, "concurrent quote submission, please retry").WithInternal(err)
			}
			return err
		}

		// the event payload deliberately omits the supplier org id
		event := events.New(events.QuoteSubmitted, scope.ProjectID, map[string]any{
			"quoteId":    quote.ID.String(),
			"rfqId":      rfqID.String(),
			"revisionNo": quote.RevisionNo,
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Quote{}, err
	}

	e.recorder.Flush(ctx, evts)
	return quote, nil
}

// TriggerSecondChance opens the one second chance window an RFQ may have.
func (e *Engine) TriggerSecondChance(ctx context.Context, scope core.Scope, rfqID uuid.UUID, payload SecondChancePayload) (models.RFQ, error) {
	if err := e.authorize(scope, accesscontrol.ActionTriggerSecondChance); err != nil {
		return models.RFQ{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.RFQ{}, err
	}
	if !payload.Deadline.After(time.Now()) {
		return models.RFQ{}, core.NewError(core.ErrorCodeValidationFailed, "deadline must be in the future")
	}

	var rfq models.RFQ
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		rfq, err = e.rfqRepository.GetByIDForUpdate(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if err := ensureRFQTransition(rfq.Status, models.RFQStatusSecondChance); err != nil {
			return err
		}
		if rfq.SecondChanceUsed {
			return core.NewError(core.ErrorCodeInvalidStateTransition, "second chance already used")
		}

		rfq.Status = models.RFQStatusSecondChance
		rfq.SecondChanceUsed = true
		rfq.SecondChanceDeadline = &payload.Deadline
		if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
			return err
		}

		// one extra revision slot per supplier with a submitted quote;
		// the payload carries the count only, never the identities
		eligible, err := e.quoteRepository.SuppliersWithValidQuote(tx, scope, rfq.ID)
		if err != nil {
			return err
		}

		event := events.New(events.RFQSecondChanceOpened, scope.ProjectID, map[string]any{
			"rfqId":             rfq.ID.String(),
			"deadline":          payload.Deadline,
			"eligibleSuppliers": len(eligible),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.RFQ{}, err
	}

	e.recorder.Flush(ctx, evts)
	return rfq, nil
}

// CloseSecondChance returns an RFQ to bidding once its window deadline
// passed. It is triggered by the scheduler, not by a user, so there is no
// role gate. Submissions racing the close are decided by commit order:
// whichever transaction commits first wins.
func (e *Engine) CloseSecondChance(ctx context.Context, scope core.Scope, rfqID uuid.UUID) (models.RFQ, error) {
	var rfq models.RFQ
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		rfq, err = e.rfqRepository.GetByIDForUpdate(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if err := ensureRFQTransition(rfq.Status, models.RFQStatusBidding); err != nil {
			return err
		}
		if rfq.SecondChanceDeadline != nil && time.Now().Before(*rfq.SecondChanceDeadline) {
			return core.NewError(core.ErrorCodeInvalidStateTransition, "second chance window is still open")
		}

		rfq.Status = models.RFQStatusBidding
		if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
			return err
		}

		event := events.New(events.RFQSecondChanceClosed, scope.ProjectID, map[string]any{
			"rfqId": rfq.ID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.RFQ{}, err
	}

	e.recorder.Flush(ctx, evts)
	return rfq, nil
}

// AwardRFQ accepts one quote, rejects every other open quote and creates
// the order in pending_signature. Award and cancel race on the RFQ row
// lock - the loser fails fast instead of producing an order on a
// cancelled RFQ.
func (e *Engine) AwardRFQ(ctx context.Context, scope core.Scope, rfqID uuid.UUID, payload AwardRFQPayload) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionAwardRFQ); err != nil {
		return models.Order{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		rfq, err := e.rfqRepository.GetByIDForUpdate(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if err := ensureRFQTransition(rfq.Status, models.RFQStatusAwarded); err != nil {
			return err
		}

		quote, err := e.quoteRepository.GetByIDWithItems(tx, scope, payload.QuoteID)
		if err != nil {
			return err
		}
		if quote.RFQID != rfqID {
			return core.NewError(core.ErrorCodeValidationFailed, "quote does not belong to this rfq")
		}
		if quote.Status != models.QuoteStatusSubmitted {
			return core.NewInvalidStateTransition(string(quote.Status), string(models.QuoteStatusAccepted))
		}

		quote.Status = models.QuoteStatusAccepted
		if err := e.quoteRepository.Update(tx, scope, &quote); err != nil {
			return err
		}
		if err := e.quoteRepository.RejectOpenExcept(tx, scope, rfqID, quote.ID); err != nil {
			return err
		}

		order = models.Order{
			RFQID:            rfqID,
			AcceptedQuoteID:  quote.ID,
			Status:           models.OrderStatusPendingSignature,
			TotalAmount:      quote.TotalAmount,
			RequiresContract: payload.RequiresContract,
		}
		for _, item := range quote.Items {
			order.Items = append(order.Items, models.OrderItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
		if err := e.orderRepository.Create(tx, scope, &order); err != nil {
			return err
		}

		rfq.Status = models.RFQStatusAwarded
		if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
			return err
		}

		awarded := events.New(events.RFQAwarded, scope.ProjectID, map[string]any{
			"rfqId":   rfqID.String(),
			"quoteId": quote.ID.String(),
			"orderId": order.ID.String(),
		})
		created := events.New(events.OrderCreated, scope.ProjectID, map[string]any{
			"orderId":     order.ID.String(),
			"totalAmount": order.TotalAmount.String(),
		})
		evts = append(evts, awarded, created)
		if err := e.recorder.Record(tx, scope, awarded); err != nil {
			return err
		}
		return e.recorder.Record(tx, scope, created)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// CancelRFQ cancels an RFQ in any non-terminal state, along with an order
// that has not been released yet. Once money is committed through a
// released order the RFQ can no longer be cancelled.
func (e *Engine) CancelRFQ(ctx context.Context, scope core.Scope, rfqID uuid.UUID) (models.RFQ, error) {
	if err := e.authorize(scope, accesscontrol.ActionCancelRFQ); err != nil {
		return models.RFQ{}, err
	}

	var rfq models.RFQ
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		rfq, err = e.rfqRepository.GetByIDForUpdate(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if err := ensureRFQTransition(rfq.Status, models.RFQStatusCancelled); err != nil {
			return err
		}

		released, err := e.orderRepository.HasReleasedForRFQ(tx, scope, rfqID)
		if err != nil {
			return err
		}
		if released {
			return core.NewError(core.ErrorCodeInvalidStateTransition, "cannot cancel an rfq with a released order")
		}

		order, err := e.orderRepository.GetByRFQ(tx, scope, rfqID)
		if err != nil && !core.HasErrorCode(err, core.ErrorCodeNotFound) {
			return err
		}
		if err == nil && CanTransitionOrder(order.Status, models.OrderStatusCancelled) {
			order.Status = models.OrderStatusCancelled
			if err := e.orderRepository.Update(tx, scope, &order); err != nil {
				return err
			}
			event := events.New(events.OrderCancelled, scope.ProjectID, map[string]any{
				"orderId": order.ID.String(),
			})
			evts = append(evts, event)
			if err := e.recorder.Record(tx, scope, event); err != nil {
				return err
			}
		}

		rfq.Status = models.RFQStatusCancelled
		if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
			return err
		}

		event := events.New(events.RFQCancelled, scope.ProjectID, map[string]any{
			"rfqId": rfq.ID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.RFQ{}, err
	}

	e.recorder.Flush(ctx, evts)
	return rfq, nil
}

// SignOrder moves an order to signed, the identity reveal point of the
// accepted quote. If the order requires a contract, a signed contract
// referencing the order must be supplied.
func (e *Engine) SignOrder(ctx context.Context, scope core.Scope, orderID uuid.UUID, payload SignOrderPayload) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionSignOrder); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		order, err = e.orderRepository.GetByIDForUpdate(tx, scope, orderID)
		if err != nil {
			return err
		}
		if err := ensureOrderTransition(order.Status, models.OrderStatusSigned); err != nil {
			return err
		}

		if order.RequiresContract {
			if payload.ContractID == nil {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "a signed contract is required to sign this order")
			}
			contract, err := e.contractRepository.GetByID(tx, scope, *payload.ContractID)
			if err != nil {
				return err
			}
			if contract.OrderID != order.ID {
				return core.NewError(core.ErrorCodeValidationFailed, "contract does not belong to this order")
			}
			if contract.SignedAt == nil {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "contract is not signed yet")
			}
			order.ContractID = payload.ContractID
		}

		order.Status = models.OrderStatusSigned
		if err := e.orderRepository.Update(tx, scope, &order); err != nil {
			return err
		}

		slog.Info("order signed, supplier identity revealed",
			"orderId", order.ID, "projectId", scope.ProjectID, "userId", scope.UserID)

		event := events.New(events.OrderSigned, scope.ProjectID, map[string]any{
			"orderId": order.ID.String(),
			"rfqId":   order.RFQID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// ReleaseOrder commits the order amount against the project budget. This
// is the only point where the budget gate runs: the ledger locks the
// project row inside this transaction, so two concurrent releases are
// serialized against the same remaining figure.
func (e *Engine) ReleaseOrder(ctx context.Context, scope core.Scope, orderID uuid.UUID) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionReleaseOrder); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		order, err = e.orderRepository.GetByIDForUpdate(tx, scope, orderID)
		if err != nil {
			return err
		}
		if err := ensureOrderTransition(order.Status, models.OrderStatusReleased); err != nil {
			return err
		}

		if err := e.ledger.Validate(tx, scope, order.TotalAmount, &order.ID); err != nil {
			return err
		}

		order.Status = models.OrderStatusReleased
		if err := e.orderRepository.Update(tx, scope, &order); err != nil {
			return err
		}

		event := events.New(events.OrderReleased, scope.ProjectID, map[string]any{
			"orderId":     order.ID.String(),
			"totalAmount": order.TotalAmount.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// StartDelivery records the dispatch milestone and moves the order to
// in_delivery.
func (e *Engine) StartDelivery(ctx context.Context, scope core.Scope, orderID uuid.UUID, payload DeliveryPayload) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionStartDelivery); err != nil {
		return models.Order{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.Order{}, err
	}
	return e.deliveryTransition(ctx, scope, orderID, models.OrderStatusInDelivery, models.DeliveryEventDispatched, events.OrderDeliveryStarted, payload.Note, "")
}

// RecordDelivery records the delivered milestone. It requires the
// dispatch milestone: delivery milestones are strictly sequential.
func (e *Engine) RecordDelivery(ctx context.Context, scope core.Scope, orderID uuid.UUID, payload DeliveryPayload) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionRecordDelivery); err != nil {
		return models.Order{}, err
	}
	if err := validatePayload(payload); err != nil {
		return models.Order{}, err
	}
	return e.deliveryTransition(ctx, scope, orderID, models.OrderStatusDelivered, models.DeliveryEventDelivered, events.OrderDelivered, payload.Note, models.DeliveryEventDispatched)
}

func (e *Engine) deliveryTransition(ctx context.Context, scope core.Scope, orderID uuid.UUID, to models.OrderStatus, kind models.DeliveryEventKind, eventType events.EventType, note string, requires models.DeliveryEventKind) (models.Order, error) {
	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		order, err = e.orderRepository.GetByIDForUpdate(tx, scope, orderID)
		if err != nil {
			return err
		}
		if err := ensureOrderTransition(order.Status, to); err != nil {
			return err
		}

		if requires != "" {
			has, err := e.deliveryEventRepository.HasEvent(tx, scope, orderID, requires)
			if err != nil {
				return err
			}
			if !has {
				return core.NewError(core.ErrorCodeInvalidStateTransition, "missing preceding delivery milestone "+string(requires))
			}
		}

		milestone := models.DeliveryEvent{
			OrderID:    orderID,
			Kind:       kind,
			RecordedAt: time.Now(),
			Note:       note,
		}
		if err := e.deliveryEventRepository.Create(tx, scope, &milestone); err != nil {
			return err
		}

		order.Status = to
		if err := e.orderRepository.Update(tx, scope, &order); err != nil {
			return err
		}

		event := events.New(eventType, scope.ProjectID, map[string]any{
			"orderId": order.ID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// CompleteOrder finishes the order and closes the awarded RFQ with it.
func (e *Engine) CompleteOrder(ctx context.Context, scope core.Scope, orderID uuid.UUID) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionCompleteOrder); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		order, err = e.orderRepository.GetByIDForUpdate(tx, scope, orderID)
		if err != nil {
			return err
		}
		if err := ensureOrderTransition(order.Status, models.OrderStatusCompleted); err != nil {
			return err
		}

		order.Status = models.OrderStatusCompleted
		if err := e.orderRepository.Update(tx, scope, &order); err != nil {
			return err
		}

		rfq, err := e.rfqRepository.GetByIDForUpdate(tx, scope, order.RFQID)
		if err != nil {
			return err
		}
		if rfq.Status == models.RFQStatusAwarded {
			rfq.Status = models.RFQStatusClosed
			if err := e.rfqRepository.Update(tx, scope, &rfq); err != nil {
				return err
			}
			closed := events.New(events.RFQClosed, scope.ProjectID, map[string]any{
				"rfqId": rfq.ID.String(),
			})
			evts = append(evts, closed)
			if err := e.recorder.Record(tx, scope, closed); err != nil {
				return err
			}
		}

		event := events.New(events.OrderCompleted, scope.ProjectID, map[string]any{
			"orderId": order.ID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// CancelOrder cancels an order that has not been released yet.
func (e *Engine) CancelOrder(ctx context.Context, scope core.Scope, orderID uuid.UUID) (models.Order, error) {
	if err := e.authorize(scope, accesscontrol.ActionCancelOrder); err != nil {
		return models.Order{}, err
	}

	var order models.Order
	var evts []events.Event
	err := e.rfqRepository.Transaction(func(tx core.DB) error {
		var err error
		order, err = e.orderRepository.GetByIDForUpdate(tx, scope, orderID)
		if err != nil {
			return err
		}
		if err := ensureOrderTransition(order.Status, models.OrderStatusCancelled); err != nil {
			return err
		}

		order.Status = models.OrderStatusCancelled
		if err := e.orderRepository.Update(tx, scope, &order); err != nil {
			return err
		}

		event := events.New(events.OrderCancelled, scope.ProjectID, map[string]any{
			"orderId": order.ID.String(),
		})
		evts = append(evts, event)
		return e.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.Order{}, err
	}

	e.recorder.Flush(ctx, evts)
	return order, nil
}

// ListQuotes returns the quotes of an RFQ through the anonymity guard.
// Supplier identity only shows on the accepted quote once its order
// passed the reveal point, or on the caller's own quotes.
func (e *Engine) ListQuotes(scope core.Scope, rfqID uuid.UUID) ([]anonymity.QuoteView, error) {
	quotes, err := e.quoteRepository.ListByRFQ(nil, scope, rfqID)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	found, err := e.orderRepository.GetByRFQ(nil, scope, rfqID)
	if err == nil {
		order = &found
	} else if !core.HasErrorCode(err, core.ErrorCodeNotFound) {
		return nil, err
	}

	views := make([]anonymity.QuoteView, 0, len(quotes))
	for _, quote := range quotes {
		views = append(views, e.masker.Mask(scope, order, quote))
	}
	return views, nil
}
