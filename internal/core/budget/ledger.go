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
package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/shopspring/decimal"
)

type projectRepository interface {
	Read(tx core.DB, scope core.Scope) (models.Project, error)
	ReadForUpdate(tx core.DB, scope core.Scope) (models.Project, error)
}

type orderRepository interface {
	SumCommitted(tx core.DB, scope core.Scope, excludeOrderID *uuid.UUID) (decimal.Decimal, error)
}

type invoiceRepository interface {
	SumPaid(tx core.DB, scope core.Scope) (decimal.Decimal, error)
}

type exceptionRepository interface {
	Transaction(f func(tx core.DB) error) error
	Create(tx core.DB, scope core.Scope, exception *models.BudgetException) error
	GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.BudgetException, error)
	Update(tx core.DB, scope core.Scope, exception *models.BudgetException) error
	FindApprovedCovering(tx core.DB, scope core.Scope, orderID uuid.UUID, shortfall decimal.Decimal) (models.BudgetException, error)
}

type eventRecorder interface {
	Record(tx core.DB, scope core.Scope, event events.Event) error
	Flush(ctx context.Context, evts []events.Event)
}

// Snapshot is a point in time view of the project budget. Committed counts
// every non-cancelled order, actual spend counts paid invoices.
type Snapshot struct {
	Planned   decimal.Decimal `json:"planned"`
	Committed decimal.Decimal `json:"committed"`
	Actual    decimal.Decimal `json:"actual"`
	Remaining decimal.Decimal `json:"remaining"`
	Enforced  bool            `json:"enforced"`
}

// Ledger derives all budget figures from orders and invoices instead of
// maintaining a counter. There is nothing to drift: the ledger is always
// a query over the source rows.
type Ledger struct {
	projectRepository   projectRepository
	orderRepository     orderRepository
	invoiceRepository   invoiceRepository
	exceptionRepository exceptionRepository
	recorder            eventRecorder
	rbac                accesscontrol.AccessControl
}

func NewLedger(projectRepository projectRepository, orderRepository orderRepository, invoiceRepository invoiceRepository, exceptionRepository exceptionRepository, recorder eventRecorder, rbac accesscontrol.AccessControl) *Ledger {
	return &Ledger{
		projectRepository:   projectRepository,
		orderRepository:     orderRepository,
		invoiceRepository:   invoiceRepository,
		exceptionRepository: exceptionRepository,
		recorder:            recorder,
		rbac:                rbac,
	}
}

// Status returns the current budget snapshot without taking locks.
func (l *Ledger) Status(tx core.DB, scope core.Scope) (Snapshot, error) {
	project, err := l.projectRepository.Read(tx, scope)
	if err != nil {
		return Snapshot{}, err
	}
	committed, err := l.orderRepository.SumCommitted(tx, scope, nil)
	if err != nil {
		return Snapshot{}, err
	}
	actual, err := l.invoiceRepository.SumPaid(tx, scope)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Planned:   project.PlannedBudget,
		Committed: committed,
		Actual:    actual,
		Remaining: project.PlannedBudget.Sub(committed),
		Enforced:  project.BudgetEnforced,
	}, nil
}

// Validate checks whether committing candidateAmount still fits into the
// planned budget. It must run inside the caller's transaction: the project
// row is locked first, so concurrent validations of the same project are
// serialized and cannot both pass on the same stale remaining figure.
//
// The order being validated is excluded from the committed sum via
// excludeOrderID so its own amount is not counted twice.
func (l *Ledger) Validate(tx core.DB, scope core.Scope, candidateAmount decimal.Decimal, excludeOrderID *uuid.UUID) error {
	project, err := l.projectRepository.ReadForUpdate(tx, scope)
	if err != nil {
		return err
	}
	if !project.BudgetEnforced {
		return nil
	}

	committed, err := l.orderRepository.SumCommitted(tx, scope, excludeOrderID)
	if err != nil {
		return err
	}

	remaining := project.PlannedBudget.Sub(committed)
	if candidateAmount.LessThanOrEqual(remaining) {
		return nil
	}

	shortfall := candidateAmount.Sub(remaining)
	orderID := uuid.Nil
	if excludeOrderID != nil {
		orderID = *excludeOrderID
	}
	_, err = l.exceptionRepository.FindApprovedCovering(tx, scope, orderID, shortfall)
	if err == nil {
		// an approved exception covers the shortfall
		return nil
	}
	if !core.HasErrorCode(err, core.ErrorCodeNotFound) {
		return err
	}

	return core.NewError(core.ErrorCodeBudgetExceeded, "order amount exceeds the remaining project budget").
		WithDetails(map[string]any{
			"planned":   project.PlannedBudget,
			"committed": committed,
			"remaining": remaining,
			"candidate": candidateAmount,
			"shortfall": shortfall,
		})
}

type RequestExceptionPayload struct {
	OrderID         *uuid.UUID      `json:"orderId"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	Reason          string          `json:"reason" validate:"required,max=2000"`
}

// RequestException opens a pending budget exception.
func (l *Ledger) RequestException(ctx context.Context, scope core.Scope, payload RequestExceptionPayload) (models.BudgetException, error) {
	if err := l.authorize(scope, accesscontrol.ActionRequestBudgetException); err != nil {
		return models.BudgetException{}, err
	}
	if err := core.V.Struct(payload); err != nil {
		return models.BudgetException{}, core.NewError(core.ErrorCodeValidationFailed, "invalid payload").WithInternal(err)
	}
	if !payload.RequestedAmount.IsPositive() {
		return models.BudgetException{}, core.NewError(core.ErrorCodeValidationFailed, "requested amount must be positive")
	}

	exception := models.BudgetException{
		OrderID:         payload.OrderID,
		Status:          models.BudgetExceptionStatusPending,
		RequestedAmount: payload.RequestedAmount,
		Reason:          payload.Reason,
		RequestedBy:     scope.UserID,
	}

	var evts []events.Event
	err := l.exceptionRepository.Transaction(func(tx core.DB) error {
		if err := l.exceptionRepository.Create(tx, scope, &exception); err != nil {
			return err
		}
		event := events.New(events.BudgetExceptionRequested, scope.ProjectID, map[string]any{
			"exceptionId":     exception.ID.String(),
			"requestedAmount": payload.RequestedAmount.String(),
			"requestedBy":     scope.UserID,
		})
		evts = append(evts, event)
		return l.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.BudgetException{}, err
	}

	l.recorder.Flush(ctx, evts)
	return exception, nil
}

// ApproveException decides a pending exception. A decision is final: an
// already decided exception cannot be approved again or flipped.
func (l *Ledger) ApproveException(ctx context.Context, scope core.Scope, id uuid.UUID, approvedAmount decimal.Decimal) (models.BudgetException, error) {
	return l.decideException(ctx, scope, id, models.BudgetExceptionStatusApproved, approvedAmount)
}

func (l *Ledger) RejectException(ctx context.Context, scope core.Scope, id uuid.UUID) (models.BudgetException, error) {
	return l.decideException(ctx, scope, id, models.BudgetExceptionStatusRejected, decimal.Zero)
}

func (l *Ledger) decideException(ctx context.Context, scope core.Scope, id uuid.UUID, decision models.BudgetExceptionStatus, approvedAmount decimal.Decimal) (models.BudgetException, error) {
	if err := l.authorize(scope, accesscontrol.ActionDecideBudgetException); err != nil {
		return models.BudgetException{}, err
	}
	if decision == models.BudgetExceptionStatusApproved && !approvedAmount.IsPositive() {
		return models.BudgetException{}, core.NewError(core.ErrorCodeValidationFailed, "approved amount must be positive")
	}

	var exception models.BudgetException
	var evts []events.Event
	err := l.exceptionRepository.Transaction(func(tx core.DB) error {
		var err error
		exception, err = l.exceptionRepository.GetByIDForUpdate(tx, scope, id)
		if err != nil {
			return err
		}
		if exception.Status != models.BudgetExceptionStatusPending {
			return core.NewInvalidStateTransition(string(exception.Status), string(decision))
		}

		exception.Status = decision
		exception.ApprovedAmount = approvedAmount
		exception.DecidedBy = &scope.UserID

		if err := l.exceptionRepository.Update(tx, scope, &exception); err != nil {
			return err
		}

		eventType := events.BudgetExceptionApproved
		if decision == models.BudgetExceptionStatusRejected {
			eventType = events.BudgetExceptionRejected
		}
		event := events.New(eventType, scope.ProjectID, map[string]any{
			"exceptionId":    exception.ID.String(),
			"approvedAmount": approvedAmount.String(),
			"decidedBy":      scope.UserID,
		})
		evts = append(evts, event)
		return l.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return models.BudgetException{}, err
	}

	l.recorder.Flush(ctx, evts)
	return exception, nil
}

func (l *Ledger) authorize(scope core.Scope, action accesscontrol.Action) error {
	allowed, err := l.rbac.IsAllowed(scope.Role, action)
	if err != nil {
		return err
	}
	if !allowed {
		return core.NewForbidden(string(action))
	}
	return nil
}
