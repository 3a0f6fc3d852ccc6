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
package anonymity

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/shopspring/decimal"
)

// identity bearing fragments inside free text fields. Suppliers keep
// writing their contact data into notes no matter what the UI says.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()./]{6,}\d`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
)

const redacted = "[redacted]"

type auditRepository interface {
	Transaction(f func(tx core.DB) error) error
	Create(tx core.DB, scope core.Scope, audit *models.IdentityRevealAudit) error
}

type eventRecorder interface {
	Record(tx core.DB, scope core.Scope, event events.Event) error
	Flush(ctx context.Context, evts []events.Event)
}

// QuoteView is the only shape in which a quote leaves the transactional
// core. SupplierOrgID is nil and the free text fields are scrubbed until
// the reveal conditions hold.
type QuoteView struct {
	ID            uuid.UUID          `json:"id"`
	RFQID         uuid.UUID          `json:"rfqId"`
	RevisionNo    int                `json:"revisionNo"`
	Status        models.QuoteStatus `json:"status"`
	TotalAmount   decimal.Decimal    `json:"totalAmount"`
	SubmittedAt   time.Time          `json:"submittedAt"`
	Note          string             `json:"note"`
	DeliveryTerms string             `json:"deliveryTerms"`
	Items         []QuoteItemView    `json:"items"`

	SupplierOrgID *uuid.UUID `json:"supplierOrgId,omitempty"`
	Revealed      bool       `json:"revealed"`
}

type QuoteItemView struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Guard enforces supplier anonymity on the customer side of the bidding
// phase. It never mutates quotes - masking happens on the way out.
type Guard struct {
	auditRepository auditRepository
	recorder        eventRecorder
	rbac            accesscontrol.AccessControl
}

func NewGuard(auditRepository auditRepository, recorder eventRecorder, rbac accesscontrol.AccessControl) *Guard {
	return &Guard{
		auditRepository: auditRepository,
		recorder:        recorder,
		rbac:            rbac,
	}
}

// revealedTo decides whether the caller may see the supplier behind the
// quote. order is the order created from the quote, nil before award.
func (g *Guard) revealedTo(scope core.Scope, order *models.Order, quote models.Quote) bool {
	// suppliers always see their own quotes
	if scope.OrganizationID == quote.SupplierOrgID {
		return true
	}
	if scope.AdminOverride {
		return true
	}
	return order != nil &&
		order.AcceptedQuoteID == quote.ID &&
		order.IdentityRevealed()
}

// Mask renders a quote for the caller. Before the reveal point the
// supplier organization id is stripped and identity bearing fragments in
// the free text fields are scrubbed.
func (g *Guard) Mask(scope core.Scope, order *models.Order, quote models.Quote) QuoteView {
	view := QuoteView{
		ID:            quote.ID,
		RFQID:         quote.RFQID,
		RevisionNo:    quote.RevisionNo,
		Status:        quote.Status,
		TotalAmount:   quote.TotalAmount,
		SubmittedAt:   quote.SubmittedAt,
		Note:          quote.Note,
		DeliveryTerms: quote.DeliveryTerms,
	}
	for _, item := range quote.Items {
		view.Items = append(view.Items, QuoteItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	if g.revealedTo(scope, order, quote) {
		supplierOrgID := quote.SupplierOrgID
		view.SupplierOrgID = &supplierOrgID
		view.Revealed = true
		return view
	}

	view.Note = Scrub(view.Note)
	view.DeliveryTerms = Scrub(view.DeliveryTerms)
	for i := range view.Items {
		view.Items[i].Description = Scrub(view.Items[i].Description)
	}
	return view
}

// Reveal returns the unmasked quote and writes exactly one audit row for
// this access. Before the reveal point it fails closed and logs the
// attempt as a security event.
func (g *Guard) Reveal(ctx context.Context, scope core.Scope, order *models.Order, quote models.Quote) (QuoteView, error) {
	allowed, err := g.rbac.IsAllowed(scope.Role, accesscontrol.ActionRevealIdentity)
	if err != nil {
		return QuoteView{}, err
	}
	if !allowed {
		return QuoteView{}, core.NewForbidden(string(accesscontrol.ActionRevealIdentity))
	}

	if !g.revealedTo(scope, order, quote) {
		slog.Warn("blocked identity access before reveal point",
			"quoteId", quote.ID, "projectId", scope.ProjectID, "userId", scope.UserID, "role", scope.Role)
		return QuoteView{}, core.NewError(core.ErrorCodeAnonymityViolation, "supplier identity is not revealed yet")
	}

	var evts []events.Event
	err = g.auditRepository.Transaction(func(tx core.DB) error {
		audit := models.IdentityRevealAudit{
			QuoteID: quote.ID,
			ActorID: scope.UserID,
		}
		if err := g.auditRepository.Create(tx, scope, &audit); err != nil {
			return err
		}
		event := events.New(events.IdentityRevealed, scope.ProjectID, map[string]any{
			"quoteId": quote.ID.String(),
			"actorId": scope.UserID,
		})
		evts = append(evts, event)
		return g.recorder.Record(tx, scope, event)
	})
	if err != nil {
		return QuoteView{}, err
	}
	g.recorder.Flush(ctx, evts)

	return g.Mask(scope, order, quote), nil
}

// Scrub replaces identity bearing fragments in free text.
func Scrub(s string) string {
	s = emailPattern.ReplaceAllString(s, redacted)
	s = urlPattern.ReplaceAllString(s, redacted)
	s = phonePattern.ReplaceAllString(s, redacted)
	return s
}
