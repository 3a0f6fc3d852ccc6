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

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/accesscontrol"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/anonymity"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/shopspring/decimal"
)

type rfqRepository interface {
	Transaction(f func(tx core.DB) error) error
	GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.RFQ, error)
	GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.RFQ, error)
	Create(tx core.DB, scope core.Scope, rfq *models.RFQ) error
	Update(tx core.DB, scope core.Scope, rfq *models.RFQ) error
	CountSuppliers(tx core.DB, scope core.Scope, rfqID uuid.UUID) (int64, error)
	IsTargetedSupplier(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (bool, error)
}

type quoteRepository interface {
	Create(tx core.DB, scope core.Scope, quote *models.Quote) error
	GetByIDWithItems(tx core.DB, scope core.Scope, id uuid.UUID) (models.Quote, error)
	LatestRevision(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (int, error)
	ListByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]models.Quote, error)
	SuppliersWithValidQuote(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]uuid.UUID, error)
	Update(tx core.DB, scope core.Scope, quote *models.Quote) error
	RejectOpenExcept(tx core.DB, scope core.Scope, rfqID, acceptedQuoteID uuid.UUID) error
}

type orderRepository interface {
	Create(tx core.DB, scope core.Scope, order *models.Order) error
	GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.Order, error)
	GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.Order, error)
	GetByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (models.Order, error)
	Update(tx core.DB, scope core.Scope, order *models.Order) error
	HasReleasedForRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (bool, error)
}

type contractRepository interface {
	GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.Contract, error)
}

type deliveryEventRepository interface {
	Create(tx core.DB, scope core.Scope, event *models.DeliveryEvent) error
	HasEvent(tx core.DB, scope core.Scope, orderID uuid.UUID, kind models.DeliveryEventKind) (bool, error)
}

// budgetValidator is the release gate. It locks the project row inside
// the caller's transaction.
type budgetValidator interface {
	Validate(tx core.DB, scope core.Scope, candidateAmount decimal.Decimal, excludeOrderID *uuid.UUID) error
}

type eventRecorder interface {
	Record(tx core.DB, scope core.Scope, event events.Event) error
	Flush(ctx context.Context, evts []events.Event)
}

type quoteMasker interface {
	Mask(scope core.Scope, order *models.Order, quote models.Quote) anonymity.QuoteView
}

type accessControl interface {
	IsAllowed(role core.Role, action accesscontrol.Action) (bool, error)
}
