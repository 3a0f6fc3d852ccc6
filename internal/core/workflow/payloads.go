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
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/shopspring/decimal"
)

type CreateRFQPayload struct {
	Title          string      `json:"title" validate:"required,max=200"`
	Description    string      `json:"description" validate:"max=4000"`
	ExpiresAt      *time.Time  `json:"expiresAt"`
	SupplierOrgIDs []uuid.UUID `json:"supplierOrgIds" validate:"max=100"`
}

type QuoteItemPayload struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type SubmitQuotePayload struct {
	TotalAmount   decimal.Decimal    `json:"totalAmount"`
	Note          string             `json:"note" validate:"max=4000"`
	DeliveryTerms string             `json:"deliveryTerms" validate:"max=4000"`
	Items         []QuoteItemPayload `json:"items" validate:"dive"`
}

type SecondChancePayload struct {
	Deadline time.Time `json:"deadline" validate:"required"`
}

type AwardRFQPayload struct {
	QuoteID          uuid.UUID `json:"quoteId" validate:"required"`
	RequiresContract bool      `json:"requiresContract"`
}

type SignOrderPayload struct {
	ContractID *uuid.UUID `json:"contractId"`
}

type DeliveryPayload struct {
	Note string `json:"note" validate:"max=2000"`
}

func validatePayload(payload any) error {
	if err := core.V.Struct(payload); err != nil {
		return core.NewError(core.ErrorCodeValidationFailed, "invalid payload").WithInternal(err)
	}
	return nil
}
