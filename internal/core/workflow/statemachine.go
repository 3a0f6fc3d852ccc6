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
	"slices"

	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database/models"
)

// The transition tables are the single source of truth for both state
// machines. Guards on top of a legal edge (contract present, budget fits,
// delivery sequence) live in the engine operations.

var rfqTransitions = map[models.RFQStatus][]models.RFQStatus{
	models.RFQStatusDraft:        {models.RFQStatusPublished, models.RFQStatusCancelled},
	models.RFQStatusPublished:    {models.RFQStatusBidding, models.RFQStatusCancelled},
	models.RFQStatusBidding:      {models.RFQStatusSecondChance, models.RFQStatusAwarded, models.RFQStatusCancelled},
	models.RFQStatusSecondChance: {models.RFQStatusBidding, models.RFQStatusAwarded, models.RFQStatusCancelled},
	models.RFQStatusAwarded:      {models.RFQStatusClosed, models.RFQStatusCancelled},
	models.RFQStatusClosed:       {},
	models.RFQStatusCancelled:    {},
}

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPendingSignature: {models.OrderStatusSigned, models.OrderStatusCancelled},
	models.OrderStatusSigned:           {models.OrderStatusReleased, models.OrderStatusCancelled},
	models.OrderStatusReleased:         {models.OrderStatusInDelivery},
	models.OrderStatusInDelivery:       {models.OrderStatusDelivered},
	models.OrderStatusDelivered:        {models.OrderStatusCompleted},
	models.OrderStatusCompleted:        {},
	models.OrderStatusCancelled:        {},
}

func CanTransitionRFQ(from, to models.RFQStatus) bool {
	return slices.Contains(rfqTransitions[from], to)
}

func CanTransitionOrder(from, to models.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

func ensureRFQTransition(from, to models.RFQStatus) error {
	if !CanTransitionRFQ(from, to) {
		return core.NewInvalidStateTransition(string(from), string(to))
	}
	return nil
}

func ensureOrderTransition(from, to models.OrderStatus) error {
	if !CanTransitionOrder(from, to) {
		return core.NewInvalidStateTransition(string(from), string(to))
	}
	return nil
}
