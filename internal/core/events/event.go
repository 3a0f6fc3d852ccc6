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
package events

import (
	"context"

	"github.com/google/uuid"
)

type EventType string

const (
	RFQCreated            EventType = "rfq.created"
	RFQPublished          EventType = "rfq.published"
	RFQBiddingOpened      EventType = "rfq.bidding_opened"
	RFQSecondChanceOpened EventType = "rfq.second_chance_opened"
	RFQSecondChanceClosed EventType = "rfq.second_chance_closed"
	RFQAwarded            EventType = "rfq.awarded"
	RFQClosed             EventType = "rfq.closed"
	RFQCancelled          EventType = "rfq.cancelled"

	QuoteSubmitted EventType = "quote.submitted"

	OrderCreated         EventType = "order.created"
	OrderSigned          EventType = "order.signed"
	OrderReleased        EventType = "order.released"
	OrderDeliveryStarted EventType = "order.delivery_started"
	OrderDelivered       EventType = "order.delivered"
	OrderCompleted       EventType = "order.completed"
	OrderCancelled       EventType = "order.cancelled"

	BudgetExceptionRequested EventType = "budget_exception.requested"
	BudgetExceptionApproved  EventType = "budget_exception.approved"
	BudgetExceptionRejected  EventType = "budget_exception.rejected"

	IdentityRevealed EventType = "identity.revealed"
)

// Event is a domain fact that already happened. The correlation id is
// minted once per fact and travels with it through the outbox and onto
// the wire, so downstream consumers can deduplicate redeliveries.
type Event struct {
	Type          EventType      `json:"type"`
	ProjectID     uuid.UUID      `json:"projectId"`
	CorrelationID uuid.UUID      `json:"correlationId"`
	Payload       map[string]any `json:"payload"`
}

func New(eventType EventType, projectID uuid.UUID, payload map[string]any) Event {
	return Event{
		Type:          eventType,
		ProjectID:     projectID,
		CorrelationID: uuid.New(),
		Payload:       payload,
	}
}

// Publisher pushes an already committed event to the broker. A failed
// publish is not an error of the business transaction: the outbox row
// stays pending and the dispatcher retries.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
