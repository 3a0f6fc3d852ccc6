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
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
)

type outboxRepository interface {
	Create(tx core.DB, scope core.Scope, event *models.OutboxEvent) error
	MarkPublishedByCorrelation(tx core.DB, correlationID uuid.UUID) error
}

// Recorder implements the transactional outbox. Record runs inside the
// workflow transaction and makes the event part of the commit. Flush is
// the best-effort fast path after commit - if it fails, the dispatcher
// picks the row up later.
type Recorder struct {
	outboxRepository outboxRepository
	publisher        Publisher
}

func NewRecorder(outboxRepository outboxRepository, publisher Publisher) *Recorder {
	return &Recorder{
		outboxRepository: outboxRepository,
		publisher:        publisher,
	}
}

func (r *Recorder) Record(tx core.DB, scope core.Scope, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.Wrap(err, "could not marshal event payload")
	}

	row := models.OutboxEvent{
		EventType:     string(event.Type),
		CorrelationID: event.CorrelationID,
		Payload:       payload,
	}
	return r.outboxRepository.Create(tx, scope, &row)
}

// Flush publishes events whose transaction already committed. Failures
// are logged, never returned: the caller's work is done.
func (r *Recorder) Flush(ctx context.Context, evts []Event) {
	for _, event := range evts {
		if err := r.publisher.Publish(ctx, event); err != nil {
			slog.Warn("could not publish event, leaving it to the dispatcher",
				"eventType", event.Type, "correlationId", event.CorrelationID, "err", err)
			continue
		}
		if err := r.outboxRepository.MarkPublishedByCorrelation(nil, event.CorrelationID); err != nil {
			// worst case the dispatcher publishes the event a second
			// time. Consumers deduplicate on the correlation id.
			slog.Warn("could not mark published event",
				"correlationId", event.CorrelationID, "err", err)
		}
	}
}
