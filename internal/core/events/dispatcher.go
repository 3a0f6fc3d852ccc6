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
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"golang.org/x/sync/errgroup"
)

type dispatcherOutboxRepository interface {
	ListUnpublished(tx core.DB, limit int) ([]models.OutboxEvent, error)
	MarkPublished(tx core.DB, id uuid.UUID) error
	IncrementAttempts(tx core.DB, id uuid.UUID) error
}

// Dispatcher drains the outbox in the background. It is the at-least-once
// guarantee behind the recorder's best-effort flush: any row still
// unpublished after its transaction committed gets retried here.
type Dispatcher struct {
	outboxRepository dispatcherOutboxRepository
	publisher        Publisher
	interval         time.Duration
	batchSize        int
}

func NewDispatcher(outboxRepository dispatcherOutboxRepository, publisher Publisher, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		outboxRepository: outboxRepository,
		publisher:        publisher,
		interval:         interval,
		batchSize:        100,
	}
}

// Start blocks until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				slog.Error("outbox dispatch run failed", "err", err)
			}
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	rows, err := d.outboxRepository.ListUnpublished(nil, d.batchSize)
	if err != nil {
		return err
	}

	wg := errgroup.Group{}
	wg.SetLimit(10)
	for _, row := range rows {
		row := row
		wg.Go(func() error {
			var payload map[string]any
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				slog.Error("corrupt outbox payload", "id", row.ID, "err", err)
				return d.outboxRepository.IncrementAttempts(nil, row.ID)
			}

			event := Event{
				Type:          EventType(row.EventType),
				ProjectID:     row.ProjectID,
				CorrelationID: row.CorrelationID,
				Payload:       payload,
			}
			if err := d.publisher.Publish(ctx, event); err != nil {
				slog.Warn("could not publish outbox event",
					"id", row.ID, "eventType", row.EventType, "attempts", row.Attempts, "err", err)
				return d.outboxRepository.IncrementAttempts(nil, row.ID)
			}
			return d.outboxRepository.MarkPublished(nil, row.ID)
		})
	}
	return wg.Wait()
}
