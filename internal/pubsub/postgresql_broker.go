// Copyright (C) 2025 l3montree GmbH
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

package pubsub

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/lib/pq"
)

// Channel is the single NOTIFY channel all domain events travel on. The
// event type lives inside the payload, not in the channel name, so
// consumers only need one LISTEN.
const Channel = "procurio_domain_events"

var _ events.Publisher = &PostgreSQLBroker{}

// PostgreSQLBroker publishes domain events over PostgreSQL LISTEN/NOTIFY.
// NOTIFY delivery is fire and forget - durability comes from the outbox,
// the broker is only the low latency push on top of it.
type PostgreSQLBroker struct {
	db           *sql.DB
	listener     *pq.Listener
	subscribers  []chan events.Event
	subscribeMux sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isListening  bool
	listeningMux sync.Mutex
}

// NewPostgreSQLBroker opens a dedicated connection for publishing and a
// pq listener for subscriptions.
func NewPostgreSQLBroker(user, password, host, port, dbname string) (*PostgreSQLBroker, error) {
	connectionString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	listener := pq.NewListener(connectionString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PostgreSQL listener error", "error", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &PostgreSQLBroker{
		db:       db,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Publish implements events.Publisher.
func (b *PostgreSQLBroker) Publish(ctx context.Context, event events.Event) error {
	messageJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// NOTIFY does not support bind parameters
	_, err = b.db.ExecContext(ctx, fmt.Sprintf("SELECT pg_notify(%s, %s)",
		pq.QuoteLiteral(Channel), pq.QuoteLiteral(string(messageJSON))))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Debug("event published", "eventType", event.Type, "correlationId", event.CorrelationID)
	return nil
}

// Subscribe returns a channel of decoded domain events. A slow consumer
// drops messages rather than blocking the listener.
func (b *PostgreSQLBroker) Subscribe() (<-chan events.Event, error) {
	b.subscribeMux.Lock()
	defer b.subscribeMux.Unlock()

	ch := make(chan events.Event, 100)

	if len(b.subscribers) == 0 {
		if err := b.listener.Listen(Channel); err != nil {
			close(ch)
			return nil, fmt.Errorf("failed to listen on channel %s: %w", Channel, err)
		}
	}
	b.subscribers = append(b.subscribers, ch)

	b.listeningMux.Lock()
	if !b.isListening {
		b.isListening = true
		b.wg.Add(1)
		go b.processMessages()
	}
	b.listeningMux.Unlock()

	return ch, nil
}

func (b *PostgreSQLBroker) processMessages() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case notification := <-b.listener.Notify:
			if notification != nil {
				b.handleNotification(notification)
			}
		case <-time.After(90 * time.Second):
			if err := b.listener.Ping(); err != nil {
				slog.Error("failed to ping listener", "error", err)
			}
		}
	}
}

func (b *PostgreSQLBroker) handleNotification(notification *pq.Notification) {
	var event events.Event
	if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
		slog.Error("failed to unmarshal event", "error", err, "payload", notification.Extra)
		return
	}

	b.subscribeMux.RLock()
	defer b.subscribeMux.RUnlock()

	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- event:
		default:
			slog.Warn("subscriber channel full, dropping event",
				"eventType", event.Type, "correlationId", event.CorrelationID)
		}
	}
}

// Close stops the broker and cleans up resources.
func (b *PostgreSQLBroker) Close() error {
	b.cancel()
	b.wg.Wait()

	b.subscribeMux.Lock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	b.subscribeMux.Unlock()

	if err := b.listener.Close(); err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// IsHealthy checks if the broker is functioning properly.
func (b *PostgreSQLBroker) IsHealthy() bool {
	if b.db == nil {
		return false
	}
	if err := b.db.Ping(); err != nil {
		return false
	}
	return b.listener.Ping() == nil
}
