package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	projectID := uuid.New()
	scope := core.NewScope(uuid.New(), projectID, "user-1", core.RoleProcurementManager)

	t.Run("record and flush publish through the outbox", func(t *testing.T) {
		outbox := testutils.NewFakeOutboxRepository()
		publisher := testutils.NewCapturingPublisher()
		recorder := events.NewRecorder(outbox, publisher)

		event := events.New(events.RFQCreated, projectID, map[string]any{"rfqId": uuid.New().String()})
		require.NoError(t, recorder.Record(nil, scope, event))
		assert.Equal(t, 1, outbox.Unpublished())
		assert.Empty(t, publisher.Published)

		recorder.Flush(context.Background(), []events.Event{event})
		assert.Equal(t, 0, outbox.Unpublished())
		require.Len(t, publisher.Published, 1)
		assert.Equal(t, event.CorrelationID, publisher.Published[0].CorrelationID)
	})

	t.Run("a failed publish leaves the row for the dispatcher", func(t *testing.T) {
		outbox := testutils.NewFakeOutboxRepository()
		publisher := testutils.NewCapturingPublisher()
		publisher.FailAll = true
		recorder := events.NewRecorder(outbox, publisher)

		event := events.New(events.OrderReleased, projectID, nil)
		require.NoError(t, recorder.Record(nil, scope, event))
		recorder.Flush(context.Background(), []events.Event{event})

		assert.Equal(t, 1, outbox.Unpublished())
	})

	t.Run("every event carries a fresh correlation id", func(t *testing.T) {
		a := events.New(events.RFQCreated, projectID, nil)
		b := events.New(events.RFQCreated, projectID, nil)
		assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	})
}

func TestDispatcherDrainsOutbox(t *testing.T) {
	projectID := uuid.New()
	scope := core.NewScope(uuid.New(), projectID, "user-1", core.RoleProcurementManager)

	outbox := testutils.NewFakeOutboxRepository()
	publisher := testutils.NewCapturingPublisher()
	recorder := events.NewRecorder(outbox, publisher)

	for i := 0; i < 3; i++ {
		event := events.New(events.QuoteSubmitted, projectID, map[string]any{"revisionNo": 1})
		require.NoError(t, recorder.Record(nil, scope, event))
	}
	require.Equal(t, 3, outbox.Unpublished())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := events.NewDispatcher(outbox, publisher, 5*time.Millisecond)
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for outbox.Unpublished() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, outbox.Unpublished())
	assert.Len(t, publisher.Types(), 3)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
