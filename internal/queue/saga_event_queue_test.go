package queue_test

import (
	"context"
	"testing"
	"time"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(step model.SagaStep) *model.SagaEvent {
	return &model.SagaEvent{
		ID:         uuid.New(),
		TicketID:   uuid.New(),
		Step:       step,
		Outcome:    "ok",
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func receive(t *testing.T, ch <-chan queue.Delivery) queue.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return queue.Delivery{}
}

func TestMemorySagaEventQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemorySagaEventQueue(4)
	ch, err := q.Subscribe(ctx)
	require.NoError(t, err)

	event := newEvent(model.StepReserve)
	require.NoError(t, q.Publish(ctx, event))

	d := receive(t, ch)
	assert.Equal(t, event.ID, d.Data.ID)

	// requeue 後再收到同一筆
	d.Nack(true)
	again := receive(t, ch)
	assert.Equal(t, event.ID, again.Data.ID)
	again.Ack()
}

func TestMemorySagaEventQueue_PublishRespectsContext(t *testing.T) {
	q := queue.NewMemorySagaEventQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Publish(ctx, newEvent(model.StepReserve))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
