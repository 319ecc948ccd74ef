package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/queue"
	"ticket-exchange/internal/repository"
	"ticket-exchange/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventRepo 第一次寫入失敗，之後成功
type fakeEventRepo struct {
	repository.SagaEventRepository

	mu       sync.Mutex
	failures int
	recorded chan *model.SagaEvent
}

func (r *fakeEventRepo) Create(ctx context.Context, event *model.SagaEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("db unavailable")
	}
	r.recorded <- event
	return nil
}

func TestAuditWorker_RecordsEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemorySagaEventQueue(10)
	repo := &fakeEventRepo{recorded: make(chan *model.SagaEvent, 1)}

	require.NoError(t, worker.NewAuditWorker(repo, q).Start(ctx))

	event := &model.SagaEvent{ID: uuid.New(), TicketID: uuid.New(), Step: model.StepReserve, Outcome: "ok"}
	require.NoError(t, q.Publish(ctx, event))

	select {
	case got := <-repo.recorded:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("worker did not record the event in time")
	}
}

func TestAuditWorker_RetriesOnFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemorySagaEventQueue(10)
	repo := &fakeEventRepo{failures: 1, recorded: make(chan *model.SagaEvent, 1)}

	require.NoError(t, worker.NewAuditWorker(repo, q).Start(ctx))

	event := &model.SagaEvent{ID: uuid.New(), TicketID: uuid.New(), Step: model.StepCancel, Outcome: "ok"}
	require.NoError(t, q.Publish(ctx, event))

	select {
	case got := <-repo.recorded:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("worker did not retry the event")
	}
}
