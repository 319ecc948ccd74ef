package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/worker"

	"github.com/stretchr/testify/assert"
)

type fakeReleaser struct {
	mu      sync.Mutex
	cutoffs []time.Time
	limits  []int
}

func (f *fakeReleaser) ReleaseExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	f.limits = append(f.limits, limit)
	return 2, nil
}

func (f *fakeReleaser) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestReservationReaper_RunOnce(t *testing.T) {
	releaser := &fakeReleaser{}
	reaper := worker.NewReservationReaper(releaser, config.ReservationConfig{
		TTL:          15 * time.Minute,
		ReapInterval: time.Minute,
		ReapBatch:    50,
	})

	started := time.Now().UTC()
	released := reaper.RunOnce(context.Background())

	assert.Equal(t, 2, released)
	assert.Equal(t, []int{50}, releaser.limits)
	assert.WithinDuration(t, started.Add(-15*time.Minute), releaser.cutoffs[0], 5*time.Second)
}

func TestReservationReaper_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	releaser := &fakeReleaser{}
	worker.NewReservationReaper(releaser, config.ReservationConfig{
		TTL:          time.Minute,
		ReapInterval: 10 * time.Millisecond,
		ReapBatch:    10,
	}).Start(ctx)

	assert.Eventually(t, func() bool { return releaser.calls() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestReservationReaper_Disabled(t *testing.T) {
	releaser := &fakeReleaser{}
	worker.NewReservationReaper(releaser, config.ReservationConfig{}).Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, releaser.calls())
}
