package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/breaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_ReturnsResult(t *testing.T) {
	b := breaker.New("test-ok", config.BreakerConfig{MaxConsecutiveFailures: 2, OpenTimeout: time.Minute}, time.Second)

	got, err := breaker.Call(context.Background(), b, func(ctx context.Context) (string, error) {
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestCall_OpensAfterConsecutiveFailures(t *testing.T) {
	b := breaker.New("test-open", config.BreakerConfig{MaxConsecutiveFailures: 2, OpenTimeout: time.Minute}, time.Second)
	boom := errors.New("boom")
	calls := 0

	for i := 0; i < 2; i++ {
		err := breaker.Do(context.Background(), b, func(ctx context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
	}

	err := breaker.Do(context.Background(), b, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestCall_AppliesTimeout(t *testing.T) {
	b := breaker.New("test-timeout", config.BreakerConfig{MaxConsecutiveFailures: 5, OpenTimeout: time.Minute}, 20*time.Millisecond)

	err := breaker.Do(context.Background(), b, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_RejectionsDoNotTrip(t *testing.T) {
	b := breaker.New("test-reject", config.BreakerConfig{MaxConsecutiveFailures: 2, OpenTimeout: time.Minute}, time.Second)
	declined := errors.New("card declined")

	for i := 0; i < 5; i++ {
		err := breaker.Do(context.Background(), b, func(ctx context.Context) error {
			return breaker.Reject(declined)
		})
		assert.ErrorIs(t, err, declined)
		assert.NotErrorIs(t, err, breaker.ErrOpen)
	}
}
