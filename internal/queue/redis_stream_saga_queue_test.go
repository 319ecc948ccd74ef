package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/queue"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testQueueConfig = config.QueueConfig{
	ClaimMinIdleTime:   200 * time.Millisecond,
	MaxRetryCount:      3,
	ReadGroupBlockTime: 100 * time.Millisecond,
}

func TestRedisStreamSagaEventQueue_Publish_Mock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectXGroupCreateMkStream(queue.StreamKey, queue.ConsumerGroupName, "0").SetVal("OK")

	q, err := queue.NewRedisStreamSagaEventQueue(ctx, db, "mock", testQueueConfig)
	require.NoError(t, err)

	event := newEvent(model.StepAuthorize)
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: queue.StreamKey,
		ID:     "*",
		Values: map[string]interface{}{"event": string(payload)},
	}).SetVal("1-0")

	require.NoError(t, q.Publish(ctx, event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStreamSagaEventQueue_ExistingGroup_Mock(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectXGroupCreateMkStream(queue.StreamKey, queue.ConsumerGroupName, "0").
		SetErr(errors.New("BUSYGROUP Consumer Group name already exists"))

	_, err := queue.NewRedisStreamSagaEventQueue(context.Background(), db, "mock", testQueueConfig)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStreamSagaEventQueue_SubscribeDeliversAndRetries(t *testing.T) {
	rdb := getTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = rdb.Del(ctx, queue.StreamKey).Err()

	q, err := queue.NewRedisStreamSagaEventQueue(ctx, rdb, "deliver-test", testQueueConfig)
	require.NoError(t, err)

	ch, err := q.Subscribe(ctx)
	require.NoError(t, err)

	event := newEvent(model.StepConfirm)
	require.NoError(t, q.Publish(ctx, event))

	first := receive(t, ch)
	assert.Equal(t, event.ID, first.Data.ID)
	assert.Equal(t, model.StepConfirm, first.Data.Step)

	// 未 Ack 的訊息會被 XAUTOCLAIM 領回
	first.Nack(true)
	retried := receive(t, ch)
	assert.Equal(t, event.ID, retried.Data.ID)
	retried.Ack()

	pending, err := rdb.XPending(ctx, queue.StreamKey, queue.ConsumerGroupName).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}
