package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/model"
	"ticket-exchange/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "saga:events"
	ConsumerGroupName  = "saga-auditors"
	ConsumerNamePrefix = "auditor"
	eventField         = "event"
)

// RedisStreamSagaEventQueue 以 Redis Stream + consumer group 傳遞 saga 事件，
// 未 Ack 的訊息留在 PEL，超過 ClaimMinIdleTime 由 XAUTOCLAIM 領回重試
type RedisStreamSagaEventQueue struct {
	client       *redis.Client
	streamKey    string
	groupName    string
	consumerName string
	cfg          config.QueueConfig
	log          *zap.Logger
}

func NewRedisStreamSagaEventQueue(ctx context.Context, client *redis.Client, consumerID string, cfg config.QueueConfig) (*RedisStreamSagaEventQueue, error) {
	if consumerID == "" {
		consumerID = uuid.New().String()
	}
	if cfg.ClaimMinIdleTime <= 0 {
		cfg.ClaimMinIdleTime = 5 * time.Second
	}
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = 5
	}
	if cfg.ReadGroupBlockTime <= 0 {
		cfg.ReadGroupBlockTime = 2 * time.Second
	}

	q := &RedisStreamSagaEventQueue{
		client:       client,
		streamKey:    StreamKey,
		groupName:    ConsumerGroupName,
		consumerName: fmt.Sprintf("%s:%s", ConsumerNamePrefix, consumerID),
		cfg:          cfg,
		log:          logger.WithComponent("mq"),
	}
	if err := q.ensureConsumerGroup(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisStreamSagaEventQueue) ensureConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streamKey, q.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (q *RedisStreamSagaEventQueue) Publish(ctx context.Context, event *model.SagaEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal saga event: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		ID:     "*",
		Values: map[string]interface{}{eventField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (q *RedisStreamSagaEventQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		done := make(chan struct{})
		go func() {
			defer close(done)
			q.runAutoClaim(ctx, out)
		}()
		q.runReadLoop(ctx, out)
		<-done
	}()
	return out, nil
}

func (q *RedisStreamSagaEventQueue) runReadLoop(ctx context.Context, out chan<- Delivery) {
	for ctx.Err() == nil {
		q.readAndDeliver(ctx, out)
	}
}

// readAndDeliver 只讀新訊息 (">")；已投遞未 Ack 的交給 runAutoClaim
func (q *RedisStreamSagaEventQueue) readAndDeliver(ctx context.Context, out chan<- Delivery) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: q.consumerName,
		Streams:  []string{q.streamKey, ">"},
		Count:    10,
		Block:    q.cfg.ReadGroupBlockTime,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.log.Error("XReadGroup failed", zap.Error(err))
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if !q.deliver(ctx, out, msg) {
				return
			}
		}
	}
}

func (q *RedisStreamSagaEventQueue) runAutoClaim(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(q.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	startID := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, nextID, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   q.streamKey,
				Group:    q.groupName,
				Consumer: q.consumerName,
				MinIdle:  q.cfg.ClaimMinIdleTime,
				Count:    10,
				Start:    startID,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() == nil {
					q.log.Error("XAutoClaim failed", zap.Error(err))
				}
				continue
			}
			startID = nextID
			if startID == "" {
				startID = "0-0"
			}

			for _, msg := range claimed {
				if q.isPoison(ctx, msg.ID) {
					continue
				}
				if !q.deliver(ctx, out, msg) {
					return
				}
			}
		}
	}
}

// isPoison 重試次數超過上限的訊息直接 Ack 丟棄
func (q *RedisStreamSagaEventQueue) isPoison(ctx context.Context, messageID string) bool {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streamKey,
		Group:  q.groupName,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.log.Warn("XPendingExt failed", zap.String("message_id", messageID), zap.Error(err))
		return false
	}
	if len(pending) == 0 || int(pending[0].RetryCount) < q.cfg.MaxRetryCount {
		return false
	}

	q.log.Warn("discard poison saga event",
		zap.String("message_id", messageID),
		zap.Int64("retries", pending[0].RetryCount),
		zap.Int("max_retries", q.cfg.MaxRetryCount),
	)
	q.ack(ctx, messageID)
	return true
}

// deliver 回傳 false 代表 ctx 已結束
func (q *RedisStreamSagaEventQueue) deliver(ctx context.Context, out chan<- Delivery, msg redis.XMessage) bool {
	d, err := q.newDelivery(ctx, msg)
	if err != nil {
		// 格式錯誤的訊息重試也不會成功
		q.log.Warn("drop malformed saga event", zap.String("message_id", msg.ID), zap.Error(err))
		q.ack(ctx, msg.ID)
		return true
	}
	select {
	case out <- *d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *RedisStreamSagaEventQueue) newDelivery(ctx context.Context, msg redis.XMessage) (*Delivery, error) {
	raw, ok := msg.Values[eventField].(string)
	if !ok {
		return nil, fmt.Errorf("missing %q field", eventField)
	}
	var event model.SagaEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("unmarshal saga event: %w", err)
	}

	msgID := msg.ID
	return &Delivery{
		Data: &event,
		Ack:  func() { q.ack(ctx, msgID) },
		Nack: func(requeue bool) {
			if requeue {
				// 留在 PEL，等 XAUTOCLAIM 領回，形成延遲重試
				q.log.Info("saga event nack(requeue), will retry",
					zap.String("message_id", msgID),
					zap.Duration("claim_min_idle", q.cfg.ClaimMinIdleTime),
				)
				return
			}
			q.ack(ctx, msgID)
		},
	}, nil
}

func (q *RedisStreamSagaEventQueue) ack(ctx context.Context, messageID string) {
	// worker 關閉時 ctx 可能已取消，Ack 仍要送出
	if err := q.client.XAck(context.WithoutCancel(ctx), q.streamKey, q.groupName, messageID).Err(); err != nil {
		q.log.Error("XAck failed", zap.String("message_id", messageID), zap.Error(err))
	}
}
