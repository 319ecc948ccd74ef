package worker

import (
	"context"

	"ticket-exchange/internal/monitoring"
	"ticket-exchange/internal/queue"
	"ticket-exchange/internal/repository"
	"ticket-exchange/pkg/logger"

	"go.uber.org/zap"
)

type AuditWorker interface {
	// 訂閱 saga 事件並寫入稽核表
	Start(ctx context.Context) error
}

type AuditWorkerImpl struct {
	events repository.SagaEventRepository
	queue  queue.SagaEventQueue
	log    *zap.Logger
}

func NewAuditWorker(events repository.SagaEventRepository, queue queue.SagaEventQueue) AuditWorker {
	return &AuditWorkerImpl{
		events: events,
		queue:  queue,
		log:    logger.WithComponent("audit-worker"),
	}
}

// Start 非阻塞，ctx 取消後背景 goroutine 結束
func (w *AuditWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			event := msg.Data
			if err := w.events.Create(ctx, event); err != nil {
				// 資料庫暫時不可用，留給 queue 重送
				w.log.Warn("record saga event failed",
					zap.String("event_id", event.ID.String()),
					zap.String("ticket_id", event.TicketID.String()),
					zap.Error(err),
				)
				monitoring.TrackAuditEvent("retry")
				msg.Nack(true)
				continue
			}

			w.log.Info("saga event",
				zap.String("ticket_id", event.TicketID.String()),
				zap.String("step", string(event.Step)),
				zap.String("outcome", event.Outcome),
				zap.String("actor_id", event.ActorID),
			)
			monitoring.TrackAuditEvent("recorded")
			msg.Ack()
		}
	}()
	return nil
}
