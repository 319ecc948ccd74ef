package queue

import (
	"context"

	"ticket-exchange/internal/model"
)

// Delivery 交給 worker 的一筆 saga 事件，處理完必須 Ack 或 Nack
type Delivery struct {
	Data *model.SagaEvent
	Ack  func()
	Nack func(requeue bool)
}

type SagaEventQueue interface {
	Publish(ctx context.Context, event *model.SagaEvent) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

// MemorySagaEventQueue 以 channel 模擬 MQ，單機開發與測試使用
type MemorySagaEventQueue struct {
	ch chan *model.SagaEvent
}

func NewMemorySagaEventQueue(bufferSize int) *MemorySagaEventQueue {
	return &MemorySagaEventQueue{
		ch: make(chan *model.SagaEvent, bufferSize),
	}
}

func (q *MemorySagaEventQueue) Publish(ctx context.Context, event *model.SagaEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemorySagaEventQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							// 非阻塞放回，buffer 滿時直接丟棄
							select {
							case q.ch <- event:
							default:
							}
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
