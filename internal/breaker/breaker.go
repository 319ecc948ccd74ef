package breaker

import (
	"context"
	"errors"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/monitoring"
	"ticket-exchange/pkg/logger"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOpen 斷路器開啟中，呼叫未送出
var ErrOpen = errors.New("circuit breaker is open")

// rejection 標記對方正常回應但拒絕請求 (例如卡片被拒)，不計入失敗次數
type rejection struct {
	err error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

// Reject 包裝業務層拒絕，斷路器視為成功呼叫
func Reject(err error) error {
	if err == nil {
		return nil
	}
	return &rejection{err: err}
}

// Breaker 包裝外部服務呼叫：每次呼叫套用逾時，連續失敗達門檻後暫停送出
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func New(name string, cfg config.BreakerConfig, timeout time.Duration) *Breaker {
	log := logger.WithComponent("breaker")
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var r *rejection
			return err == nil || errors.As(err, &r)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			monitoring.SetBreakerState(name, int(to))
		},
	}

	return &Breaker{
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
	}
}

// Name 回傳斷路器名稱
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// Call 在斷路器保護下執行 fn，fn 收到的 ctx 帶有單次呼叫逾時
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := b.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}

	return result.(T), nil
}

// Do 與 Call 相同，但 fn 不回傳值
func Do(ctx context.Context, b *Breaker, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
