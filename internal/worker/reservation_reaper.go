package worker

import (
	"context"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/pkg/logger"

	"go.uber.org/zap"
)

// ExpiryReleaser 釋放 reserved_at 早於 before 的 pending 票券，回傳釋放張數
type ExpiryReleaser interface {
	ReleaseExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// ReservationReaper 定期回收逾時未完成的保留
type ReservationReaper struct {
	releaser ExpiryReleaser
	cfg      config.ReservationConfig
	now      func() time.Time
	log      *zap.Logger
}

func NewReservationReaper(releaser ExpiryReleaser, cfg config.ReservationConfig) *ReservationReaper {
	return &ReservationReaper{
		releaser: releaser,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.WithComponent("reservation-reaper"),
	}
}

// Start 非阻塞；TTL 或間隔為 0 時不啟動
func (r *ReservationReaper) Start(ctx context.Context) {
	if r.cfg.TTL <= 0 || r.cfg.ReapInterval <= 0 {
		r.log.Info("reservation reaper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(r.cfg.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 執行一輪回收
func (r *ReservationReaper) RunOnce(ctx context.Context) int {
	cutoff := r.now().UTC().Add(-r.cfg.TTL)
	released, err := r.releaser.ReleaseExpired(ctx, cutoff, r.cfg.ReapBatch)
	if err != nil {
		r.log.Error("release expired reservations failed", zap.Time("cutoff", cutoff), zap.Error(err))
	}
	if released > 0 {
		r.log.Info("released expired reservations", zap.Int("count", released), zap.Time("cutoff", cutoff))
	}
	return released
}
