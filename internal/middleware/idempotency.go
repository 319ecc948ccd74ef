package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"ticket-exchange/internal/cache"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

const skipReplayKey = "idempotency_skip_replay"

// SkipReplay 標記這次回應只反映當下狀態，不保存給重送回放。
// 用在需要人工處理的錯誤：處理完後同一把鍵重送必須重新執行
func SkipReplay(c *gin.Context) {
	c.Set(skipReplayKey, true)
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency 有帶 Idempotency-Key 的請求只執行一次，重送時回放第一次的回應。
// 5xx 與 SkipReplay 標記的回應不保存，讓呼叫端可以重試
func Idempotency(store cache.IdempotencyStore) gin.HandlerFunc {
	log := logger.WithComponent("idempotency")

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		caller, _ := CallerFrom(c)
		fullKey := cache.IdempotencyKey(caller.UserID+":"+c.Request.Method+":"+c.Request.URL.Path, key)
		ctx := c.Request.Context()

		token, existing, err := store.Acquire(ctx, fullKey)
		switch {
		case errors.Is(err, cache.ErrRequestInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": err.Error(),
				"code":  apperrors.CodeConflict,
			})
			return
		case err != nil:
			// Redis 不可用時照常處理，不阻擋請求
			log.Warn("idempotency store unavailable", zap.String("key", fullKey), zap.Error(err))
			c.Next()
			return
		case existing != nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(existing.Status, existing.ContentType, existing.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		storeCtx := context.WithoutCancel(ctx)
		status := w.Status()
		if status >= http.StatusInternalServerError || c.GetBool(skipReplayKey) {
			if err := store.Release(storeCtx, fullKey, token); err != nil {
				log.Warn("release idempotency key failed", zap.String("key", fullKey), zap.Error(err))
			}
			return
		}

		resp := cache.StoredResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := store.Complete(storeCtx, fullKey, token, resp); err != nil {
			log.Warn("store idempotent response failed", zap.String("key", fullKey), zap.Error(err))
		}
	}
}
