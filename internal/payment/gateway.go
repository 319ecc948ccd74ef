package payment

import (
	"context"

	"ticket-exchange/internal/model"
)

// AuthorizeRequest 建立授權 (hold) 的參數，Amount 為最小貨幣單位
type AuthorizeRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway 金流授權、請款與取消
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*model.PaymentAuthorization, error)
	Capture(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error)
	Cancel(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error)
	// Get 查詢金流端目前狀態，用於請款前確認
	Get(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error)
}
