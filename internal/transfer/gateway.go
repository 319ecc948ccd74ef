package transfer

import (
	"context"

	"ticket-exchange/internal/model"
)

// InitiateRequest 發起轉讓：sender 為賣家、recipient 為買家的票務系統帳號
type InitiateRequest struct {
	Sender    model.Identity
	Recipient model.Identity
	EventID   string
	Seats     []model.SeatRef
	// Reference 票券 ID，讓票務系統端可以對回這張票
	Reference string
	// IdempotencyKey 同一次保留重送不會產生第二筆轉讓，空白時退回 Reference
	IdempotencyKey string
}

type Initiated struct {
	TransferID    string
	AcceptanceURL string
}

// Gateway 票務系統的轉讓發起、接受與取消
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Initiated, error)
	Accept(ctx context.Context, transferID string) (confirmationCode string, err error)
	Cancel(ctx context.Context, transferID string) error
}
