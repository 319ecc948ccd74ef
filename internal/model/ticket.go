package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketStatus 票券狀態類型
type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusSold      TicketStatus = "sold"
)

// IsValid 驗證狀態是否有效
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusAvailable, TicketStatusPending, TicketStatusSold:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	transitions := map[TicketStatus][]TicketStatus{
		TicketStatusAvailable: {TicketStatusPending},
		TicketStatusPending:   {TicketStatusSold, TicketStatusAvailable},
		TicketStatusSold:      {}, // 終態
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// HasBuyer 回傳此狀態下 buyer 是否必須存在
func (s TicketStatus) HasBuyer() bool {
	return s == TicketStatusPending || s == TicketStatusSold
}

// Identity 使用者身分快照：平台帳號與票務系統 patron 帳號
type Identity struct {
	UserID   string `json:"user_id"`
	PatronID string `json:"patron_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// SeatRef 票務系統上的座位位置
type SeatRef struct {
	Section string `json:"section"`
	Row     string `json:"row"`
	Seat    string `json:"seat"`
}

// EventRef 已比對成功的外部活動參照
type EventRef struct {
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Venue      string    `json:"venue"`
	Date       time.Time `json:"date"`
}

// TransferRecord 內嵌於票券的轉讓紀錄
type TransferRecord struct {
	TransferID       string     `json:"transfer_id"`
	AcceptanceURL    string     `json:"acceptance_url"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	Sender           Identity   `json:"sender"`
	Recipient        Identity   `json:"recipient"`
	InitiatedAt      time.Time  `json:"initiated_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// PaymentStatus 金流授權狀態
type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	// 金流端尚未完成持卡人確認，不可請款
	PaymentStatusAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
)

// PaymentAuthorization 金流授權參照，Amount 為最小貨幣單位
type PaymentAuthorization struct {
	AuthorizationID string        `json:"authorization_id"`
	Status          PaymentStatus `json:"status"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	ClientSecret    string        `json:"client_secret,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ReconciliationStep 需要人工處理的步驟
type ReconciliationStep string

const (
	ReconcileAccept         ReconciliationStep = "accept_transfer"
	ReconcileCancelTransfer ReconciliationStep = "cancel_transfer"
	ReconcileCancelPayment  ReconciliationStep = "cancel_payment"
)

// ReconciliationNote 補償失敗後留在票券上的註記
type ReconciliationNote struct {
	Step   ReconciliationStep `json:"step"`
	Reason string             `json:"reason"`
	At     time.Time          `json:"at"`
}

// Ticket 票券模型
type Ticket struct {
	ID             uuid.UUID             `json:"id"`
	Seller         Identity              `json:"seller"`
	Buyer          *Identity             `json:"buyer,omitempty"`
	Price          decimal.Decimal       `json:"price"`
	Currency       string                `json:"currency"`
	Status         TicketStatus          `json:"status"`
	Seat           SeatRef               `json:"seat"`
	Event          *EventRef             `json:"event,omitempty"`
	Transfer       *TransferRecord       `json:"transfer,omitempty"`
	Payment        *PaymentAuthorization `json:"payment,omitempty"`
	Reconciliation *ReconciliationNote   `json:"reconciliation,omitempty"`
	ReservedAt     *time.Time            `json:"reserved_at,omitempty"`
	// ReservationID 每次保留產生一次，外部請求的冪等鍵以此區分不同買家
	ReservationID  string                `json:"reservation_id,omitempty"`
	Version        int                   `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// IsBuyer 檢查呼叫者是否為此票券的買家
func (t *Ticket) IsBuyer(caller Identity) bool {
	return t.Buyer != nil && caller.UserID != "" && t.Buyer.UserID == caller.UserID
}

// IsSeller 檢查呼叫者是否為此票券的賣家
func (t *Ticket) IsSeller(caller Identity) bool {
	return caller.UserID != "" && t.Seller.UserID == caller.UserID
}

// Clone returns a deep copy so callers can build the next state without
// touching the one read from the store.
func (t *Ticket) Clone() *Ticket {
	c := *t
	if t.Buyer != nil {
		b := *t.Buyer
		c.Buyer = &b
	}
	if t.Event != nil {
		e := *t.Event
		c.Event = &e
	}
	if t.Transfer != nil {
		tr := *t.Transfer
		c.Transfer = &tr
	}
	if t.Payment != nil {
		p := *t.Payment
		c.Payment = &p
	}
	if t.Reconciliation != nil {
		r := *t.Reconciliation
		c.Reconciliation = &r
	}
	if t.ReservedAt != nil {
		at := *t.ReservedAt
		c.ReservedAt = &at
	}
	return &c
}

// Released 回傳回到 available 的下一個狀態，清除買家、轉讓、金流與註記
func (t *Ticket) Released() *Ticket {
	next := t.Clone()
	next.Status = TicketStatusAvailable
	next.Buyer = nil
	next.Transfer = nil
	next.Payment = nil
	next.Reconciliation = nil
	next.ReservedAt = nil
	next.ReservationID = ""
	return next
}

// Validate checks the document invariants enforced at the store boundary.
func (t *Ticket) Validate() error {
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Seller.UserID == "" {
		return fmt.Errorf("seller is required")
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if !IsCurrencyCode(t.Currency) {
		return fmt.Errorf("invalid currency %q", t.Currency)
	}
	if t.Status.HasBuyer() != (t.Buyer != nil) {
		return fmt.Errorf("buyer must be set iff status is pending or sold (status=%s)", t.Status)
	}
	if t.Transfer != nil {
		if t.Transfer.TransferID == "" {
			return fmt.Errorf("transfer record without transfer id")
		}
	}
	if t.Status == TicketStatusSold && (t.Transfer == nil || t.Transfer.ConfirmationCode == "") {
		return fmt.Errorf("sold ticket requires a confirmation code")
	}
	if t.Payment != nil {
		if t.Payment.AuthorizationID == "" {
			return fmt.Errorf("payment reference without authorization id")
		}
		if t.Payment.Amount != MinorUnits(t.Price, t.Currency) || !strings.EqualFold(t.Payment.Currency, t.Currency) {
			return fmt.Errorf("payment amount %d %s does not match ticket price", t.Payment.Amount, t.Payment.Currency)
		}
	}
	return nil
}

// IsCurrencyCode 檢查是否為三碼 ISO 4217 貨幣代碼
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true, "KRW": true,
	"MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true, "VUV": true, "XAF": true,
	"XOF": true, "XPF": true,
}

// CurrencyExponent 貨幣小數位數，零小數貨幣為 0，其餘為 2
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// MinorUnits 將價格轉為最小貨幣單位 (USD 25.00 -> 2500)
func MinorUnits(price decimal.Decimal, currency string) int64 {
	return price.Shift(CurrencyExponent(currency)).Round(0).IntPart()
}

// TicketFilter 列表查詢條件
type TicketFilter struct {
	Status         *TicketStatus
	NeedsReconcile bool
	ReservedBefore *time.Time
	Limit          int
}

// ListTicketRequest 賣家上架票券請求
type ListTicketRequest struct {
	Price    decimal.Decimal  `json:"price"`
	Currency string           `json:"currency" binding:"required,len=3"`
	Seat     SeatRef          `json:"seat"`
	Event    *EventSubmission `json:"event,omitempty"`
}
