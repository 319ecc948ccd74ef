package model

// Outcome 購買流程成功時的結果
type Outcome string

const (
	OutcomeReserved          Outcome = "RESERVED"
	OutcomeAuthorized        Outcome = "AUTHORIZED"
	OutcomeTransferInitiated Outcome = "TRANSFER_INITIATED"
	OutcomeConfirmed         Outcome = "CONFIRMED"
	OutcomeCancelled         Outcome = "CANCELLED"
	OutcomeReleased          Outcome = "RELEASED"
)

// PurchaseResult 購買流程回應；失敗時改以 apperrors 錯誤碼表示
type PurchaseResult struct {
	Outcome Outcome `json:"outcome"`
	Ticket  *Ticket `json:"ticket"`
}
