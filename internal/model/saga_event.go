package model

import (
	"time"

	"github.com/google/uuid"
)

// SagaStep 購買流程步驟
type SagaStep string

const (
	StepReserve          SagaStep = "reserve"
	StepAuthorize        SagaStep = "authorize_payment"
	StepInitiateTransfer SagaStep = "initiate_transfer"
	StepCapture          SagaStep = "capture_payment"
	StepAcceptTransfer   SagaStep = "accept_transfer"
	StepConfirm          SagaStep = "confirm"
	StepCancel           SagaStep = "cancel"
	StepCompensate       SagaStep = "compensate"
	StepExpire           SagaStep = "expire"
	StepReconcile        SagaStep = "reconcile"
)

// SagaEvent 每個步驟的稽核紀錄，經由 queue 非同步寫入
type SagaEvent struct {
	ID         uuid.UUID `json:"id"`
	TicketID   uuid.UUID `json:"ticket_id"`
	Step       SagaStep  `json:"step"`
	Outcome    string    `json:"outcome"`
	ActorID    string    `json:"actor_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
