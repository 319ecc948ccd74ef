package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/monitoring"
	"ticket-exchange/internal/payment"
	"ticket-exchange/internal/queue"
	"ticket-exchange/internal/repository"
	"ticket-exchange/internal/transfer"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PurchaseService interface {
	Reserve(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	AuthorizePayment(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	InitiateTransfer(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	Confirm(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	Cancel(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	// Purchase 依序執行 Reserve、AuthorizePayment、InitiateTransfer
	Purchase(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error)
	// Reconcile 由營運人員重試留有註記的步驟
	Reconcile(ctx context.Context, ticketID uuid.UUID, operator model.Identity) (*model.PurchaseResult, error)
	// ReleaseExpired 釋放 reserved_at 早於 before 的保留，回傳釋放張數
	ReleaseExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// PurchaseDeps 購買流程的外部依賴，Events 可為 nil
type PurchaseDeps struct {
	Tickets   repository.TicketRepository
	Payments  payment.Gateway
	Transfers transfer.Gateway
	Events    queue.SagaEventQueue
	Now       func() time.Time
}

type PurchaseServiceImpl struct {
	tickets   repository.TicketRepository
	payments  payment.Gateway
	transfers transfer.Gateway
	events    queue.SagaEventQueue
	now       func() time.Time
	log       *zap.Logger
}

func NewPurchaseService(deps PurchaseDeps) PurchaseService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PurchaseServiceImpl{
		tickets:   deps.Tickets,
		payments:  deps.Payments,
		transfers: deps.Transfers,
		events:    deps.Events,
		now:       now,
		log:       logger.WithComponent("purchase"),
	}
}

var systemActor = model.Identity{UserID: "system"}

func result(outcome model.Outcome, t *model.Ticket) *model.PurchaseResult {
	return &model.PurchaseResult{Outcome: outcome, Ticket: t}
}

// sagaContext 外部呼叫一旦送出就不跟著請求取消，逾時由各 gateway 自行控制
func sagaContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *PurchaseServiceImpl) Reserve(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepReserve, caller, started, err) }()

	if caller.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsSeller(caller) {
		return nil, fmt.Errorf("%w: seller cannot buy their own ticket", apperrors.ErrUnauthorized)
	}
	if ticket.Status == model.TicketStatusPending && ticket.IsBuyer(caller) {
		return result(model.OutcomeReserved, ticket), nil
	}
	if ticket.Status != model.TicketStatusAvailable {
		return nil, fmt.Errorf("%w: ticket is %s", apperrors.ErrConflict, ticket.Status)
	}

	now := s.now()
	buyer := caller
	next := ticket.Clone()
	next.Status = model.TicketStatusPending
	next.Buyer = &buyer
	next.ReservedAt = &now
	next.ReservationID = uuid.NewString()

	// 唯一的防重複販售機制：status + version 條件更新，輸的一方直接回 Conflict，不重試
	updated, err := s.tickets.ConditionalUpdate(ctx, ticket, next)
	if err != nil {
		return nil, err
	}
	return result(model.OutcomeReserved, updated), nil
}

func (s *PurchaseServiceImpl) AuthorizePayment(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepAuthorize, caller, started, err) }()
	ctx = sagaContext(ctx)

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkPendingBuyer(ticket, caller); err != nil {
		return nil, err
	}

	if p := ticket.Payment; p != nil {
		switch p.Status {
		case model.PaymentStatusAuthorized, model.PaymentStatusCaptured:
			return result(model.OutcomeAuthorized, ticket), nil
		case model.PaymentStatusAwaitingConfirmation:
			refreshed, err := s.refreshPayment(ctx, ticket)
			if err != nil {
				return nil, err
			}
			return result(model.OutcomeAuthorized, refreshed), nil
		}
		// cancelled：重新授權
	}

	amount := model.MinorUnits(ticket.Price, ticket.Currency)
	auth, err := s.payments.Authorize(ctx, payment.AuthorizeRequest{
		Amount:   amount,
		Currency: ticket.Currency,
		Metadata: map[string]string{
			"ticket_id": ticket.ID.String(),
			"buyer_id":  ticket.Buyer.UserID,
			"seller_id": ticket.Seller.UserID,
		},
		// 同一版本的票券重送會拿到同一筆授權
		IdempotencyKey: fmt.Sprintf("authorize-%s-v%d", ticket.ID, ticket.Version),
	})
	if err != nil {
		return nil, err
	}
	if auth.Amount != amount || !strings.EqualFold(auth.Currency, ticket.Currency) {
		s.cancelOrphanPayment(ctx, ticket.ID, auth.AuthorizationID)
		return nil, fmt.Errorf("%w: authorized %d %s does not match ticket price %d %s",
			apperrors.ErrPaymentFailure, auth.Amount, auth.Currency, amount, ticket.Currency)
	}

	next := ticket.Clone()
	next.Payment = auth
	updated, err := s.tickets.ConditionalUpdate(ctx, ticket, next)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			latest, ferr := s.tickets.FindByID(ctx, ticketID)
			if ferr == nil && latest.Payment != nil && latest.Payment.AuthorizationID == auth.AuthorizationID {
				return result(model.OutcomeAuthorized, latest), nil
			}
			s.cancelOrphanPayment(ctx, ticket.ID, auth.AuthorizationID)
		}
		return nil, err
	}
	return result(model.OutcomeAuthorized, updated), nil
}

func (s *PurchaseServiceImpl) InitiateTransfer(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepInitiateTransfer, caller, started, err) }()
	ctx = sagaContext(ctx)

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkPendingBuyer(ticket, caller); err != nil {
		return nil, err
	}
	if ticket.Transfer != nil {
		return result(model.OutcomeTransferInitiated, ticket), nil
	}
	if ticket.Payment == nil {
		return nil, fmt.Errorf("%w: payment authorization required before transfer", apperrors.ErrConflict)
	}

	current := ticket
	if current.Payment.Status == model.PaymentStatusAwaitingConfirmation {
		if current, err = s.refreshPayment(ctx, current); err != nil {
			return nil, err
		}
	}
	if current.Payment.Status != model.PaymentStatusAuthorized {
		return nil, fmt.Errorf("%w: payment is %s", apperrors.ErrConflict, current.Payment.Status)
	}

	initiated, err := s.transfers.Initiate(ctx, transfer.InitiateRequest{
		Sender:         current.Seller,
		Recipient:      *current.Buyer,
		EventID:        externalEventID(current),
		Seats:          []model.SeatRef{current.Seat},
		Reference:      current.ID.String(),
		IdempotencyKey: initiateKey(current),
	})
	if err != nil {
		// 補償：取消授權，票券回到 available
		compStarted := time.Now()
		_, cerr := s.release(ctx, current)
		s.observe(ctx, ticketID, model.StepCompensate, caller, compStarted, cerr)
		if errors.Is(cerr, apperrors.ErrReconciliationRequired) {
			return nil, errors.Join(cerr, err)
		}
		return nil, err
	}

	next := current.Clone()
	next.Transfer = &model.TransferRecord{
		TransferID:    initiated.TransferID,
		AcceptanceURL: initiated.AcceptanceURL,
		Sender:        current.Seller,
		Recipient:     *current.Buyer,
		InitiatedAt:   s.now(),
	}
	updated, err := s.tickets.ConditionalUpdate(ctx, current, next)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			latest, ferr := s.tickets.FindByID(ctx, ticketID)
			if ferr == nil && latest.Transfer != nil && latest.Transfer.TransferID == initiated.TransferID {
				return result(model.OutcomeTransferInitiated, latest), nil
			}
			s.cancelOrphanTransfer(ctx, ticketID, initiated.TransferID)
		}
		return nil, err
	}
	return result(model.OutcomeTransferInitiated, updated), nil
}

func (s *PurchaseServiceImpl) Confirm(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepConfirm, caller, started, err) }()
	ctx = sagaContext(ctx)

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	switch {
	case ticket.Status == model.TicketStatusSold && ticket.IsBuyer(caller):
		// 已完成：回傳同一組確認碼，不再呼叫外部服務
		return result(model.OutcomeConfirmed, ticket), nil
	case ticket.Status == model.TicketStatusSold:
		return nil, fmt.Errorf("%w: caller is not the buyer", apperrors.ErrUnauthorized)
	case ticket.Status != model.TicketStatusPending:
		return nil, fmt.Errorf("%w: ticket is %s", apperrors.ErrConflict, ticket.Status)
	case !ticket.IsBuyer(caller):
		return nil, fmt.Errorf("%w: caller is not the buyer", apperrors.ErrUnauthorized)
	}

	// 只有「已請款、接受轉讓失敗」的註記可以由買家重試
	if note := ticket.Reconciliation; note != nil && note.Step != model.ReconcileAccept {
		return nil, reconciliationError(note)
	}
	if ticket.Transfer == nil {
		return nil, fmt.Errorf("%w: transfer has not been initiated", apperrors.ErrConflict)
	}
	if ticket.Payment == nil {
		return nil, fmt.Errorf("%w: payment authorization required", apperrors.ErrConflict)
	}

	return s.finalize(ctx, ticket)
}

// finalize 請款後接受轉讓，最後寫入 sold。請款失敗時票券維持 pending 且不呼叫 accept
func (s *PurchaseServiceImpl) finalize(ctx context.Context, ticket *model.Ticket) (*model.PurchaseResult, error) {
	current := ticket
	authID := current.Payment.AuthorizationID

	// 轉讓已取消就不能再接受，剩下的授權或款項交給人工取消或退款
	if tr := current.Transfer; tr.CancelledAt != nil {
		_, err := s.flag(ctx, current, current, model.ReconcileCancelPayment,
			fmt.Errorf("transfer %s was cancelled", tr.TransferID))
		return nil, err
	}

	if current.Payment.Status != model.PaymentStatusCaptured {
		auth, err := s.payments.Get(ctx, authID)
		if err != nil {
			return nil, err
		}

		switch auth.Status {
		case model.PaymentStatusAuthorized:
			if _, err := s.payments.Capture(ctx, authID); err != nil {
				return nil, err
			}
		case model.PaymentStatusCaptured:
			// 先前已請款但沒寫回
		default:
			return nil, fmt.Errorf("%w: payment %s is %s and cannot be captured",
				apperrors.ErrPaymentFailure, authID, auth.Status)
		}

		next := current.Clone()
		next.Payment.Status = model.PaymentStatusCaptured
		updated, err := s.tickets.ConditionalUpdate(ctx, current, next)
		if err != nil {
			s.log.Error("payment captured but ticket update failed",
				zap.String("ticket_id", current.ID.String()),
				zap.String("authorization_id", authID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: payment %s captured but ticket update failed: %v",
				apperrors.ErrReconciliationRequired, authID, err)
		}
		current = updated
	}

	code, err := s.transfers.Accept(ctx, current.Transfer.TransferID)
	if err != nil {
		_, ferr := s.flag(ctx, current, current, model.ReconcileAccept, err)
		return nil, errors.Join(ferr, err)
	}

	now := s.now()
	next := current.Clone()
	next.Status = model.TicketStatusSold
	next.Transfer.ConfirmationCode = code
	next.Transfer.AcceptedAt = &now
	next.Reconciliation = nil

	sold, err := s.tickets.ConditionalUpdate(ctx, current, next)
	if err != nil {
		s.log.Error("transfer accepted but ticket update failed",
			zap.String("ticket_id", current.ID.String()),
			zap.String("transfer_id", current.Transfer.TransferID),
			zap.String("confirmation_code", code),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: transfer accepted (%s) but ticket update failed: %v",
			apperrors.ErrReconciliationRequired, code, err)
	}
	return result(model.OutcomeConfirmed, sold), nil
}

func (s *PurchaseServiceImpl) Cancel(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepCancel, caller, started, err) }()
	ctx = sagaContext(ctx)

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := checkPendingBuyer(ticket, caller); err != nil {
		return nil, err
	}
	if ticket.Payment != nil && ticket.Payment.Status == model.PaymentStatusCaptured {
		return nil, fmt.Errorf("%w: payment %s already captured, refund required",
			apperrors.ErrReconciliationRequired, ticket.Payment.AuthorizationID)
	}

	released, err := s.release(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return result(model.OutcomeCancelled, released), nil
}

func (s *PurchaseServiceImpl) Purchase(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	if _, err := s.Reserve(ctx, ticketID, caller); err != nil {
		return nil, err
	}

	authorized, err := s.AuthorizePayment(ctx, ticketID, caller)
	if err != nil {
		return nil, err
	}
	// 持卡人尚未確認，client secret 交給前端完成確認後再發起轉讓
	if authorized.Ticket.Payment.Status == model.PaymentStatusAwaitingConfirmation {
		return authorized, nil
	}

	return s.InitiateTransfer(ctx, ticketID, caller)
}

func (s *PurchaseServiceImpl) Reconcile(ctx context.Context, ticketID uuid.UUID, operator model.Identity) (res *model.PurchaseResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, ticketID, model.StepReconcile, operator, started, err) }()
	ctx = sagaContext(ctx)

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	note := ticket.Reconciliation
	if note == nil || ticket.Status != model.TicketStatusPending {
		return nil, fmt.Errorf("%w: ticket has no pending reconciliation", apperrors.ErrConflict)
	}

	if note.Step == model.ReconcileAccept {
		return s.finalize(ctx, ticket)
	}

	released, err := s.release(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return result(model.OutcomeReleased, released), nil
}

func (s *PurchaseServiceImpl) ReleaseExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	pending := model.TicketStatusPending
	tickets, err := s.tickets.List(ctx, model.TicketFilter{
		Status:         &pending,
		ReservedBefore: &before,
		Limit:          limit,
	})
	if err != nil {
		return 0, err
	}

	released := 0
	for _, t := range tickets {
		// 已請款或等待人工處理的票券不自動釋放
		if t.Reconciliation != nil || (t.Payment != nil && t.Payment.Status == model.PaymentStatusCaptured) {
			continue
		}

		started := time.Now()
		_, err := s.release(sagaContext(ctx), t)
		s.observe(ctx, t.ID, model.StepExpire, systemActor, started, err)
		if err != nil {
			continue
		}
		released++
		monitoring.TrackReservationReleased()
	}
	return released, nil
}

// release 補償流程：取消轉讓、取消授權，再把票券寫回 available。
// 任一外部取消失敗時票券維持 pending 並留下註記
func (s *PurchaseServiceImpl) release(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	working := ticket.Clone()

	if tr := working.Transfer; tr != nil && tr.CancelledAt == nil {
		if err := s.transfers.Cancel(ctx, tr.TransferID); err != nil {
			return s.flag(ctx, ticket, working, model.ReconcileCancelTransfer, err)
		}
		now := s.now()
		tr.CancelledAt = &now
	}

	if p := working.Payment; p != nil && p.Status != model.PaymentStatusCancelled {
		if p.Status == model.PaymentStatusCaptured {
			return nil, fmt.Errorf("%w: payment %s already captured, refund required",
				apperrors.ErrReconciliationRequired, p.AuthorizationID)
		}
		if _, err := s.payments.Cancel(ctx, p.AuthorizationID); err != nil {
			return s.flag(ctx, ticket, working, model.ReconcileCancelPayment, err)
		}
		p.Status = model.PaymentStatusCancelled
	}

	return s.tickets.ConditionalUpdate(ctx, ticket, working.Released())
}

// flag 記錄需要人工處理的步驟，回傳的錯誤一定包含 ErrReconciliationRequired
func (s *PurchaseServiceImpl) flag(ctx context.Context, persisted, working *model.Ticket, step model.ReconciliationStep, cause error) (*model.Ticket, error) {
	note := &model.ReconciliationNote{Step: step, Reason: cause.Error(), At: s.now()}
	reconErr := reconciliationError(note)

	s.log.Error("compensation failed, reconciliation required",
		zap.String("ticket_id", persisted.ID.String()),
		zap.String("step", string(step)),
		zap.Error(cause),
	)

	next := working.Clone()
	next.Reconciliation = note
	flagged, err := s.tickets.ConditionalUpdate(ctx, persisted, next)
	if errors.Is(err, apperrors.ErrConflict) {
		flagged, err = s.flagLatest(ctx, persisted, working, note)
	}
	if err != nil {
		s.log.Error("failed to record reconciliation note",
			zap.String("ticket_id", persisted.ID.String()),
			zap.String("step", string(step)),
			zap.Error(err),
		)
		return nil, reconErr
	}
	return flagged, reconErr
}

// flagLatest 註記時票券已被其他請求更新（例如同時確認已請款），
// 改寫在最新版本上，已送出的轉讓取消一併保留，之後不會再對它呼叫 accept
func (s *PurchaseServiceImpl) flagLatest(ctx context.Context, persisted, working *model.Ticket, note *model.ReconciliationNote) (*model.Ticket, error) {
	latest, err := s.tickets.FindByID(ctx, persisted.ID)
	if err != nil {
		return nil, err
	}
	if latest.Status != model.TicketStatusPending || latest.ReservationID != persisted.ReservationID {
		return nil, fmt.Errorf("%w: ticket is now %s in reservation %q", apperrors.ErrConflict, latest.Status, latest.ReservationID)
	}

	next := latest.Clone()
	if tr := working.Transfer; tr != nil && tr.CancelledAt != nil &&
		next.Transfer != nil && next.Transfer.TransferID == tr.TransferID {
		at := *tr.CancelledAt
		next.Transfer.CancelledAt = &at
	}
	next.Reconciliation = note
	return s.tickets.ConditionalUpdate(ctx, latest, next)
}

func (s *PurchaseServiceImpl) refreshPayment(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	auth, err := s.payments.Get(ctx, ticket.Payment.AuthorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status == ticket.Payment.Status {
		return ticket, nil
	}

	next := ticket.Clone()
	next.Payment.Status = auth.Status
	return s.tickets.ConditionalUpdate(ctx, ticket, next)
}

func (s *PurchaseServiceImpl) cancelOrphanPayment(ctx context.Context, ticketID uuid.UUID, authorizationID string) {
	if _, err := s.payments.Cancel(ctx, authorizationID); err != nil {
		s.log.Error("orphaned payment authorization",
			zap.String("ticket_id", ticketID.String()),
			zap.String("authorization_id", authorizationID),
			zap.Error(err),
		)
	}
}

func (s *PurchaseServiceImpl) cancelOrphanTransfer(ctx context.Context, ticketID uuid.UUID, transferID string) {
	if err := s.transfers.Cancel(ctx, transferID); err != nil {
		s.log.Error("orphaned transfer",
			zap.String("ticket_id", ticketID.String()),
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
	}
}

// observe 記錄 metrics、log 與稽核事件，不影響流程結果
func (s *PurchaseServiceImpl) observe(ctx context.Context, ticketID uuid.UUID, step model.SagaStep, actor model.Identity, started time.Time, err error) {
	outcome, detail := "ok", ""
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
		detail = err.Error()
	}
	monitoring.TrackSagaStep(string(step), outcome, started)

	fields := []zap.Field{
		zap.String("ticket_id", ticketID.String()),
		zap.String("step", string(step)),
		zap.String("outcome", outcome),
		zap.String("actor_id", actor.UserID),
	}
	if err != nil {
		s.log.Warn("saga step failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Info("saga step", fields...)
	}

	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	event := &model.SagaEvent{
		ID:         uuid.New(),
		TicketID:   ticketID,
		Step:       step,
		Outcome:    outcome,
		ActorID:    actor.UserID,
		Detail:     detail,
		OccurredAt: s.now(),
	}
	if perr := s.events.Publish(pubCtx, event); perr != nil {
		s.log.Warn("publish saga event failed", zap.String("ticket_id", ticketID.String()), zap.Error(perr))
	}
}

func checkPendingBuyer(t *model.Ticket, caller model.Identity) error {
	if t.Status != model.TicketStatusPending {
		return fmt.Errorf("%w: ticket is %s", apperrors.ErrConflict, t.Status)
	}
	if !t.IsBuyer(caller) {
		return fmt.Errorf("%w: caller is not the buyer", apperrors.ErrUnauthorized)
	}
	if t.Reconciliation != nil {
		return reconciliationError(t.Reconciliation)
	}
	return nil
}

func reconciliationError(note *model.ReconciliationNote) error {
	return fmt.Errorf("%w: %s: %s", apperrors.ErrReconciliationRequired, note.Step, note.Reason)
}

// initiateKey 轉讓發起的冪等鍵。同一次保留重送拿到同一筆轉讓，取消後換人保留就是新的鍵
func initiateKey(t *model.Ticket) string {
	if t.ReservationID != "" {
		return "initiate-" + t.ReservationID
	}
	return fmt.Sprintf("initiate-%s-v%d", t.ID, t.Version)
}

func externalEventID(t *model.Ticket) string {
	if t.Event == nil {
		return ""
	}
	return t.Event.ExternalID
}
