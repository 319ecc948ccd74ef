package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error)
	// ConditionalUpdate 只有在資料庫中的 status 與 version 仍等於 current 時才寫入 next，否則回傳 ErrConflict
	ConditionalUpdate(ctx context.Context, current *model.Ticket, next *model.Ticket) (*model.Ticket, error)
}

type TicketRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &TicketRepositoryImpl{
		pool: pool,
	}
}

// ticketDocument 是存在 document 欄位裡的 JSON 文件
type ticketDocument struct {
	Seller         model.Identity              `json:"seller"`
	Buyer          *model.Identity             `json:"buyer,omitempty"`
	Price          decimal.Decimal             `json:"price"`
	Currency       string                      `json:"currency"`
	Seat           model.SeatRef               `json:"seat"`
	Event          *model.EventRef             `json:"event,omitempty"`
	Transfer       *model.TransferRecord       `json:"transfer,omitempty"`
	Payment        *model.PaymentAuthorization `json:"payment,omitempty"`
	Reconciliation *model.ReconciliationNote   `json:"reconciliation,omitempty"`
	ReservationID  string                      `json:"reservation_id,omitempty"`
}

func encodeDocument(t *model.Ticket) ([]byte, error) {
	return json.Marshal(ticketDocument{
		Seller:         t.Seller,
		Buyer:          t.Buyer,
		Price:          t.Price,
		Currency:       t.Currency,
		Seat:           t.Seat,
		Event:          t.Event,
		Transfer:       t.Transfer,
		Payment:        t.Payment,
		Reconciliation: t.Reconciliation,
		ReservationID:  t.ReservationID,
	})
}

const ticketColumns = `id, status, version, reserved_at, document, created_at, updated_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var (
		ticket model.Ticket
		raw    []byte
		doc    ticketDocument
	)
	err := row.Scan(
		&ticket.ID,
		&ticket.Status,
		&ticket.Version,
		&ticket.ReservedAt,
		&raw,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode ticket document %s: %w", ticket.ID, err)
	}

	ticket.Seller = doc.Seller
	ticket.Buyer = doc.Buyer
	ticket.Price = doc.Price
	ticket.Currency = doc.Currency
	ticket.Seat = doc.Seat
	ticket.Event = doc.Event
	ticket.Transfer = doc.Transfer
	ticket.Payment = doc.Payment
	ticket.Reconciliation = doc.Reconciliation
	ticket.ReservationID = doc.ReservationID

	return &ticket, nil
}

func buyerID(t *model.Ticket) *string {
	if t.Buyer == nil {
		return nil
	}
	return &t.Buyer.UserID
}

func (r *TicketRepositoryImpl) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if err := ticket.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	doc, err := encodeDocument(ticket)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tickets (
			id, status, version, seller_id, buyer_id, price, currency, reserved_at, document, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5::text::numeric, $6, $7, $8, $9, $9)
		RETURNING ` + ticketColumns

	now := time.Now().UTC()
	created, err := scanTicket(r.pool.QueryRow(ctx, query,
		ticket.ID, ticket.Status, ticket.Seller.UserID, buyerID(ticket),
		ticket.Price.String(), ticket.Currency, ticket.ReservedAt, doc, now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return created, nil
}

func (r *TicketRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}

	return ticket, nil
}

func (r *TicketRepositoryImpl) List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	where := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.ReservedBefore != nil {
		where = append(where, fmt.Sprintf("reserved_at <= $%d", argPos))
		args = append(args, *filter.ReservedBefore)
		argPos++
	}
	if filter.NeedsReconcile {
		where = append(where, "document->'reconciliation' IS NOT NULL")
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.ReservedBefore != nil {
		query += ` ORDER BY reserved_at ASC`
	} else {
		query += ` ORDER BY created_at DESC`
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]*model.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (r *TicketRepositoryImpl) ConditionalUpdate(ctx context.Context, current *model.Ticket, next *model.Ticket) (*model.Ticket, error) {
	if err := checkUpdate(current, next); err != nil {
		return nil, err
	}
	doc, err := encodeDocument(next)
	if err != nil {
		return nil, err
	}

	// status + version 比對成功才寫入，單一 row 的 compare-and-swap
	query := `
		UPDATE tickets
		SET status = $1, version = version + 1, buyer_id = $2, reserved_at = $3, document = $4, updated_at = $5
		WHERE id = $6 AND status = $7 AND version = $8
		RETURNING ` + ticketColumns

	updated, err := scanTicket(r.pool.QueryRow(ctx, query,
		next.Status, buyerID(next), next.ReservedAt, doc, time.Now().UTC(),
		current.ID, current.Status, current.Version,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 票券不會被刪除，沒有更新到代表被其他請求搶先
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	return updated, nil
}

// checkUpdate guards the fields the saga is never allowed to rewrite.
func checkUpdate(current, next *model.Ticket) error {
	if current.ID != next.ID {
		return fmt.Errorf("%w: ticket id mismatch", apperrors.ErrInvalidInput)
	}
	if current.Status != next.Status && !current.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: illegal transition %s -> %s", apperrors.ErrConflict, current.Status, next.Status)
	}
	if !current.Price.Equal(next.Price) || current.Currency != next.Currency {
		return fmt.Errorf("%w: price is immutable", apperrors.ErrInvalidInput)
	}
	if current.Seller != next.Seller {
		return fmt.Errorf("%w: seller is immutable", apperrors.ErrInvalidInput)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
