package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/google/uuid"
)

// MemoryTicketRepository 以 mutex 保護的 map 實作相同的 compare-and-swap 語意，
// 用於單機開發與並發測試
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]*model.Ticket
	now     func() time.Time
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[uuid.UUID]*model.Ticket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if err := ticket.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[ticket.ID]; exists {
		return nil, fmt.Errorf("failed to create ticket: duplicate id %s", ticket.ID)
	}

	stored := ticket.Clone()
	stored.Version = 1
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt
	r.tickets[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *MemoryTicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets := make([]*model.Ticket, 0)
	for _, t := range r.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.ReservedBefore != nil && (t.ReservedAt == nil || t.ReservedAt.After(*filter.ReservedBefore)) {
			continue
		}
		if filter.NeedsReconcile && t.Reconciliation == nil {
			continue
		}
		tickets = append(tickets, t.Clone())
	}

	if filter.ReservedBefore != nil {
		sort.Slice(tickets, func(i, j int) bool { return tickets[i].ReservedAt.Before(*tickets[j].ReservedAt) })
	} else {
		sort.Slice(tickets, func(i, j int) bool { return tickets[i].CreatedAt.After(tickets[j].CreatedAt) })
	}
	if filter.Limit > 0 && len(tickets) > filter.Limit {
		tickets = tickets[:filter.Limit]
	}

	return tickets, nil
}

func (r *MemoryTicketRepository) ConditionalUpdate(ctx context.Context, current *model.Ticket, next *model.Ticket) (*model.Ticket, error) {
	if err := checkUpdate(current, next); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[current.ID]
	if !ok || stored.Status != current.Status || stored.Version != current.Version {
		return nil, apperrors.ErrConflict
	}

	updated := next.Clone()
	updated.Version = stored.Version + 1
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.now()
	r.tickets[updated.ID] = updated

	return updated.Clone(), nil
}
