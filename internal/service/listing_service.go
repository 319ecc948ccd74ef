package service

import (
	"context"
	"fmt"
	"strings"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/repository"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/google/uuid"
)

// EventMatcher 由 matcher.Matcher 實作
type EventMatcher interface {
	Match(ctx context.Context, sub model.EventSubmission, patronID string) (*model.MatchedEvent, error)
}

type ListingService interface {
	ListTicket(ctx context.Context, seller model.Identity, req model.ListTicketRequest) (*model.Ticket, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error)
	MatchEvent(ctx context.Context, sub model.EventSubmission, patronID string) (*model.MatchedEvent, error)
	ListReconciliation(ctx context.Context) ([]*model.Ticket, error)
	SagaEvents(ctx context.Context, ticketID uuid.UUID) ([]*model.SagaEvent, error)
}

type ListingServiceImpl struct {
	tickets repository.TicketRepository
	events  repository.SagaEventRepository
	matcher EventMatcher
}

// NewListingService events 可為 nil（未接稽核儲存時）
func NewListingService(tickets repository.TicketRepository, events repository.SagaEventRepository, matcher EventMatcher) ListingService {
	return &ListingServiceImpl{
		tickets: tickets,
		events:  events,
		matcher: matcher,
	}
}

func (s *ListingServiceImpl) ListTicket(ctx context.Context, seller model.Identity, req model.ListTicketRequest) (*model.Ticket, error) {
	if seller.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !model.IsCurrencyCode(currency) {
		return nil, fmt.Errorf("%w: invalid currency %q", apperrors.ErrInvalidInput, req.Currency)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", apperrors.ErrInvalidInput)
	}
	if !req.Price.Equal(req.Price.Round(model.CurrencyExponent(currency))) {
		return nil, fmt.Errorf("%w: price %s has more precision than %s allows", apperrors.ErrInvalidInput, req.Price, currency)
	}

	ticket := &model.Ticket{
		Seller:   seller,
		Price:    req.Price,
		Currency: currency,
		Status:   model.TicketStatusAvailable,
		Seat:     req.Seat,
	}

	if req.Event != nil {
		matched, err := s.matcher.Match(ctx, *req.Event, seller.PatronID)
		if err != nil {
			return nil, err
		}
		ticket.Event = matched.Ref()
	}

	return s.tickets.Create(ctx, ticket)
}

func (s *ListingServiceImpl) GetTicket(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	return s.tickets.FindByID(ctx, ticketID)
}

func (s *ListingServiceImpl) ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

func (s *ListingServiceImpl) MatchEvent(ctx context.Context, sub model.EventSubmission, patronID string) (*model.MatchedEvent, error) {
	return s.matcher.Match(ctx, sub, patronID)
}

func (s *ListingServiceImpl) ListReconciliation(ctx context.Context) ([]*model.Ticket, error) {
	return s.tickets.List(ctx, model.TicketFilter{NeedsReconcile: true})
}

func (s *ListingServiceImpl) SagaEvents(ctx context.Context, ticketID uuid.UUID) ([]*model.SagaEvent, error) {
	if _, err := s.tickets.FindByID(ctx, ticketID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []*model.SagaEvent{}, nil
	}
	return s.events.ListByTicketID(ctx, ticketID)
}
