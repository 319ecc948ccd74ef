package mocks

import (
	"context"

	"ticket-exchange/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type ListingServiceMock struct {
	mock.Mock
}

func NewListingServiceMock() *ListingServiceMock {
	return &ListingServiceMock{}
}

func (m *ListingServiceMock) ListTicket(ctx context.Context, seller model.Identity, req model.ListTicketRequest) (*model.Ticket, error) {
	args := m.Called(ctx, seller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *ListingServiceMock) GetTicket(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *ListingServiceMock) ListTickets(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Ticket), args.Error(1)
}

func (m *ListingServiceMock) MatchEvent(ctx context.Context, sub model.EventSubmission, patronID string) (*model.MatchedEvent, error) {
	args := m.Called(ctx, sub, patronID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MatchedEvent), args.Error(1)
}

func (m *ListingServiceMock) ListReconciliation(ctx context.Context) ([]*model.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Ticket), args.Error(1)
}

func (m *ListingServiceMock) SagaEvents(ctx context.Context, ticketID uuid.UUID) ([]*model.SagaEvent, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SagaEvent), args.Error(1)
}
