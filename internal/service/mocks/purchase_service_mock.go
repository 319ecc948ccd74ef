package mocks

import (
	"context"
	"time"

	"ticket-exchange/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type PurchaseServiceMock struct {
	mock.Mock
}

func NewPurchaseServiceMock() *PurchaseServiceMock {
	return &PurchaseServiceMock{}
}

func (m *PurchaseServiceMock) result(args mock.Arguments) (*model.PurchaseResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseResult), args.Error(1)
}

func (m *PurchaseServiceMock) Reserve(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) AuthorizePayment(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) InitiateTransfer(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) Confirm(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) Cancel(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) Purchase(ctx context.Context, ticketID uuid.UUID, caller model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, caller))
}

func (m *PurchaseServiceMock) Reconcile(ctx context.Context, ticketID uuid.UUID, operator model.Identity) (*model.PurchaseResult, error) {
	return m.result(m.Called(ctx, ticketID, operator))
}

func (m *PurchaseServiceMock) ReleaseExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	args := m.Called(ctx, before, limit)
	return args.Int(0), args.Error(1)
}
