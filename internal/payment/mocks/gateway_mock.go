package mocks

import (
	"context"

	"ticket-exchange/internal/model"
	"ticket-exchange/internal/payment"

	"github.com/stretchr/testify/mock"
)

type GatewayMock struct {
	mock.Mock
}

func NewGatewayMock() *GatewayMock {
	return &GatewayMock{}
}

func (m *GatewayMock) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*model.PaymentAuthorization, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentAuthorization), args.Error(1)
}

func (m *GatewayMock) Capture(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentAuthorization), args.Error(1)
}

func (m *GatewayMock) Cancel(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentAuthorization), args.Error(1)
}

func (m *GatewayMock) Get(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentAuthorization), args.Error(1)
}

var _ payment.Gateway = (*GatewayMock)(nil)
