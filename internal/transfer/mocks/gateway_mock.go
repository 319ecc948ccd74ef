package mocks

import (
	"context"

	"ticket-exchange/internal/transfer"

	"github.com/stretchr/testify/mock"
)

type GatewayMock struct {
	mock.Mock
}

func NewGatewayMock() *GatewayMock {
	return &GatewayMock{}
}

func (m *GatewayMock) Initiate(ctx context.Context, req transfer.InitiateRequest) (*transfer.Initiated, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Initiated), args.Error(1)
}

func (m *GatewayMock) Accept(ctx context.Context, transferID string) (string, error) {
	args := m.Called(ctx, transferID)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) Cancel(ctx context.Context, transferID string) error {
	args := m.Called(ctx, transferID)
	return args.Error(0)
}

var _ transfer.Gateway = (*GatewayMock)(nil)
