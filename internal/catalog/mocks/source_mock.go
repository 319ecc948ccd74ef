package mocks

import (
	"context"

	"ticket-exchange/internal/model"

	"github.com/stretchr/testify/mock"
)

type SourceMock struct {
	mock.Mock
}

func NewSourceMock() *SourceMock {
	return &SourceMock{}
}

func (m *SourceMock) ListEvents(ctx context.Context, patronID, seasonCode string) ([]model.EventCandidate, error) {
	args := m.Called(ctx, patronID, seasonCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EventCandidate), args.Error(1)
}
