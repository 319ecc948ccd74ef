package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"not found", apperrors.ErrTicketNotFound, apperrors.CodeNotFound},
		{"wrapped conflict", fmt.Errorf("reserve: %w", apperrors.ErrConflict), apperrors.CodeConflict},
		{"payment", fmt.Errorf("%w: card declined", apperrors.ErrPaymentFailure), apperrors.CodePaymentFailure},
		{"reconciliation beats transfer", errors.Join(apperrors.ErrTransferFailure, apperrors.ErrReconciliationRequired), apperrors.CodeReconciliationRequired},
		{"unknown", errors.New("boom"), apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.CodeOf(tt.err))
		})
	}
}
