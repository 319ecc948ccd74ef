package apperrors

import "errors"

var (
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrConflict               = errors.New("ticket state changed")
	ErrUnauthorized           = errors.New("caller is not permitted to act on this ticket")
	ErrPaymentFailure         = errors.New("payment gateway failure")
	ErrTransferFailure        = errors.New("transfer gateway failure")
	ErrReconciliationRequired = errors.New("reconciliation required")
	ErrNoMatch                = errors.New("no matching event")
	ErrCatalogUnavailable     = errors.New("event catalog unavailable")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInternalServerError    = errors.New("internal server error")
)

// Code 對外穩定的錯誤碼
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeConflict               Code = "CONFLICT"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodePaymentFailure         Code = "PAYMENT_FAILURE"
	CodeTransferFailure        Code = "TRANSFER_FAILURE"
	CodeReconciliationRequired Code = "RECONCILIATION_REQUIRED"
	CodeNoMatch                Code = "NO_MATCH"
	CodeCatalogUnavailable     Code = "CATALOG_UNAVAILABLE"
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeInternal               Code = "INTERNAL"
)

// ReconciliationRequired wins over the failure that caused it: once an
// external side effect is stranded the caller must see the operator case.
var codeOrder = []struct {
	err  error
	code Code
}{
	{ErrReconciliationRequired, CodeReconciliationRequired},
	{ErrTicketNotFound, CodeNotFound},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrConflict, CodeConflict},
	{ErrPaymentFailure, CodePaymentFailure},
	{ErrTransferFailure, CodeTransferFailure},
	{ErrNoMatch, CodeNoMatch},
	{ErrCatalogUnavailable, CodeCatalogUnavailable},
	{ErrInvalidInput, CodeInvalidInput},
}

// CodeOf 回傳 err 對應的錯誤碼，未知錯誤一律為 INTERNAL
func CodeOf(err error) Code {
	for _, c := range codeOrder {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
