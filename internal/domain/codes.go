package domain

import "errors"

const (
	CodeOK                = "OK"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeBusy              = "BUSY"
	CodeStorage           = "STORAGE_ERROR"
)

// ErrorCode names the kind of err for replies on the wire. Unknown errors are
// reported as storage failures.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrBusy):
		return CodeBusy
	default:
		return CodeStorage
	}
}

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(code string) bool {
	return code == CodeBusy || code == CodeStorage
}
