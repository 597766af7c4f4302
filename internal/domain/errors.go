package domain

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation failed")
var ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive value with at most two decimal places", ErrValidation)
var ErrAccountNotFound = errors.New("account not found")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrStorage = errors.New("storage failure")

// ErrBusy is returned when an operation gave up waiting for the account lock.
// The operation had no effect and the caller may retry.
var ErrBusy = errors.New("account is busy, retry later")

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps a persistence failure. Op names the store operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
