package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ledger/internal/domain"
)

// Postgres SQLSTATE codes that mean the statement lost a lock race and had no effect.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
)

// MapError translates a driver error into the domain taxonomy.
// Lock contention and deadline expiry become ErrBusy; a plain cancellation is
// returned as-is; anything else is a StorageError.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrBusy, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected, codeQueryCanceled:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrBusy, err)
		}
	}
	return &domain.StorageError{Op: op, Err: err}
}
