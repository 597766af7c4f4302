package domain

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BalanceTx exposes one locked account for the duration of WithAccountLock.
type BalanceTx interface {
	AccountID() int64
	// Balance is the balance read when the lock was taken.
	Balance() decimal.Decimal
	SetBalance(ctx context.Context, newBalance decimal.Decimal) error
}

// AccountStore is the durable keyed storage of users and accounts.
//
// AddToBalance and WithAccountLock are the only primitives allowed to change a
// balance relative to its current value; both are atomic with respect to each
// other on the same account id.
type AccountStore interface {
	CreateUser(ctx context.Context, name, email string) (int64, error)
	CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error)
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	// UpdateBalance overwrites the balance unconditionally and returns the number
	// of rows affected, 0 when the account does not exist.
	UpdateBalance(ctx context.Context, accountID int64, newBalance decimal.Decimal) (int64, error)
	ListAccountsWithUsers(ctx context.Context) ([]AccountRow, error)

	AddToBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	// WithAccountLock runs fn while holding the lock on accountID. Changes made
	// through the BalanceTx are committed only when fn returns nil.
	WithAccountLock(ctx context.Context, accountID int64, fn func(tx BalanceTx) error) error
}
