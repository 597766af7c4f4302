package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
	"ledger/internal/infrastructure/database"
)

type AccountRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewAccountRepository returns a repository backed by the db pool. lockTimeout
// bounds how long WithAccountLock waits for a row lock; zero waits until the
// context is done.
func NewAccountRepository(db *sql.DB, lockTimeout time.Duration) *AccountRepository {
	return &AccountRepository{db: db, lockTimeout: lockTimeout}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error) {
	return r.CreateAccountTx(ctx, r.db, userID, initialBalance)
}

func (r *AccountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, userID int64, initialBalance decimal.Decimal) (int64, error) {
	query := `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, $2)
		RETURNING account_id
	`
	var accountID int64
	if err := querier.QueryRowContext(ctx, query, userID, initialBalance).Scan(&accountID); err != nil {
		return 0, database.MapError(fmt.Sprintf("create account for user %d", userID), err)
	}
	return accountID, nil
}

func (r *AccountRepository) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	query := `SELECT balance FROM accounts WHERE account_id = $1`
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, database.MapError(fmt.Sprintf("get balance of account %d", accountID), err)
	}
	return balance, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, accountID int64, newBalance decimal.Decimal) (int64, error) {
	return r.UpdateBalanceTx(ctx, r.db, accountID, newBalance)
}

func (r *AccountRepository) UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID int64, newBalance decimal.Decimal) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = $1
		WHERE account_id = $2
	`
	res, err := querier.ExecContext(ctx, query, newBalance, accountID)
	if err != nil {
		return 0, database.MapError(fmt.Sprintf("update balance of account %d", accountID), err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, database.MapError("read rows affected", err)
	}
	return rowsAffected, nil
}

// AddToBalance increments the balance in a single statement so concurrent
// deposits compose instead of overwriting each other.
func (r *AccountRepository) AddToBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1
		WHERE account_id = $2
		RETURNING balance
	`
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, amount, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, database.MapError(fmt.Sprintf("add to balance of account %d", accountID), err)
	}
	return balance, nil
}

// WithAccountLock opens a transaction, takes the row lock on the account and
// hands the locked balance to fn. The transaction commits only if fn returns nil.
func (r *AccountRepository) WithAccountLock(ctx context.Context, accountID int64, fn func(tx domain.BalanceTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return database.MapError("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if r.lockTimeout > 0 {
		// SET does not accept bind parameters; the value is an integer we format ourselves.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutMillis(r.lockTimeout))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return database.MapError("set lock timeout", err)
		}
	}

	query := `SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`
	var balance decimal.Decimal
	if err = tx.QueryRowContext(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return database.MapError(fmt.Sprintf("lock account %d", accountID), err)
	}

	if err = fn(&lockedAccount{repo: r, tx: tx, accountID: accountID, balance: balance}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return database.MapError("commit transaction", err)
	}
	return nil
}

type lockedAccount struct {
	repo      *AccountRepository
	tx        *sql.Tx
	accountID int64
	balance   decimal.Decimal
}

func (a *lockedAccount) AccountID() int64 { return a.accountID }

func (a *lockedAccount) Balance() decimal.Decimal { return a.balance }

func (a *lockedAccount) SetBalance(ctx context.Context, newBalance decimal.Decimal) error {
	rows, err := a.repo.UpdateBalanceTx(ctx, a.tx, a.accountID, newBalance)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	a.balance = newBalance
	return nil
}

// lockTimeoutMillis rounds d up to whole milliseconds. Postgres reads a
// lock_timeout of 0 as no limit, so any positive d must stay at least 1.
func lockTimeoutMillis(d time.Duration) int64 {
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}
