// Package repository assembles the Postgres-backed account store.
package repository

import (
	"database/sql"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/users_repo"
)

// PostgresStore owns the connection pool shared by the user and account repositories.
type PostgresStore struct {
	*users_repo.UserRepository
	*accounts_repo.AccountRepository

	db *sql.DB
}

var _ domain.AccountStore = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		UserRepository:    users_repo.NewUserRepository(db),
		AccountRepository: accounts_repo.NewAccountRepository(db, lockTimeout),
		db:                db,
	}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
