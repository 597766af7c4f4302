package users_repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
	"ledger/internal/infrastructure/database"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, name, email string) (int64, error) {
	return r.CreateUserTx(ctx, r.db, name, email)
}

func (r *UserRepository) CreateUserTx(ctx context.Context, querier domain.Querier, name, email string) (int64, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return 0, domain.NewValidationError("name", "must not be empty")
	}
	if email == "" {
		return 0, domain.NewValidationError("email", "must not be empty")
	}

	query := `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id
	`
	var userID int64
	if err := querier.QueryRowContext(ctx, query, name, email).Scan(&userID); err != nil {
		return 0, database.MapError("create user", err)
	}
	return userID, nil
}

// ListAccountsWithUsers returns one row per (user, account) pair, with the
// account columns null-extended for users that own no account.
func (r *UserRepository) ListAccountsWithUsers(ctx context.Context) ([]domain.AccountRow, error) {
	query := `
		SELECT u.id, u.name, u.email, a.account_id, a.balance
		FROM users u
		LEFT JOIN accounts a ON u.id = a.user_id
		ORDER BY u.id, a.account_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, database.MapError("list accounts", err)
	}
	defer rows.Close()

	var result []domain.AccountRow
	for rows.Next() {
		var (
			row       domain.AccountRow
			accountID sql.NullInt64
			balance   decimal.NullDecimal
		)
		if err := rows.Scan(&row.UserID, &row.Name, &row.Email, &accountID, &balance); err != nil {
			return nil, database.MapError("scan account row", err)
		}
		if accountID.Valid {
			id := accountID.Int64
			row.AccountID = &id
		}
		if balance.Valid {
			b := balance.Decimal
			row.Balance = &b
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(fmt.Sprintf("iterate account rows (%d read)", len(result)), err)
	}
	return result, nil
}
