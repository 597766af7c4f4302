package domain

import (
	"github.com/shopspring/decimal"
)

type User struct {
	ID    int64
	Name  string
	Email string
}

type Account struct {
	ID      int64
	UserID  int64
	Balance decimal.Decimal
}

// AccountRow is one row of the users LEFT JOIN accounts report.
// AccountID and Balance are nil for a user that owns no account.
type AccountRow struct {
	UserID    int64
	Name      string
	Email     string
	AccountID *int64
	Balance   *decimal.Decimal
}
