package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits a monetary amount may carry.
const MoneyScale = 2

// ParseMoney parses a decimal string such as "150.00" into an exact amount.
// Values with more than two fractional digits are rejected instead of rounded.
func ParseMoney(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError(field, "value is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError(field, "not a number")
	}
	if !HasCentPrecision(d) {
		return decimal.Zero, NewValidationError(field, "more than two decimal places")
	}
	return d, nil
}

// HasCentPrecision reports whether d is representable in whole cents.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// ValidateAmount checks a deposit or withdrawal amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !HasCentPrecision(amount) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateInitialBalance checks the opening balance of a new account.
func ValidateInitialBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return NewValidationError("initial_balance", "must not be negative")
	}
	if !HasCentPrecision(balance) {
		return NewValidationError("initial_balance", "more than two decimal places")
	}
	return nil
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
