package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "150.00", want: "150"},
		{in: " 0.1 ", want: "0.1"},
		{in: "-20", want: "-20"},
		{in: "1.005", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney("amount", tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "amount", vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("-5")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("0.001")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrValidation)
}

func TestValidateInitialBalance(t *testing.T) {
	assert.NoError(t, ValidateInitialBalance(decimal.Zero))
	assert.NoError(t, ValidateInitialBalance(decimal.RequireFromString("100.50")))
	assert.ErrorIs(t, ValidateInitialBalance(decimal.RequireFromString("-0.01")), ErrValidation)
	assert.ErrorIs(t, ValidateInitialBalance(decimal.RequireFromString("1.999")), ErrValidation)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "150.00", FormatMoney(decimal.NewFromInt(150)))
	assert.Equal(t, "0.10", FormatMoney(decimal.RequireFromString("0.1")))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&StorageError{Op: "get balance", Err: cause})

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "get balance")
}
