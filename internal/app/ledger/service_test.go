package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"ledger/internal/domain"
	"ledger/internal/repository/memory"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) AccountsChanged(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(5 * time.Second)
	return NewLedgerService(store, nil, 0, zaptest.NewLogger(t)), store
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	userID, err := svc.CreateUser(ctx, "Alice", "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)

	accountID, err := svc.CreateAccount(ctx, userID, dec("100.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), accountID)

	balance, err := svc.Deposit(ctx, accountID, dec("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "150.00", domain.FormatMoney(balance))

	_, err = svc.Withdraw(ctx, accountID, dec("200.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	balance, err = svc.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", domain.FormatMoney(balance))

	balance, err = svc.Withdraw(ctx, accountID, dec("150.00"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", domain.FormatMoney(balance))
}

func TestCreateAccountThenGetBalanceIsExact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for _, initial := range []string{"0", "0.01", "100.10", "99999999.99"} {
		id, err := svc.CreateAccount(ctx, 1, dec(initial))
		require.NoError(t, err)
		balance, err := svc.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec(initial)), "initial %s got %s", initial, balance)
	}
}

func TestCreateAccountRejectsNegativeBalance(t *testing.T) {
	svc, store := newService(t)

	_, err := svc.CreateAccount(context.Background(), 1, dec("-0.01"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	rows, _ := store.ListAccountsWithUsers(context.Background())
	assert.Empty(t, rows)
}

func TestCreateUserRejectsEmptyName(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateUser(context.Background(), "", "alice@x.com")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestWithdrawOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		amount      string
		wantErr     error
		wantBalance string
	}{
		{name: "less than balance", balance: "100", amount: "40", wantBalance: "60.00"},
		{name: "exact balance", balance: "100", amount: "100", wantBalance: "0.00"},
		{name: "one cent over", balance: "100", amount: "100.01", wantErr: domain.ErrInsufficientFunds, wantBalance: "100.00"},
		{name: "zero amount", balance: "100", amount: "0", wantErr: domain.ErrInvalidAmount, wantBalance: "100.00"},
		{name: "negative amount", balance: "100", amount: "-5", wantErr: domain.ErrInvalidAmount, wantBalance: "100.00"},
		{name: "sub-cent amount", balance: "100", amount: "0.001", wantErr: domain.ErrInvalidAmount, wantBalance: "100.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newService(t)
			id, err := svc.CreateAccount(ctx, 1, dec(tt.balance))
			require.NoError(t, err)

			_, err = svc.Withdraw(ctx, id, dec(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			balance, err := svc.GetBalance(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, domain.FormatMoney(balance))
		})
	}
}

func TestOperationsOnMissingAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Deposit(ctx, 42, dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Withdraw(ctx, 42, dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = svc.GetBalance(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	id, _ := svc.CreateAccount(ctx, 1, dec("10"))

	for _, amount := range []string{"0", "-1", "0.005"} {
		_, err := svc.Deposit(ctx, id, dec(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}
	balance, _ := svc.GetBalance(ctx, id)
	assert.Equal(t, "10.00", domain.FormatMoney(balance))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	id, _ := svc.CreateAccount(ctx, 1, dec("100"))

	var (
		wg           sync.WaitGroup
		successes    atomic.Int32
		insufficient atomic.Int32
		start        = make(chan struct{})
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Withdraw(ctx, id, dec("60"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), insufficient.Load())
	balance, _ := svc.GetBalance(ctx, id)
	assert.Equal(t, "40.00", domain.FormatMoney(balance))
}

func TestConcurrentDepositsAreNotLost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	id, _ := svc.CreateAccount(ctx, 1, decimal.Zero)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Deposit(ctx, id, dec("1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, _ := svc.GetBalance(ctx, id)
	assert.True(t, balance.Equal(decimal.NewFromInt(n)), "got %s", balance)
}

func TestMixedConcurrentTrafficKeepsBalanceNonNegative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	id, _ := svc.CreateAccount(ctx, 1, dec("50"))

	const n = 50
	var (
		wg        sync.WaitGroup
		withdrawn atomic.Int64
	)
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Deposit(ctx, id, dec("1"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Withdraw(ctx, id, dec("3")); err == nil {
				withdrawn.Add(3)
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	balance, _ := svc.GetBalance(ctx, id)
	assert.False(t, balance.IsNegative())
	want := decimal.NewFromInt(50 + n - withdrawn.Load())
	assert.True(t, balance.Equal(want), "balance %s want %s", balance, want)
}

// failingStore makes every locked write fail after the lock was taken.
type failingStore struct {
	*memory.Store
}

func (f failingStore) WithAccountLock(ctx context.Context, accountID int64, fn func(tx domain.BalanceTx) error) error {
	return f.Store.WithAccountLock(ctx, accountID, func(tx domain.BalanceTx) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct {
	domain.BalanceTx
}

func (failingTx) SetBalance(context.Context, decimal.Decimal) error {
	return &domain.StorageError{Op: "update balance", Err: errors.New("connection lost")}
}

func TestStorageErrorDuringWithdrawLeavesBalanceUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(time.Second)
	svc := NewLedgerService(failingStore{store}, nil, 0, zap.NewNop())
	id, _ := store.CreateAccount(ctx, 1, dec("100"))

	_, err := svc.Withdraw(ctx, id, dec("10"))
	assert.ErrorIs(t, err, domain.ErrStorage)

	balance, _ := store.GetBalance(ctx, id)
	assert.Equal(t, "100.00", domain.FormatMoney(balance))
}

func TestOperationTimeoutSurfacesBusy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	svc := NewLedgerService(store, nil, 20*time.Millisecond, zap.NewNop())
	id, _ := store.CreateAccount(ctx, 1, dec("100"))

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithAccountLock(ctx, id, func(tx domain.BalanceTx) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	_, err := svc.Withdraw(ctx, id, dec("10"))
	assert.ErrorIs(t, err, domain.ErrBusy)
	_, err = svc.Deposit(ctx, id, dec("10"))
	assert.ErrorIs(t, err, domain.ErrBusy)
}

func TestNotifierCalledOnlyAfterCommittedChanges(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	notifier.On("AccountsChanged", mock.Anything).Return(nil).Times(3)

	svc := NewLedgerService(memory.NewStore(time.Second), notifier, 0, zap.NewNop())
	id, err := svc.CreateAccount(ctx, 1, dec("10"))
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, id, dec("5"))
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, id, dec("100"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	_, err = svc.Withdraw(ctx, id, dec("15"))
	require.NoError(t, err)

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "AccountsChanged", 3)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	notifier.On("AccountsChanged", mock.Anything).Return(errors.New("redis down"))

	svc := NewLedgerService(memory.NewStore(time.Second), notifier, 0, zap.NewNop())
	id, err := svc.CreateAccount(ctx, 1, dec("10"))
	require.NoError(t, err)
	balance, err := svc.Deposit(ctx, id, dec("5"))
	require.NoError(t, err)
	assert.Equal(t, "15.00", domain.FormatMoney(balance))
}
