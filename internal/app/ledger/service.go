package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
)

// ChangeNotifier is told after every committed balance or account change.
type ChangeNotifier interface {
	AccountsChanged(ctx context.Context) error
}

// Service is the balance-mutation engine. It validates input, then runs each
// operation as one isolated unit against the store.
type Service struct {
	store     domain.AccountStore
	notifier  ChangeNotifier
	opTimeout time.Duration
	logger    *zap.Logger
}

func NewLedgerService(
	store domain.AccountStore,
	notifier ChangeNotifier,
	opTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		notifier:  notifier,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

func (s *Service) CreateUser(ctx context.Context, name, email string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	userID, err := s.store.CreateUser(ctx, name, email)
	if err != nil {
		s.logFailure("Failed to create user", err)
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", zap.Int64("user_id", userID))
	s.notify(ctx)
	return userID, nil
}

func (s *Service) CreateAccount(ctx context.Context, userID int64, initialBalance decimal.Decimal) (int64, error) {
	if err := domain.ValidateInitialBalance(initialBalance); err != nil {
		s.logger.Warn("Rejected account creation", zap.Int64("user_id", userID), zap.Stringer("initial_balance", initialBalance), zap.Error(err))
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	accountID, err := s.store.CreateAccount(ctx, userID, initialBalance)
	if err != nil {
		s.logFailure("Failed to create account", err, zap.Int64("user_id", userID))
		return 0, fmt.Errorf("create account for user %d: %w", userID, err)
	}

	s.logger.Info("Account created",
		zap.Int64("account_id", accountID),
		zap.Int64("user_id", userID),
		zap.String("balance", domain.FormatMoney(initialBalance)))
	s.notify(ctx)
	return accountID, nil
}

// Deposit adds amount in a single atomic increment and returns the new balance.
func (s *Service) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		s.logger.Warn("Rejected deposit", zap.Int64("account_id", accountID), zap.Stringer("amount", amount))
		return decimal.Zero, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	balance, err := s.store.AddToBalance(ctx, accountID, amount)
	if err != nil {
		err = asBusy(err)
		s.logFailure("Deposit failed", err, zap.Int64("account_id", accountID), zap.String("amount", domain.FormatMoney(amount)))
		return decimal.Zero, fmt.Errorf("deposit to account %d: %w", accountID, err)
	}

	s.logger.Info("Deposit committed",
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMoney(amount)),
		zap.String("new_balance", domain.FormatMoney(balance)))
	s.notify(ctx)
	return balance, nil
}

// Withdraw reads, checks and writes the balance while holding the account lock,
// so no concurrent deposit or withdrawal can interleave with the check.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		s.logger.Warn("Rejected withdrawal", zap.Int64("account_id", accountID), zap.Stringer("amount", amount))
		return decimal.Zero, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var oldBalance, newBalance decimal.Decimal
	err := s.store.WithAccountLock(ctx, accountID, func(tx domain.BalanceTx) error {
		oldBalance = tx.Balance()
		if oldBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		newBalance = oldBalance.Sub(amount)
		return tx.SetBalance(ctx, newBalance)
	})
	if err != nil {
		err = asBusy(err)
		s.logFailure("Withdrawal failed", err,
			zap.Int64("account_id", accountID),
			zap.String("amount", domain.FormatMoney(amount)),
			zap.String("balance", domain.FormatMoney(oldBalance)))
		return decimal.Zero, fmt.Errorf("withdraw from account %d: %w", accountID, err)
	}

	s.logger.Info("Withdrawal committed",
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMoney(amount)),
		zap.String("old_balance", domain.FormatMoney(oldBalance)),
		zap.String("new_balance", domain.FormatMoney(newBalance)))
	s.notify(ctx)
	return newBalance, nil
}

func (s *Service) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	balance, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		s.logFailure("Failed to read balance", err, zap.Int64("account_id", accountID))
		return decimal.Zero, fmt.Errorf("get balance of account %d: %w", accountID, err)
	}
	return balance, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Service) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.AccountsChanged(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to publish account change", zap.Error(err))
	}
}

// logFailure logs business rejections at Warn and everything else at Error.
func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrBusy):
		s.logger.Warn(msg, fields...)
	default:
		s.logger.Error(msg, fields...)
	}
}

// asBusy reports an expired operation deadline as ErrBusy unless the store
// already classified it.
func asBusy(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrBusy) {
		return fmt.Errorf("%w: %w", domain.ErrBusy, err)
	}
	return err
}
