package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/infrastructure/cache"
)

const none = "None"

// AccountView is one line of the accounts report. AccountID and Balance are
// nil for users that own no account.
type AccountView struct {
	UserID    int64            `json:"user_id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	AccountID *int64           `json:"account_id"`
	Balance   *decimal.Decimal `json:"balance"`
}

func (v AccountView) AccountIDString() string {
	if v.AccountID == nil {
		return none
	}
	return strconv.FormatInt(*v.AccountID, 10)
}

func (v AccountView) BalanceString() string {
	if v.Balance == nil {
		return none
	}
	return domain.FormatMoney(*v.Balance)
}

func (v AccountView) Format() string {
	return fmt.Sprintf("User ID: %d, Name: %s, Email: %s, Account ID: %s, Balance: %s",
		v.UserID, v.Name, v.Email, v.AccountIDString(), v.BalanceString())
}

type Report struct {
	Accounts    []AccountView `json:"accounts"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type AccountLister interface {
	ListAccountsWithUsers(ctx context.Context) ([]domain.AccountRow, error)
}

type ReportCache interface {
	Get(ctx context.Context, key string) (*Report, error)
	Set(ctx context.Context, key string, value *Report) error
}

// Generations counts account changes. Reports are cached per generation, so a
// report built before a change is never served after it.
type Generations interface {
	Current(ctx context.Context) (int64, error)
	Incr(ctx context.Context) (int64, error)
}

// Service answers read-only queries. It never mutates the store.
type Service struct {
	store       AccountLister
	cache       ReportCache
	generations Generations
	logger      *zap.Logger
}

// NewReportService builds the query service. If cache or generations is nil
// every call reads the store.
func NewReportService(store AccountLister, cache ReportCache, generations Generations, logger *zap.Logger) *Service {
	if cache == nil || generations == nil {
		cache, generations = nil, nil
	}
	return &Service{
		store:       store,
		cache:       cache,
		generations: generations,
		logger:      logger,
	}
}

func (s *Service) ListAccounts(ctx context.Context) ([]AccountView, error) {
	key, cached := s.reportKey(ctx)
	if cached {
		report, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			return report.Accounts, nil
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn("Report cache read failed, reading store", zap.Error(err))
		}
	}

	rows, err := s.store.ListAccountsWithUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list accounts", zap.Error(err))
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	views := make([]AccountView, 0, len(rows))
	for _, row := range rows {
		views = append(views, AccountView{
			UserID:    row.UserID,
			Name:      row.Name,
			Email:     row.Email,
			AccountID: row.AccountID,
			Balance:   row.Balance,
		})
	}

	if cached {
		report := &Report{Accounts: views, GeneratedAt: time.Now().UTC()}
		if err := s.cache.Set(ctx, key, report); err != nil {
			s.logger.Warn("Failed to cache accounts report", zap.Error(err))
		}
	}
	return views, nil
}

// AccountsChanged moves to a new generation so the next query reads the store.
func (s *Service) AccountsChanged(ctx context.Context) error {
	if s.generations == nil {
		return nil
	}
	if _, err := s.generations.Incr(ctx); err != nil {
		return fmt.Errorf("invalidate accounts report: %w", err)
	}
	return nil
}

// reportKey returns the cache key of the current generation. The generation
// is read before the store, so a report is never filed under a generation
// newer than its data.
func (s *Service) reportKey(ctx context.Context) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	generation, err := s.generations.Current(ctx)
	if err != nil {
		s.logger.Warn("Report generation unavailable, reading store", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("accounts:%d", generation), true
}
