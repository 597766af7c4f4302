// Package memory is an in-process account store. Every account carries its own
// lock so balance mutations on one account are serialized while other accounts
// proceed in parallel. Balances live only as long as the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type account struct {
	id      int64
	userID  int64
	balance decimal.Decimal // guarded by Store.mu
	lock    chan struct{}   // capacity 1; held for every balance mutation
}

type Store struct {
	mu            sync.RWMutex
	users         []domain.User
	accounts      map[int64]*account
	nextUserID    int64
	nextAccountID int64
	lockTimeout   time.Duration
}

var _ domain.AccountStore = (*Store)(nil)

// NewStore returns an empty store. lockTimeout bounds the wait for an account
// lock; zero waits until the context is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		accounts:    make(map[int64]*account),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) CreateUser(_ context.Context, name, email string) (int64, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return 0, domain.NewValidationError("name", "must not be empty")
	}
	if email == "" {
		return 0, domain.NewValidationError("email", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	s.users = append(s.users, domain.User{ID: s.nextUserID, Name: name, Email: email})
	return s.nextUserID, nil
}

func (s *Store) CreateAccount(_ context.Context, userID int64, initialBalance decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	s.accounts[s.nextAccountID] = &account{
		id:      s.nextAccountID,
		userID:  userID,
		balance: initialBalance,
		lock:    make(chan struct{}, 1),
	}
	return s.nextAccountID, nil
}

func (s *Store) GetBalance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return a.balance, nil
}

func (s *Store) UpdateBalance(ctx context.Context, accountID int64, newBalance decimal.Decimal) (int64, error) {
	a, ok := s.lookup(accountID)
	if !ok {
		return 0, nil
	}
	if err := s.acquire(ctx, a); err != nil {
		return 0, err
	}
	defer s.release(a)

	s.setBalance(a, newBalance)
	return 1, nil
}

func (s *Store) AddToBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	a, ok := s.lookup(accountID)
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	if err := s.acquire(ctx, a); err != nil {
		return decimal.Zero, err
	}
	defer s.release(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	a.balance = a.balance.Add(amount)
	return a.balance, nil
}

func (s *Store) WithAccountLock(ctx context.Context, accountID int64, fn func(tx domain.BalanceTx) error) error {
	a, ok := s.lookup(accountID)
	if !ok {
		return domain.ErrAccountNotFound
	}
	if err := s.acquire(ctx, a); err != nil {
		return err
	}
	defer s.release(a)

	s.mu.RLock()
	tx := &lockedAccount{accountID: a.id, balance: a.balance}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if tx.dirty {
		s.setBalance(a, tx.balance)
	}
	return nil
}

func (s *Store) ListAccountsWithUsers(_ context.Context) ([]domain.AccountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[int64][]*account)
	for _, a := range s.accounts {
		byUser[a.userID] = append(byUser[a.userID], a)
	}

	var rows []domain.AccountRow
	for _, u := range s.users {
		owned := byUser[u.ID]
		if len(owned) == 0 {
			rows = append(rows, domain.AccountRow{UserID: u.ID, Name: u.Name, Email: u.Email})
			continue
		}
		sort.Slice(owned, func(i, j int) bool { return owned[i].id < owned[j].id })
		for _, a := range owned {
			id, balance := a.id, a.balance
			rows = append(rows, domain.AccountRow{
				UserID:    u.ID,
				Name:      u.Name,
				Email:     u.Email,
				AccountID: &id,
				Balance:   &balance,
			})
		}
	}
	return rows, nil
}

func (s *Store) lookup(accountID int64) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	return a, ok
}

func (s *Store) setBalance(a *account, balance decimal.Decimal) {
	s.mu.Lock()
	a.balance = balance
	s.mu.Unlock()
}

func (s *Store) acquire(ctx context.Context, a *account) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case a.lock <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("lock account %d: waited %s: %w", a.id, s.lockTimeout, domain.ErrBusy)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("lock account %d: %w: %w", a.id, domain.ErrBusy, ctx.Err())
		}
		return ctx.Err()
	}
}

func (s *Store) release(a *account) {
	<-a.lock
}

type lockedAccount struct {
	accountID int64
	balance   decimal.Decimal
	dirty     bool
}

func (a *lockedAccount) AccountID() int64 { return a.accountID }

func (a *lockedAccount) Balance() decimal.Decimal { return a.balance }

// SetBalance stages the new balance; it becomes visible only when the
// surrounding WithAccountLock callback returns nil.
func (a *lockedAccount) SetBalance(_ context.Context, newBalance decimal.Decimal) error {
	a.balance = newBalance
	a.dirty = true
	return nil
}
