package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ledger/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantBusy  bool
		wantStore bool
	}{
		{name: "lock timeout", err: &pq.Error{Code: codeLockNotAvailable}, wantBusy: true},
		{name: "serialization failure", err: &pq.Error{Code: codeSerializationFailure}, wantBusy: true},
		{name: "deadlock", err: &pq.Error{Code: codeDeadlockDetected}, wantBusy: true},
		{name: "statement canceled", err: &pq.Error{Code: codeQueryCanceled}, wantBusy: true},
		{name: "deadline", err: context.DeadlineExceeded, wantBusy: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, wantStore: true},
		{name: "connection done", err: sql.ErrConnDone, wantStore: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError("withdraw", tt.err)
			assert.Equal(t, tt.wantBusy, errors.Is(got, domain.ErrBusy))
			assert.Equal(t, tt.wantStore, errors.Is(got, domain.ErrStorage))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapErrorPassesThroughCancellation(t *testing.T) {
	got := MapError("deposit", context.Canceled)
	assert.ErrorIs(t, got, context.Canceled)
	assert.NotErrorIs(t, got, domain.ErrBusy)
	assert.NotErrorIs(t, got, domain.ErrStorage)

	assert.NoError(t, MapError("deposit", nil))
}

func TestDBConfigConnectionStrings(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ledger sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/ledger?sslmode=disable", cfg.URL())
}

func TestConnectWithRetryGivesUp(t *testing.T) {
	cfg := DBConfig{Host: "127.0.0.1", Port: 1, User: "u", Password: "p", DBName: "ledger", SSLMode: "disable"}
	_, err := ConnectWithRetry(context.Background(), cfg, 2, time.Millisecond, zap.NewNop())
	assert.ErrorContains(t, err, "after 2 attempts")
}
