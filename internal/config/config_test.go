package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DBConfig.Host)
	assert.Equal(t, 5432, cfg.DBConfig.Port)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5*time.Second, cfg.OpTimeout)
	assert.Equal(t, 8082, cfg.HTTPPort)
	assert.True(t, cfg.MigrationsEnabled)
	assert.Equal(t, 72*time.Hour, cfg.CommandReplyTTL)
	assert.Equal(t, "ledger_commands", cfg.KafkaCommandsTopic)
	assert.Equal(t, "ledger_replies", cfg.KafkaRepliesTopic)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_DB_HOST", "db")
	t.Setenv("LEDGER_DB_PORT", "6543")
	t.Setenv("LEDGER_DB_NAME", "bank")
	t.Setenv("LEDGER_DB_MAX_OPEN_CONNS", "50")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "750ms")
	t.Setenv("LEDGER_MIGRATIONS_ENABLED", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092, k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	db := cfg.Database()
	assert.Equal(t, "db", db.Host)
	assert.Equal(t, 6543, db.Port)
	assert.Equal(t, "bank", db.DBName)
	assert.Equal(t, 50, db.MaxOpenConns)
	assert.Equal(t, "postgres://user:password@db:6543/bank?sslmode=disable", db.URL())

	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.False(t, cfg.MigrationsEnabled)
	assert.Equal(t, 3, cfg.Redis().DB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"LEDGER_LOCK_TIMEOUT":       "soon",
		"LEDGER_DB_PORT":            "five",
		"LEDGER_MIGRATIONS_ENABLED": "maybe",
		"LEDGER_OP_TIMEOUT":         "-1s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, key)
		})
	}
}
