package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/database"
)

type Config struct {
	DBConfig struct {
		Host            string        `env:"LEDGER_DB_HOST"`
		Port            int           `env:"LEDGER_DB_PORT"`
		User            string        `env:"LEDGER_DB_USER"`
		Password        string        `env:"LEDGER_DB_PASSWORD"`
		Name            string        `env:"LEDGER_DB_NAME"`
		SSLMode         string        `env:"LEDGER_DB_SSLMODE"`
		MaxOpenConns    int           `env:"LEDGER_DB_MAX_OPEN_CONNS"`
		MaxIdleConns    int           `env:"LEDGER_DB_MAX_IDLE_CONNS"`
		ConnMaxLifetime time.Duration `env:"LEDGER_DB_CONN_MAX_LIFETIME"`
	}

	HTTPPort          int           `env:"LEDGER_HTTP_PORT"`
	LockTimeout       time.Duration `env:"LEDGER_LOCK_TIMEOUT"`
	OpTimeout         time.Duration `env:"LEDGER_OP_TIMEOUT"`
	MigrationsEnabled bool          `env:"LEDGER_MIGRATIONS_ENABLED"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB"`
	ReportCacheTTL  time.Duration `env:"LEDGER_REPORT_CACHE_TTL"`
	CommandReplyTTL time.Duration `env:"LEDGER_COMMAND_REPLY_TTL"`

	KafkaBrokerURL     string `env:"KAFKA_BROKER_URL"`
	KafkaCommandsTopic string `env:"KAFKA_COMMANDS_TOPIC"`
	KafkaRepliesTopic  string `env:"KAFKA_REPLIES_TOPIC"`
	KafkaConsumerGroup string `env:"KAFKA_CONSUMER_GROUP"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("LEDGER_DB_NAME", "ledger_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("LEDGER_DB_SSLMODE", "disable")
	if cfg.DBConfig.Port, err = getEnvAsInt("LEDGER_DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.DBConfig.MaxOpenConns, err = getEnvAsInt("LEDGER_DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConfig.MaxIdleConns, err = getEnvAsInt("LEDGER_DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.DBConfig.ConnMaxLifetime, err = getEnvAsDuration("LEDGER_DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.HTTPPort, err = getEnvAsInt("LEDGER_HTTP_PORT", 8082); err != nil {
		return nil, err
	}
	if cfg.LockTimeout, err = getEnvAsDuration("LEDGER_LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OpTimeout, err = getEnvAsDuration("LEDGER_OP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.MigrationsEnabled, err = getEnvAsBool("LEDGER_MIGRATIONS_ENABLED", true); err != nil {
		return nil, err
	}

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ReportCacheTTL, err = getEnvAsDuration("LEDGER_REPORT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CommandReplyTTL, err = getEnvAsDuration("LEDGER_COMMAND_REPLY_TTL", 72*time.Hour); err != nil {
		return nil, err
	}

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaCommandsTopic = getEnvOrDefault("KAFKA_COMMANDS_TOPIC", "ledger_commands")
	cfg.KafkaRepliesTopic = getEnvOrDefault("KAFKA_REPLIES_TOPIC", "ledger_replies")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "ledger-service-group")

	if cfg.LockTimeout < 0 || cfg.OpTimeout < 0 {
		return nil, errors.New("LEDGER_LOCK_TIMEOUT and LEDGER_OP_TIMEOUT must not be negative")
	}
	return cfg, nil
}

func (c *Config) Database() database.DBConfig {
	return database.DBConfig{
		Host:            c.DBConfig.Host,
		Port:            c.DBConfig.Port,
		User:            c.DBConfig.User,
		Password:        c.DBConfig.Password,
		DBName:          c.DBConfig.Name,
		SSLMode:         c.DBConfig.SSLMode,
		MaxOpenConns:    c.DBConfig.MaxOpenConns,
		MaxIdleConns:    c.DBConfig.MaxIdleConns,
		ConnMaxLifetime: c.DBConfig.ConnMaxLifetime,
	}
}

func (c *Config) Redis() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokerURL, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
