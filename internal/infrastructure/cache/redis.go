package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// JSONCache stores values of type T as JSON under string keys. A zero ttl
// keeps keys until they are deleted.
type JSONCache[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewJSONCache[T any](client redis.Cmdable, prefix string, ttl time.Duration) *JSONCache[T] {
	return &JSONCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *JSONCache[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", c.prefix+key, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", c.prefix+key, err)
	}
	return &v, nil
}

func (c *JSONCache[T]) Set(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.prefix+key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.prefix+key, err)
	}
	return nil
}

// SetNX stores value only if key is absent and reports whether it did.
func (c *JSONCache[T]) SetNX(ctx context.Context, key string, value *T) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", c.prefix+key, err)
	}
	stored, err := c.client.SetNX(ctx, c.prefix+key, data, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", c.prefix+key, err)
	}
	return stored, nil
}

func (c *JSONCache[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.prefix+key, err)
	}
	return nil
}

// Counter is an integer kept under a single Redis key. A missing key reads as zero.
type Counter struct {
	client redis.Cmdable
	key    string
}

func NewCounter(client redis.Cmdable, key string) *Counter {
	return &Counter{client: client, key: key}
}

func (c *Counter) Current(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", c.key, err)
	}
	return n, nil
}

func (c *Counter) Incr(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", c.key, err)
	}
	return n, nil
}
