package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestJSONCacheSurfacesConnectionErrors(t *testing.T) {
	c := NewJSONCache[map[string]string](unreachableClient(t), "ledger:test:", time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss, "a broken connection is not a miss")
	assert.Contains(t, err.Error(), "ledger:test:k")

	v := map[string]string{"a": "b"}
	assert.Error(t, c.Set(ctx, "k", &v))
	stored, err := c.SetNX(ctx, "k", &v)
	assert.Error(t, err)
	assert.False(t, stored)
	assert.Error(t, c.Delete(ctx, "k"))
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestCounterSurfacesConnectionErrors(t *testing.T) {
	c := NewCounter(unreachableClient(t), "ledger:test:generation")

	_, err := c.Current(context.Background())
	assert.ErrorContains(t, err, "ledger:test:generation")
	_, err = c.Incr(context.Background())
	assert.Error(t, err)
}
