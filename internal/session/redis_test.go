package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T, ttl time.Duration) *RedisGuard {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewRedisGuard(rdb, "test-"+uuid.NewString(), ttl)
}

func TestRedisGuardSingleHolder(t *testing.T) {
	g := newRedisGuard(t, time.Minute)
	ctx := context.Background()
	t.Cleanup(func() { g.rdb.Del(context.Background(), g.key) })

	ok, err := g.Admit(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.Admit(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(ctx, "b"))
	assert.NoError(t, g.Refresh(ctx, "a"))
	assert.ErrorIs(t, g.Refresh(ctx, "b"), ErrLeaseLost)

	require.NoError(t, g.Release(ctx, "a"))
	ok, err = g.Admit(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardExpires(t *testing.T) {
	g := newRedisGuard(t, 100*time.Millisecond)
	ctx := context.Background()
	t.Cleanup(func() { g.rdb.Del(context.Background(), g.key) })

	ok, err := g.Admit(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := g.Admit(ctx, "b")
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
}
