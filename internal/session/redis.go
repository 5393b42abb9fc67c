package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// ErrLeaseLost is returned by Refresh when another client now holds the machine.
var ErrLeaseLost = errors.New("session lease lost")

// RedisGuard keeps the binding in Redis so that every API replica serving
// the same machine sees it. The key expires after ttl unless refreshed, which
// frees the machine if a replica dies holding it.
type RedisGuard struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, machineID string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		rdb: rdb,
		key: fmt.Sprintf("vending:session:%s", machineID),
		ttl: ttl,
	}
}

func (g *RedisGuard) Admit(ctx context.Context, clientID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.key, clientID, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("session admit failed: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, clientID string) error {
	if err := releaseScript.Run(ctx, g.rdb, []string{g.key}, clientID).Err(); err != nil {
		return fmt.Errorf("session release failed: %w", err)
	}
	return nil
}

func (g *RedisGuard) Refresh(ctx context.Context, clientID string) error {
	n, err := refreshScript.Run(ctx, g.rdb, []string{g.key}, clientID, g.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("session refresh failed: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
