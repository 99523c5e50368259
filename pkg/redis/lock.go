package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"roulette/pkg/types/matchtype"
)

const lockKeyPrefix = "match:lock:"

// LockManager is the Redis-backed per-key mutex. A single SET NX with TTL
// decides the winner, so concurrent acquirers never both succeed, and a
// crashed holder unblocks the key once the TTL runs out.
type LockManager struct {
	client *redis.Client
}

func NewLockManager(r *RedisClient) *LockManager {
	return &LockManager{client: r.Client}
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := m.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", matchtype.ErrLockBusy
	}

	return token, nil
}

func (m *LockManager) Release(ctx context.Context, key, token string) error {
	result, err := releaseScript.Run(ctx, m.client, []string{lockKeyPrefix + key}, token).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return matchtype.ErrLockMismatch
	}
	return nil
}
