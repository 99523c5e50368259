package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/pkg/types/matchtype"
)

// newTestClient connects to a local Redis or skips the test. These are
// integration tests; run them with a Redis on localhost:6379.
func newTestClient(t *testing.T) *RedisClient {
	t.Helper()
	client, err := NewRedisClient("localhost:6379", "")
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func testKey(name string) string {
	return fmt.Sprintf("test:%s:%s", name, uuid.NewString())
}

func TestLockManagerAcquireRelease(t *testing.T) {
	ctx := context.Background()
	locks := NewLockManager(newTestClient(t))
	key := testKey("lock")

	token, err := locks.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Second acquire fails fast while held.
	_, err = locks.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, matchtype.ErrLockBusy)

	require.NoError(t, locks.Release(ctx, key, token))

	// Free again after release.
	token2, err := locks.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	require.NoError(t, locks.Release(ctx, key, token2))
}

func TestLockManagerReleaseWrongToken(t *testing.T) {
	ctx := context.Background()
	locks := NewLockManager(newTestClient(t))
	key := testKey("lock")

	token, err := locks.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, locks.Release(ctx, key, "wrong-token"), matchtype.ErrLockMismatch)

	// Still held by the real token.
	_, err = locks.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, matchtype.ErrLockBusy)

	require.NoError(t, locks.Release(ctx, key, token))
}

func TestLockManagerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	locks := NewLockManager(newTestClient(t))
	key := testKey("lock")

	oldToken, err := locks.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	// TTL ran out; the key is free and the stale token cannot release it.
	newToken, err := locks.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, locks.Release(ctx, key, oldToken), matchtype.ErrLockMismatch)
	require.NoError(t, locks.Release(ctx, key, newToken))
}
