package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/pkg/types/matchtype"
)

func TestMemoryLockManager(t *testing.T) {
	ctx := context.Background()
	locks := NewMemoryLockManager()

	token, err := locks.Acquire(ctx, "search:1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = locks.Acquire(ctx, "search:1", time.Minute)
	assert.ErrorIs(t, err, matchtype.ErrLockBusy)

	// Different key is independent.
	_, err = locks.Acquire(ctx, "search:2", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, locks.Release(ctx, "search:1", token))

	// Released key is free again.
	_, err = locks.Acquire(ctx, "search:1", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLockManagerReleaseWrongToken(t *testing.T) {
	ctx := context.Background()
	locks := NewMemoryLockManager()

	token, err := locks.Acquire(ctx, "search:1", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, locks.Release(ctx, "search:1", "not-the-token"), matchtype.ErrLockMismatch)

	// The real holder can still release.
	assert.NoError(t, locks.Release(ctx, "search:1", token))
}

func TestMemoryLockManagerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	locks := NewMemoryLockManager()

	oldToken, err := locks.Acquire(ctx, "search:1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	// Expired lock can be taken over.
	_, err = locks.Acquire(ctx, "search:1", time.Minute)
	require.NoError(t, err)

	// The old holder's release must not free the new holder's lock.
	assert.ErrorIs(t, locks.Release(ctx, "search:1", oldToken), matchtype.ErrLockMismatch)
	_, err = locks.Acquire(ctx, "search:1", time.Minute)
	assert.ErrorIs(t, err, matchtype.ErrLockBusy)
}

func entryAt(userID int64, at time.Time) matchtype.PendingEntry {
	return matchtype.PendingEntry{
		UserID:     userID,
		Gender:     matchtype.GenderMale,
		Interest:   matchtype.InterestAny,
		EnqueuedAt: at,
	}
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	base := time.Now()
	require.NoError(t, q.Enqueue(ctx, entryAt(3, base.Add(2*time.Second))))
	require.NoError(t, q.Enqueue(ctx, entryAt(1, base)))
	require.NoError(t, q.Enqueue(ctx, entryAt(2, base.Add(time.Second))))

	entries, err := q.Oldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].UserID)
	assert.Equal(t, int64(2), entries[1].UserID)
	assert.Equal(t, int64(3), entries[2].UserID)

	pos, err := q.PositionOf(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = q.PositionOf(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)
}

func TestMemoryQueueEnqueueUpserts(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	base := time.Now()
	require.NoError(t, q.Enqueue(ctx, entryAt(1, base)))

	updated := entryAt(1, base.Add(time.Minute))
	updated.Interest = matchtype.InterestFemale
	require.NoError(t, q.Enqueue(ctx, updated))

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := q.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, matchtype.InterestFemale, got.Interest)
}

func TestMemoryQueueClaim(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, entryAt(1, time.Now())))

	taken, err := q.Claim(ctx, 1)
	require.NoError(t, err)
	assert.True(t, taken)

	// Second claim loses.
	taken, err = q.Claim(ctx, 1)
	require.NoError(t, err)
	assert.False(t, taken)

	got, err := q.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryQueueSetInterest(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	base := time.Now()
	require.NoError(t, q.Enqueue(ctx, entryAt(1, base)))
	require.NoError(t, q.Enqueue(ctx, entryAt(2, base.Add(time.Second))))

	ok, err := q.SetInterest(ctx, 1, matchtype.InterestAny)
	require.NoError(t, err)
	assert.True(t, ok)

	// Position is preserved.
	pos, err := q.PositionOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	ok, err = q.SetInterest(ctx, 99, matchtype.InterestAny)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryQueuePurgeStale(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	now := time.Now()
	require.NoError(t, q.Enqueue(ctx, entryAt(1, now.Add(-time.Hour))))
	require.NoError(t, q.Enqueue(ctx, entryAt(2, now)))

	purged, err := q.PurgeStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryQueueGenderBalance(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	now := time.Now()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, entryAt(i, now)))
	}
	female := matchtype.PendingEntry{UserID: 4, Gender: matchtype.GenderFemale, Interest: matchtype.InterestAny, EnqueuedAt: now}
	require.NoError(t, q.Enqueue(ctx, female))

	male, fem, err := q.GenderBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, male)
	assert.Equal(t, 1, fem)
}

func TestMemoryPairStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	pair, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)
	require.NotEmpty(t, pair.ID)
	assert.Equal(t, matchtype.PairStatusActive, pair.Status)
	assert.Equal(t, pair.StartedAt, pair.LastMessageAt)

	// Both participants resolve to the same pair.
	for _, id := range []int64{1, 2} {
		found, err := pairs.FindActiveByUser(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, pair.ID, found.ID)
	}

	ended, err := pairs.End(ctx, pair.ID, 1, matchtype.EndReasonUserStop)
	require.NoError(t, err)
	assert.True(t, ended)

	found, err := pairs.FindActiveByUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryPairStoreEndIdempotent(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	pair, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)

	ended, err := pairs.End(ctx, pair.ID, 1, matchtype.EndReasonUserStop)
	require.NoError(t, err)
	require.True(t, ended)

	// Second end changes nothing and reports it.
	ended, err = pairs.End(ctx, pair.ID, 2, matchtype.EndReasonNext)
	require.NoError(t, err)
	assert.False(t, ended)

	_, err = pairs.End(ctx, "no-such-pair", 1, matchtype.EndReasonUserStop)
	assert.ErrorIs(t, err, matchtype.ErrPairNotFound)
}

func TestMemoryPairStoreSelfPairRejected(t *testing.T) {
	_, err := NewMemoryPairStore().CreateActive(context.Background(), 7, 7)
	assert.Error(t, err)
}

func TestMemoryPairStoreRecordMessage(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	pair, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, pairs.RecordMessage(ctx, pair.ID))
	require.NoError(t, pairs.RecordMessage(ctx, pair.ID))

	_, err = pairs.End(ctx, pair.ID, 1, matchtype.EndReasonUserStop)
	require.NoError(t, err)

	assert.ErrorIs(t, pairs.RecordMessage(ctx, pair.ID), matchtype.ErrPairEnded)
	assert.ErrorIs(t, pairs.RecordMessage(ctx, "no-such-pair"), matchtype.ErrPairNotFound)
}

func TestMemoryPairStoreRate(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	pair, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, pairs.Rate(ctx, pair.ID, 1, 5))
	require.NoError(t, pairs.Rate(ctx, pair.ID, 2, 3))
	assert.Error(t, pairs.Rate(ctx, pair.ID, 99, 4))
}

func TestMemoryPairStoreRecentPartnerIDs(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	old, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)
	_, err = pairs.End(ctx, old.ID, 1, matchtype.EndReasonUserStop)
	require.NoError(t, err)

	fresh, err := pairs.CreateActive(ctx, 1, 3)
	require.NoError(t, err)
	_, err = pairs.End(ctx, fresh.ID, 1, matchtype.EndReasonUserStop)
	require.NoError(t, err)

	partners, err := pairs.RecentPartnerIDs(ctx, 1, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, partners)

	// A window starting in the future excludes both.
	partners, err = pairs.RecentPartnerIDs(ctx, 1, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, partners)
}

func TestMemoryPairStoreSweepQueries(t *testing.T) {
	ctx := context.Background()
	pairs := NewMemoryPairStore()

	pair, err := pairs.CreateActive(ctx, 1, 2)
	require.NoError(t, err)

	// Fresh pair is neither stale nor expired.
	stale, err := pairs.FindStaleActive(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, stale)

	expired, err := pairs.FindExpiredActive(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// With a zero threshold everything active qualifies.
	stale, err = pairs.FindStaleActive(ctx, -time.Second)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pair.ID, stale[0].ID)
}
