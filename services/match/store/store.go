package store

import (
	"context"
	"time"

	"roulette/pkg/types/matchtype"
)

// LockManager serializes state-changing flows per user and operation
// class. Acquire is fail-fast: contention returns matchtype.ErrLockBusy
// instead of blocking. Release verifies the token so a lock taken over
// after TTL expiry is never deleted by the old holder.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// PendingQueue is the FIFO waiting list. Enqueue upserts (one entry per
// user), Claim is an atomic compare-and-delete used when a matched
// candidate is taken out of the queue.
type PendingQueue interface {
	Enqueue(ctx context.Context, entry matchtype.PendingEntry) error
	Remove(ctx context.Context, userID int64) error
	Claim(ctx context.Context, userID int64) (bool, error)
	Get(ctx context.Context, userID int64) (*matchtype.PendingEntry, error)
	Oldest(ctx context.Context, n int) ([]matchtype.PendingEntry, error)
	Count(ctx context.Context) (int, error)
	GenderBalance(ctx context.Context) (male, female int, err error)
	PositionOf(ctx context.Context, userID int64) (int, error)
	SetInterest(ctx context.Context, userID int64, interest matchtype.Interest) (bool, error)
	PurgeStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PairStore owns conversation records. End reports ended=false when the
// pair was already ended; that second call must not touch timestamps.
type PairStore interface {
	CreateActive(ctx context.Context, userID, partnerID int64) (*matchtype.Pair, error)
	FindActiveByUser(ctx context.Context, userID int64) (*matchtype.Pair, error)
	End(ctx context.Context, pairID string, endedBy int64, reason string) (ended bool, err error)
	FindStaleActive(ctx context.Context, inactiveFor time.Duration) ([]matchtype.Pair, error)
	FindExpiredActive(ctx context.Context, maxDuration time.Duration) ([]matchtype.Pair, error)
	RecordMessage(ctx context.Context, pairID string) error
	Rate(ctx context.Context, pairID string, raterUserID int64, score int) error
	RecentPartnerIDs(ctx context.Context, userID int64, since time.Time) ([]int64, error)
	PurgeEnded(ctx context.Context, olderThan time.Duration) (int, error)
}
