package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"roulette/pkg/types/matchtype"
)

// In-memory implementations backing tests and single-process deployments.
// Semantics mirror the Redis/MySQL implementations exactly, including the
// token-verified lock release and the compare-and-delete claim.

type memoryLock struct {
	token     string
	expiresAt time.Time
}

type MemoryLockManager struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{locks: make(map[string]memoryLock)}
}

func (m *MemoryLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if held, ok := m.locks[key]; ok && now.Before(held.expiresAt) {
		return "", matchtype.ErrLockBusy
	}

	token := uuid.NewString()
	m.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (m *MemoryLockManager) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.locks[key]
	if !ok || held.token != token {
		return matchtype.ErrLockMismatch
	}
	delete(m.locks, key)
	return nil
}

type MemoryQueue struct {
	mu      sync.Mutex
	entries map[int64]matchtype.PendingEntry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[int64]matchtype.PendingEntry)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, entry matchtype.PendingEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}
	q.entries[entry.UserID] = entry
	return nil
}

func (q *MemoryQueue) Remove(ctx context.Context, userID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, userID)
	return nil
}

func (q *MemoryQueue) Claim(ctx context.Context, userID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[userID]; !ok {
		return false, nil
	}
	delete(q.entries, userID)
	return true, nil
}

func (q *MemoryQueue) Get(ctx context.Context, userID int64) (*matchtype.PendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[userID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// sorted returns all entries in FIFO order. Callers hold q.mu.
func (q *MemoryQueue) sorted() []matchtype.PendingEntry {
	entries := make([]matchtype.PendingEntry, 0, len(q.entries))
	for _, entry := range q.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})
	return entries
}

func (q *MemoryQueue) Oldest(ctx context.Context, n int) ([]matchtype.PendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.sorted()
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (q *MemoryQueue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

func (q *MemoryQueue) GenderBalance(ctx context.Context) (male, female int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range q.entries {
		if entry.Gender == matchtype.GenderMale {
			male++
		} else {
			female++
		}
	}
	return male, female, nil
}

func (q *MemoryQueue) PositionOf(ctx context.Context, userID int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, entry := range q.sorted() {
		if entry.UserID == userID {
			return i, nil
		}
	}
	return -1, nil
}

func (q *MemoryQueue) SetInterest(ctx context.Context, userID int64, interest matchtype.Interest) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[userID]
	if !ok {
		return false, nil
	}
	entry.Interest = interest
	q.entries[userID] = entry
	return true, nil
}

func (q *MemoryQueue) PurgeStale(ctx context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for id, entry := range q.entries {
		if entry.EnqueuedAt.Before(cutoff) {
			delete(q.entries, id)
			purged++
		}
	}
	return purged, nil
}

type MemoryPairStore struct {
	mu    sync.Mutex
	pairs map[string]*matchtype.Pair
}

func NewMemoryPairStore() *MemoryPairStore {
	return &MemoryPairStore{pairs: make(map[string]*matchtype.Pair)}
}

func (s *MemoryPairStore) CreateActive(ctx context.Context, userID, partnerID int64) (*matchtype.Pair, error) {
	if userID == partnerID {
		return nil, errors.New("pair participants must be distinct")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	pair := &matchtype.Pair{
		ID:            uuid.NewString(),
		UserID:        userID,
		PartnerID:     partnerID,
		Status:        matchtype.PairStatusActive,
		StartedAt:     now,
		LastMessageAt: now,
	}
	s.pairs[pair.ID] = pair

	out := *pair
	return &out, nil
}

func (s *MemoryPairStore) FindActiveByUser(ctx context.Context, userID int64) (*matchtype.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pair := range s.pairs {
		if pair.Status == matchtype.PairStatusActive && pair.Involves(userID) {
			out := *pair
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryPairStore) End(ctx context.Context, pairID string, endedBy int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.pairs[pairID]
	if !ok {
		return false, matchtype.ErrPairNotFound
	}
	if pair.Status == matchtype.PairStatusEnded {
		return false, nil
	}

	now := time.Now()
	pair.Status = matchtype.PairStatusEnded
	pair.EndedAt = &now
	pair.EndedBy = &endedBy
	pair.EndReason = reason
	return true, nil
}

func (s *MemoryPairStore) FindStaleActive(ctx context.Context, inactiveFor time.Duration) ([]matchtype.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-inactiveFor)
	var stale []matchtype.Pair
	for _, pair := range s.pairs {
		if pair.Status == matchtype.PairStatusActive && pair.LastMessageAt.Before(cutoff) {
			stale = append(stale, *pair)
		}
	}
	return stale, nil
}

func (s *MemoryPairStore) FindExpiredActive(ctx context.Context, maxDuration time.Duration) ([]matchtype.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxDuration)
	var expired []matchtype.Pair
	for _, pair := range s.pairs {
		if pair.Status == matchtype.PairStatusActive && pair.StartedAt.Before(cutoff) {
			expired = append(expired, *pair)
		}
	}
	return expired, nil
}

func (s *MemoryPairStore) RecordMessage(ctx context.Context, pairID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.pairs[pairID]
	if !ok {
		return matchtype.ErrPairNotFound
	}
	if pair.Status == matchtype.PairStatusEnded {
		return matchtype.ErrPairEnded
	}

	pair.MessageCount++
	pair.LastMessageAt = time.Now()
	return nil
}

func (s *MemoryPairStore) Rate(ctx context.Context, pairID string, raterUserID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.pairs[pairID]
	if !ok {
		return matchtype.ErrPairNotFound
	}

	switch raterUserID {
	case pair.UserID:
		pair.UserRating = &score
	case pair.PartnerID:
		pair.PartnerRating = &score
	default:
		return errors.New("rater is not a participant")
	}
	return nil
}

func (s *MemoryPairStore) RecentPartnerIDs(ctx context.Context, userID int64, since time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var partners []int64
	for _, pair := range s.pairs {
		if !pair.Involves(userID) {
			continue
		}
		if pair.StartedAt.Before(since) && (pair.EndedAt == nil || pair.EndedAt.Before(since)) {
			continue
		}
		partners = append(partners, pair.PartnerOf(userID))
	}
	return partners, nil
}

func (s *MemoryPairStore) PurgeEnded(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for id, pair := range s.pairs {
		if pair.Status == matchtype.PairStatusEnded && pair.EndedAt != nil && pair.EndedAt.Before(cutoff) {
			delete(s.pairs, id)
			purged++
		}
	}
	return purged, nil
}
