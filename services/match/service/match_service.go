package service

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"roulette/pkg/types/eventtype"
	"roulette/pkg/types/matchtype"
	"roulette/services/match/store"
)

// Notifier pushes abstract match events toward the transport layer.
type Notifier interface {
	Notify(userID int64, eventType string, data any) error
}

// ProfileClient is the read-only bridge to the user service.
type ProfileClient interface {
	GetProfile(ctx context.Context, userID int64) (*matchtype.MatchProfile, error)
	SetSearching(ctx context.Context, userID int64, searching bool) error
}

type Config struct {
	LockTTL             time.Duration
	CandidateSampleSize int
	RandomPolicy        bool
	RecentPartnerWindow time.Duration
	TieWindow           time.Duration
	OvercrowdThreshold  int
	EndedRetention      time.Duration
}

// MatchService drives every state change of the matching core. All
// mutating flows run under a per-user per-operation lock; queue claims
// are additionally atomic at the store, so two searchers can never take
// the same candidate.
type MatchService struct {
	locks    store.LockManager
	queue    store.PendingQueue
	pairs    store.PairStore
	profiles ProfileClient
	notifier Notifier
	cfg      Config
	log      zerolog.Logger

	randomPolicy atomic.Bool
}

func NewMatchService(
	locks store.LockManager,
	queue store.PendingQueue,
	pairs store.PairStore,
	profiles ProfileClient,
	notifier Notifier,
	cfg Config,
	log zerolog.Logger,
) *MatchService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.CandidateSampleSize <= 0 {
		cfg.CandidateSampleSize = 20
	}

	s := &MatchService{
		locks:    locks,
		queue:    queue,
		pairs:    pairs,
		profiles: profiles,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
	s.randomPolicy.Store(cfg.RandomPolicy)
	return s
}

// SetRandomPolicy flips the global policy toggle. Compatibility is judged
// at dequeue time only, so waiting entries are not re-evaluated.
func (s *MatchService) SetRandomPolicy(random bool) {
	s.randomPolicy.Store(random)
}

func (s *MatchService) policy() MatchPolicy {
	if s.randomPolicy.Load() {
		return PolicyRandom
	}
	return PolicyStrict
}

type StartResult struct {
	Matched      bool
	Pair         *matchtype.Pair
	Position     int
	TotalWaiting int
	Overcrowded  bool
}

type StopResult struct {
	StoppedSearch bool
	EndedPair     *matchtype.Pair
}

type QueueStatus struct {
	Position     int  `json:"position"`
	TotalWaiting int  `json:"total_waiting"`
	Overcrowded  bool `json:"overcrowded"`
}

type SweepResult struct {
	PairsEnded    int `json:"pairs_ended"`
	EntriesPurged int `json:"entries_purged"`
}

func searchLockKey(userID int64) string { return "search:" + strconv.FormatInt(userID, 10) }
func stopLockKey(userID int64) string   { return "stop:" + strconv.FormatInt(userID, 10) }

// StartSearch pairs the user with the best waiting candidate, or enqueues
// them when nobody compatible is waiting.
func (s *MatchService) StartSearch(ctx context.Context, userID int64) (*StartResult, error) {
	token, err := s.locks.Acquire(ctx, searchLockKey(userID), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, searchLockKey(userID), token)

	if pair, err := s.pairs.FindActiveByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("find active pair: %w", err)
	} else if pair != nil {
		return nil, matchtype.ErrAlreadyPaired
	}

	if entry, err := s.queue.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("check queue entry: %w", err)
	} else if entry != nil {
		return nil, matchtype.ErrAlreadySearching
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile for %d: %w", userID, err)
	}
	if profile.Blocked(time.Now()) {
		return nil, matchtype.ErrUserBlocked
	}

	candidate, err := s.findAndClaimCandidate(ctx, profile)
	if err != nil {
		return nil, err
	}

	if candidate != nil {
		return s.createPair(ctx, userID, candidate)
	}
	return s.enqueue(ctx, profile)
}

// findAndClaimCandidate runs the matcher over the oldest sample and claims
// the pick. A lost claim means a concurrent searcher took that candidate
// inside their own lock scope; the next pick is tried.
func (s *MatchService) findAndClaimCandidate(ctx context.Context, requester *matchtype.MatchProfile) (*matchtype.PendingEntry, error) {
	entries, err := s.queue.Oldest(ctx, s.cfg.CandidateSampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample queue: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	now := time.Now()
	opts := MatcherOptions{
		Policy:    s.policy(),
		Now:       now,
		TieWindow: s.cfg.TieWindow,
	}
	if s.cfg.RecentPartnerWindow > 0 {
		recent, err := s.pairs.RecentPartnerIDs(ctx, requester.UserID, now.Add(-s.cfg.RecentPartnerWindow))
		if err != nil {
			return nil, fmt.Errorf("recent partners: %w", err)
		}
		opts.ExcludePartners = recent
	}

	pool := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.UserID == requester.UserID {
			continue
		}
		p, err := s.profiles.GetProfile(ctx, entry.UserID)
		if err != nil {
			// A candidate whose profile cannot be fetched is skipped,
			// not fatal for the requester.
			s.log.Warn().Err(err).Int64("user_id", entry.UserID).Msg("skipping candidate, profile fetch failed")
			continue
		}
		pool = append(pool, Candidate{Entry: entry, Profile: *p})
	}

	for len(pool) > 0 {
		pick := PickCandidate(*requester, pool, opts)
		if pick == nil {
			return nil, nil
		}

		claimed, err := s.queue.Claim(ctx, pick.Entry.UserID)
		if err != nil {
			return nil, fmt.Errorf("claim candidate %d: %w", pick.Entry.UserID, err)
		}
		if claimed {
			entry := pick.Entry
			return &entry, nil
		}

		remaining := pool[:0]
		for _, c := range pool {
			if c.Entry.UserID != pick.Entry.UserID {
				remaining = append(remaining, c)
			}
		}
		pool = remaining
	}
	return nil, nil
}

func (s *MatchService) createPair(ctx context.Context, userID int64, candidate *matchtype.PendingEntry) (*StartResult, error) {
	pair, err := s.pairs.CreateActive(ctx, userID, candidate.UserID)
	if err != nil {
		// The candidate is already out of the queue. Put them back with
		// their original enqueue time so the failure costs them nothing.
		if reErr := s.queue.Enqueue(ctx, *candidate); reErr != nil {
			s.log.Error().Err(reErr).Int64("user_id", candidate.UserID).
				Msg("failed to re-enqueue candidate after pair creation failure")
		} else {
			s.log.Warn().Int64("user_id", candidate.UserID).
				Msg("pair creation failed after claim, candidate re-enqueued")
		}
		return nil, fmt.Errorf("create pair: %w", err)
	}

	for _, id := range []int64{userID, candidate.UserID} {
		s.notify(id, eventtype.EventTypeMatched, eventtype.MatchedEvent{
			PairID:    pair.ID,
			UserID:    id,
			PartnerID: pair.PartnerOf(id),
			StartedAt: pair.StartedAt,
		})
		s.setSearching(ctx, id, false)
	}

	s.log.Info().Str("pair_id", pair.ID).
		Int64("user_id", userID).Int64("partner_id", candidate.UserID).
		Msg("pair created")

	return &StartResult{Matched: true, Pair: pair}, nil
}

func (s *MatchService) enqueue(ctx context.Context, profile *matchtype.MatchProfile) (*StartResult, error) {
	entry := matchtype.PendingEntry{
		UserID:     profile.UserID,
		Gender:     profile.Gender,
		Interest:   profile.Interest,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	status, err := s.QueueStatus(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	s.notify(profile.UserID, eventtype.EventTypeEnqueued, eventtype.EnqueuedEvent{
		Position:     status.Position,
		TotalWaiting: status.TotalWaiting,
		Overcrowded:  status.Overcrowded,
	})
	s.setSearching(ctx, profile.UserID, true)

	return &StartResult{
		Matched:      false,
		Position:     status.Position,
		TotalWaiting: status.TotalWaiting,
		Overcrowded:  status.Overcrowded,
	}, nil
}

// StopSearch cancels a pending search or ends the user's active pair,
// whichever exists.
func (s *MatchService) StopSearch(ctx context.Context, userID int64) (*StopResult, error) {
	return s.stop(ctx, userID, matchtype.EndReasonUserStop)
}

func (s *MatchService) stop(ctx context.Context, userID int64, reason string) (*StopResult, error) {
	token, err := s.locks.Acquire(ctx, stopLockKey(userID), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, stopLockKey(userID), token)

	// Claim our own entry atomically. A plain get-then-remove leaves a
	// window where a concurrent searcher takes the entry and pairs us; a
	// lost claim means exactly that, so fall through to the pair check.
	claimed, err := s.queue.Claim(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("claim own queue entry: %w", err)
	}
	if claimed {
		s.notify(userID, eventtype.EventTypeSearchCancelled, nil)
		s.setSearching(ctx, userID, false)
		return &StopResult{StoppedSearch: true}, nil
	}

	pair, err := s.pairs.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find active pair: %w", err)
	}
	if pair != nil {
		ended, err := s.pairs.End(ctx, pair.ID, userID, reason)
		if err != nil {
			return nil, fmt.Errorf("end pair %s: %w", pair.ID, err)
		}
		if ended {
			for _, id := range []int64{pair.UserID, pair.PartnerID} {
				s.notify(id, eventtype.EventTypeEnded, eventtype.EndedEvent{
					PairID:  pair.ID,
					EndedBy: userID,
					Reason:  reason,
				})
			}
			s.log.Info().Str("pair_id", pair.ID).Int64("ended_by", userID).Str("reason", reason).Msg("pair ended")
		}
		return &StopResult{EndedPair: pair}, nil
	}

	return nil, matchtype.ErrNothingToStop
}

// NextSearch is stop-then-start: leave the current conversation (or the
// queue) and immediately search again.
func (s *MatchService) NextSearch(ctx context.Context, userID int64) (*StartResult, error) {
	if _, err := s.stop(ctx, userID, matchtype.EndReasonNext); err != nil && err != matchtype.ErrNothingToStop {
		return nil, err
	}
	return s.StartSearch(ctx, userID)
}

// QueueStatus is a lock-free read of the user's wait state.
func (s *MatchService) QueueStatus(ctx context.Context, userID int64) (*QueueStatus, error) {
	position, err := s.queue.PositionOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("queue position: %w", err)
	}
	total, err := s.queue.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue count: %w", err)
	}

	return &QueueStatus{
		Position:     position,
		TotalWaiting: total,
		Overcrowded:  total > s.cfg.OvercrowdThreshold,
	}, nil
}

// SwitchToRandomMatching rewrites the user's stored preference to "any"
// without re-enqueuing, so their queue position is preserved.
func (s *MatchService) SwitchToRandomMatching(ctx context.Context, userID int64) error {
	ok, err := s.queue.SetInterest(ctx, userID, matchtype.InterestAny)
	if err != nil {
		return fmt.Errorf("set interest: %w", err)
	}
	if !ok {
		return matchtype.ErrNotSearching
	}
	return nil
}

func (s *MatchService) RecordMessage(ctx context.Context, pairID string) error {
	return s.pairs.RecordMessage(ctx, pairID)
}

func (s *MatchService) RatePair(ctx context.Context, pairID string, raterUserID int64, score int) error {
	return s.pairs.Rate(ctx, pairID, raterUserID, score)
}

// RunCleanupSweep ends stale and overlong pairs, purges abandoned queue
// entries, and applies retention to old ended pairs. Safe to run
// concurrently: End no-ops on already-ended pairs.
func (s *MatchService) RunCleanupSweep(ctx context.Context, inactiveFor, maxDuration, pendingStale time.Duration) (*SweepResult, error) {
	stale, err := s.pairs.FindStaleActive(ctx, inactiveFor)
	if err != nil {
		return nil, fmt.Errorf("find stale pairs: %w", err)
	}
	expired, err := s.pairs.FindExpiredActive(ctx, maxDuration)
	if err != nil {
		return nil, fmt.Errorf("find expired pairs: %w", err)
	}

	seen := make(map[string]bool, len(stale)+len(expired))
	result := &SweepResult{}
	for _, pair := range append(stale, expired...) {
		if seen[pair.ID] {
			continue
		}
		seen[pair.ID] = true

		ended, err := s.pairs.End(ctx, pair.ID, 0, matchtype.EndReasonAutoEnded)
		if err != nil {
			s.log.Error().Err(err).Str("pair_id", pair.ID).Msg("sweep failed to end pair")
			continue
		}
		if !ended {
			continue
		}
		result.PairsEnded++
		for _, id := range []int64{pair.UserID, pair.PartnerID} {
			s.notify(id, eventtype.EventTypeEnded, eventtype.EndedEvent{
				PairID: pair.ID,
				Reason: matchtype.EndReasonAutoEnded,
			})
		}
	}

	purged, err := s.queue.PurgeStale(ctx, pendingStale)
	if err != nil {
		return result, fmt.Errorf("purge pending entries: %w", err)
	}
	result.EntriesPurged = purged

	if s.cfg.EndedRetention > 0 {
		if _, err := s.pairs.PurgeEnded(ctx, s.cfg.EndedRetention); err != nil {
			s.log.Error().Err(err).Msg("retention purge failed")
		}
	}

	if result.PairsEnded > 0 || result.EntriesPurged > 0 {
		s.log.Info().Int("pairs_ended", result.PairsEnded).
			Int("entries_purged", result.EntriesPurged).Msg("cleanup sweep done")
	}
	return result, nil
}

func (s *MatchService) release(ctx context.Context, key, token string) {
	if err := s.locks.Release(ctx, key, token); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("lock release failed")
	}
}

func (s *MatchService) notify(userID int64, eventType string, data any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(userID, eventType, data); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Str("event", eventType).Msg("notify failed")
	}
}

func (s *MatchService) setSearching(ctx context.Context, userID int64, searching bool) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.SetSearching(ctx, userID, searching); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to update searching flag")
	}
}
