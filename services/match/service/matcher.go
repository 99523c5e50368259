package service

import (
	"math"
	"time"

	"github.com/samber/lo"

	"roulette/pkg/types/matchtype"
)

type MatchPolicy int

const (
	// PolicyStrict matches only mutually compatible gender/interest pairs.
	PolicyStrict MatchPolicy = iota
	// PolicyRandom ignores gender and interest entirely.
	PolicyRandom
)

// Candidate is a queue entry joined with its owner's profile.
type Candidate struct {
	Entry   matchtype.PendingEntry
	Profile matchtype.MatchProfile
}

type MatcherOptions struct {
	Policy MatchPolicy
	Now    time.Time
	// ExcludePartners holds user ids the requester conversed with inside
	// the cooldown window.
	ExcludePartners []int64
	// TieWindow: candidates enqueued within this span of the oldest
	// eligible one count as equally old and are ranked by score.
	TieWindow time.Duration
}

// Scoring weights. All bonuses are additive and the total is clamped at
// zero. FIFO order remains the primary guarantee; score only splits ties.
const (
	scoreBase          = 50.0
	ageBonusMax        = 20.0
	ageBonusFalloff    = 2.0
	locationBonusMax   = 15.0
	defaultRadiusKm    = 100.0
	premiumBonus       = 10.0
	activityBonusMax   = 10.0
	ratingBonusPerStar = 2.0
	varietyPenalty     = 5.0
)

// PickCandidate returns the candidate the requester should be paired with,
// or nil when the pool holds no compatible one. The pool must arrive in
// FIFO order (oldest first).
func PickCandidate(requester matchtype.MatchProfile, pool []Candidate, opts MatcherOptions) *Candidate {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	eligible := lo.Filter(pool, func(c Candidate, _ int) bool {
		return Eligible(requester, c, opts)
	})
	if len(eligible) == 0 {
		return nil
	}

	oldest := eligible[0]
	if opts.TieWindow <= 0 {
		return &oldest
	}

	// Rank only the head bucket of equally-old candidates; everyone
	// enqueued later than the window never jumps the line.
	cutoff := oldest.Entry.EnqueuedAt.Add(opts.TieWindow)
	best := oldest
	bestScore := Score(requester, oldest.Profile)
	for _, c := range eligible[1:] {
		if c.Entry.EnqueuedAt.After(cutoff) {
			break
		}
		if s := Score(requester, c.Profile); s > bestScore {
			best, bestScore = c, s
		}
	}
	return &best
}

// Eligible applies the policy compatibility rule plus the exclusions that
// hold under every policy: self, banned or soft-banned users, and recent
// partners.
func Eligible(requester matchtype.MatchProfile, c Candidate, opts MatcherOptions) bool {
	if c.Entry.UserID == requester.UserID {
		return false
	}
	if c.Profile.Blocked(opts.Now) {
		return false
	}
	if lo.Contains(opts.ExcludePartners, c.Entry.UserID) {
		return false
	}

	if opts.Policy == PolicyRandom {
		return true
	}
	return c.Entry.Interest.Wants(requester.Gender) && requester.Interest.Wants(c.Entry.Gender)
}

// Score computes the weighted compatibility of a candidate for the
// requester. Never negative.
func Score(requester, candidate matchtype.MatchProfile) float64 {
	s := scoreBase

	ageGap := math.Abs(float64(requester.Age - candidate.Age))
	s += math.Max(0, ageBonusMax-ageBonusFalloff*ageGap)

	s += locationBonus(requester, candidate)

	if candidate.Premium {
		s += premiumBonus
	}
	s += math.Min(candidate.ActivityScore, activityBonusMax)
	s += candidate.Rating * ratingBonusPerStar

	s -= float64(candidate.RecentPairCount) * varietyPenalty

	return math.Max(0, s)
}

func locationBonus(requester, candidate matchtype.MatchProfile) float64 {
	if requester.Latitude == nil || requester.Longitude == nil ||
		candidate.Latitude == nil || candidate.Longitude == nil {
		return 0
	}

	radius := defaultRadiusKm
	if requester.SearchRadiusKm > 0 {
		radius = float64(requester.SearchRadiusKm)
	}

	dist := haversineKm(*requester.Latitude, *requester.Longitude, *candidate.Latitude, *candidate.Longitude)
	if dist >= radius {
		return 0
	}
	return locationBonusMax * (1 - dist/radius)
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
