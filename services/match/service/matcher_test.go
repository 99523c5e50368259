package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/pkg/types/matchtype"
)

func candidate(userID int64, gender matchtype.Gender, interest matchtype.Interest, enqueuedAt time.Time) Candidate {
	return Candidate{
		Entry: matchtype.PendingEntry{
			UserID:     userID,
			Gender:     gender,
			Interest:   interest,
			EnqueuedAt: enqueuedAt,
		},
		Profile: matchtype.MatchProfile{
			UserID:   userID,
			Gender:   gender,
			Interest: interest,
			Age:      25,
		},
	}
}

func maleSeeking(interest matchtype.Interest) matchtype.MatchProfile {
	return matchtype.MatchProfile{UserID: 100, Gender: matchtype.GenderMale, Interest: interest, Age: 25}
}

func TestEligibleStrictPolicy(t *testing.T) {
	now := time.Now()
	opts := MatcherOptions{Policy: PolicyStrict, Now: now}

	requester := maleSeeking(matchtype.InterestFemale)

	// Mutual interest matches.
	ok := Eligible(requester, candidate(1, matchtype.GenderFemale, matchtype.InterestMale, now), opts)
	assert.True(t, ok)

	// Candidate wants someone else.
	ok = Eligible(requester, candidate(2, matchtype.GenderFemale, matchtype.InterestFemale, now), opts)
	assert.False(t, ok)

	// Requester does not want the candidate's gender.
	ok = Eligible(requester, candidate(3, matchtype.GenderMale, matchtype.InterestMale, now), opts)
	assert.False(t, ok)

	// "Any" on both sides always matches.
	anyRequester := maleSeeking(matchtype.InterestAny)
	ok = Eligible(anyRequester, candidate(4, matchtype.GenderMale, matchtype.InterestAny, now), opts)
	assert.True(t, ok)
}

func TestEligibleRandomPolicyIgnoresPreferences(t *testing.T) {
	now := time.Now()
	opts := MatcherOptions{Policy: PolicyRandom, Now: now}

	requester := maleSeeking(matchtype.InterestFemale)

	// Incompatible under strict, fine under random.
	ok := Eligible(requester, candidate(1, matchtype.GenderMale, matchtype.InterestMale, now), opts)
	assert.True(t, ok)
}

func TestEligibleUniversalExclusions(t *testing.T) {
	now := time.Now()

	requester := maleSeeking(matchtype.InterestAny)

	// Self never matches, even under random.
	self := candidate(requester.UserID, matchtype.GenderMale, matchtype.InterestAny, now)
	assert.False(t, Eligible(requester, self, MatcherOptions{Policy: PolicyRandom, Now: now}))

	// Banned candidate is out.
	banned := candidate(1, matchtype.GenderFemale, matchtype.InterestAny, now)
	banned.Profile.Banned = true
	assert.False(t, Eligible(requester, banned, MatcherOptions{Policy: PolicyRandom, Now: now}))

	// Soft ban blocks until it lapses.
	until := now.Add(time.Hour)
	softBanned := candidate(2, matchtype.GenderFemale, matchtype.InterestAny, now)
	softBanned.Profile.SoftBanUntil = &until
	assert.False(t, Eligible(requester, softBanned, MatcherOptions{Policy: PolicyStrict, Now: now}))

	lapsed := now.Add(-time.Hour)
	softBanned.Profile.SoftBanUntil = &lapsed
	assert.True(t, Eligible(requester, softBanned, MatcherOptions{Policy: PolicyStrict, Now: now}))

	// Recent partners are excluded under every policy.
	recent := candidate(3, matchtype.GenderFemale, matchtype.InterestAny, now)
	opts := MatcherOptions{Policy: PolicyRandom, Now: now, ExcludePartners: []int64{3}}
	assert.False(t, Eligible(requester, recent, opts))
}

func TestPickCandidateFIFOWithoutTieWindow(t *testing.T) {
	now := time.Now()
	requester := maleSeeking(matchtype.InterestAny)

	pool := []Candidate{
		candidate(1, matchtype.GenderFemale, matchtype.InterestAny, now.Add(-3*time.Minute)),
		candidate(2, matchtype.GenderFemale, matchtype.InterestAny, now.Add(-2*time.Minute)),
		candidate(3, matchtype.GenderFemale, matchtype.InterestAny, now.Add(-time.Minute)),
	}
	// Make a later candidate strictly more attractive.
	pool[2].Profile.Premium = true
	pool[2].Profile.Rating = 5

	pick := PickCandidate(requester, pool, MatcherOptions{Policy: PolicyStrict, Now: now})
	require.NotNil(t, pick)
	assert.Equal(t, int64(1), pick.Entry.UserID, "oldest eligible wins regardless of score")
}

func TestPickCandidateSkipsIneligibleHead(t *testing.T) {
	now := time.Now()
	requester := maleSeeking(matchtype.InterestFemale)

	pool := []Candidate{
		candidate(1, matchtype.GenderMale, matchtype.InterestAny, now.Add(-3*time.Minute)),
		candidate(2, matchtype.GenderFemale, matchtype.InterestMale, now.Add(-2*time.Minute)),
	}

	pick := PickCandidate(requester, pool, MatcherOptions{Policy: PolicyStrict, Now: now})
	require.NotNil(t, pick)
	assert.Equal(t, int64(2), pick.Entry.UserID)
}

func TestPickCandidateEmptyAndIncompatiblePool(t *testing.T) {
	now := time.Now()
	requester := maleSeeking(matchtype.InterestFemale)

	assert.Nil(t, PickCandidate(requester, nil, MatcherOptions{Policy: PolicyStrict, Now: now}))

	pool := []Candidate{
		candidate(1, matchtype.GenderMale, matchtype.InterestMale, now),
	}
	assert.Nil(t, PickCandidate(requester, pool, MatcherOptions{Policy: PolicyStrict, Now: now}))
}

func TestPickCandidateTieWindowRanksByScore(t *testing.T) {
	now := time.Now()
	requester := maleSeeking(matchtype.InterestAny)

	oldest := now.Add(-time.Minute)
	pool := []Candidate{
		candidate(1, matchtype.GenderFemale, matchtype.InterestAny, oldest),
		candidate(2, matchtype.GenderFemale, matchtype.InterestAny, oldest.Add(time.Second)),
		candidate(3, matchtype.GenderFemale, matchtype.InterestAny, oldest.Add(10*time.Second)),
	}
	pool[1].Profile.Premium = true
	pool[1].Profile.Rating = 5
	// Even better, but outside the window.
	pool[2].Profile.Premium = true
	pool[2].Profile.Rating = 5
	pool[2].Profile.ActivityScore = 10

	opts := MatcherOptions{Policy: PolicyStrict, Now: now, TieWindow: 2 * time.Second}
	pick := PickCandidate(requester, pool, opts)
	require.NotNil(t, pick)
	assert.Equal(t, int64(2), pick.Entry.UserID, "best scorer inside the tie window wins")
}

func TestScoreComponents(t *testing.T) {
	requester := matchtype.MatchProfile{UserID: 1, Age: 30}

	sameAge := matchtype.MatchProfile{UserID: 2, Age: 30}
	farAge := matchtype.MatchProfile{UserID: 3, Age: 50}
	assert.Greater(t, Score(requester, sameAge), Score(requester, farAge))

	premium := matchtype.MatchProfile{UserID: 4, Age: 30, Premium: true}
	assert.InDelta(t, premiumBonus, Score(requester, premium)-Score(requester, sameAge), 1e-9)

	// Activity bonus is capped.
	hyperactive := matchtype.MatchProfile{UserID: 5, Age: 30, ActivityScore: 1000}
	assert.InDelta(t, activityBonusMax, Score(requester, hyperactive)-Score(requester, sameAge), 1e-9)

	// Variety penalty lowers the score but never below zero.
	churner := matchtype.MatchProfile{UserID: 6, Age: 80, RecentPairCount: 100}
	assert.Equal(t, 0.0, Score(requester, churner))
}

func TestScoreLocationBonus(t *testing.T) {
	lat, lon := 37.5665, 126.9780 // Seoul
	nearLat, nearLon := 37.5700, 126.9800
	farLat, farLon := 35.1796, 129.0756 // Busan, ~325km away

	requester := matchtype.MatchProfile{UserID: 1, Age: 30, Latitude: &lat, Longitude: &lon, SearchRadiusKm: 50}

	near := matchtype.MatchProfile{UserID: 2, Age: 30, Latitude: &nearLat, Longitude: &nearLon}
	far := matchtype.MatchProfile{UserID: 3, Age: 30, Latitude: &farLat, Longitude: &farLon}
	noLocation := matchtype.MatchProfile{UserID: 4, Age: 30}

	assert.Greater(t, Score(requester, near), Score(requester, noLocation))
	// Outside the radius earns nothing.
	assert.Equal(t, Score(requester, noLocation), Score(requester, far))
}
