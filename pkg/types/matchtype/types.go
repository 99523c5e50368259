package matchtype

import (
	"time"
)

// Gender of a user as reported by the profile service.
type Gender int

const (
	GenderMale Gender = iota
	GenderFemale
)

// Interest is the gender a user wants to be matched with.
type Interest int

const (
	InterestMale Interest = iota
	InterestFemale
	InterestAny
)

// Wants reports whether an interest accepts the given gender.
func (i Interest) Wants(g Gender) bool {
	switch i {
	case InterestAny:
		return true
	case InterestMale:
		return g == GenderMale
	case InterestFemale:
		return g == GenderFemale
	}
	return false
}

// MatchProfile is the read-only matching view of a user, owned by the
// profile service and fetched over the bridge.
type MatchProfile struct {
	UserID          int64      `json:"user_id"`
	Gender          Gender     `json:"gender"`
	Interest        Interest   `json:"interest"`
	Age             int        `json:"age"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	SearchRadiusKm  int        `json:"search_radius_km"`
	Banned          bool       `json:"banned"`
	SoftBanUntil    *time.Time `json:"soft_ban_until,omitempty"`
	Premium         bool       `json:"premium"`
	ActivityScore   float64    `json:"activity_score"`
	Rating          float64    `json:"rating"`
	RecentPairCount int        `json:"recent_pair_count"`
}

// Blocked reports whether the user may not be matched at the given time.
func (p *MatchProfile) Blocked(now time.Time) bool {
	if p.Banned {
		return true
	}
	return p.SoftBanUntil != nil && p.SoftBanUntil.After(now)
}

// PendingEntry is one row of the waiting queue. At most one entry exists
// per user; Enqueue replaces any previous one.
type PendingEntry struct {
	UserID     int64     `json:"user_id"`
	Gender     Gender    `json:"gender"`
	Interest   Interest  `json:"interest"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type PairStatus string

const (
	PairStatusActive PairStatus = "active"
	PairStatusEnded  PairStatus = "ended"
)

// End reasons written to the pair record.
const (
	EndReasonUserStop  = "user_stop"
	EndReasonNext      = "user_next"
	EndReasonAutoEnded = "auto_ended"
)

// Pair is one conversation between two matched users. A pair only moves
// active -> ended; a new conversation always creates a new row.
type Pair struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        int64      `gorm:"index:idx_pairs_user" json:"user_id"`
	PartnerID     int64      `gorm:"index:idx_pairs_partner" json:"partner_id"`
	Status        PairStatus `gorm:"size:16;index" json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	EndedBy       *int64     `json:"ended_by,omitempty"`
	EndReason     string     `gorm:"size:32" json:"end_reason,omitempty"`
	LastMessageAt time.Time  `json:"last_message_at"`
	MessageCount  int        `json:"message_count"`
	UserRating    *int       `json:"user_rating,omitempty"`
	PartnerRating *int       `json:"partner_rating,omitempty"`
}

// Involves reports whether the user participates in the pair.
func (p *Pair) Involves(userID int64) bool {
	return p.UserID == userID || p.PartnerID == userID
}

// PartnerOf returns the other participant.
func (p *Pair) PartnerOf(userID int64) int64 {
	if p.UserID == userID {
		return p.PartnerID
	}
	return p.UserID
}
