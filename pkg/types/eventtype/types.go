package eventtype

import (
	"encoding/json"
	"time"
)

type EventPayload struct {
	EventType string          `json:"event_type"`
	UserID    int64           `json:"user_id"`
	Data      json.RawMessage `json:"data"`
}

// Event Types
const (
	EventTypeMatched         = "matched"
	EventTypeEnqueued        = "enqueued"
	EventTypeEnded           = "ended"
	EventTypeSearchCancelled = "search_cancelled"
)

type MatchedEvent struct {
	PairID    string    `json:"pair_id"`
	UserID    int64     `json:"user_id"`
	PartnerID int64     `json:"partner_id"`
	StartedAt time.Time `json:"started_at"`
}

type EnqueuedEvent struct {
	Position     int  `json:"position"`
	TotalWaiting int  `json:"total_waiting"`
	Overcrowded  bool `json:"overcrowded"`
}

type EndedEvent struct {
	PairID  string `json:"pair_id"`
	EndedBy int64  `json:"ended_by"`
	Reason  string `json:"reason"`
}
