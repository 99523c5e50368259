package service

import (
	"context"
	"fmt"

	"roulette/pkg/types/matchtype"
	"roulette/services/match/store"
)

// HealthMonitor reads aggregate queue state for operators and for the
// enqueue response. It never mutates the queue.
type HealthMonitor struct {
	queue              store.PendingQueue
	overcrowdThreshold int
	balanceMinRatio    float64
}

func NewHealthMonitor(queue store.PendingQueue, overcrowdThreshold int, balanceMinRatio float64) *HealthMonitor {
	return &HealthMonitor{
		queue:              queue,
		overcrowdThreshold: overcrowdThreshold,
		balanceMinRatio:    balanceMinRatio,
	}
}

type QueueHealth struct {
	TotalWaiting     int     `json:"total_waiting"`
	Overcrowded      bool    `json:"overcrowded"`
	MaleWaiting      int     `json:"male_waiting"`
	FemaleWaiting    int     `json:"female_waiting"`
	Balanced         bool    `json:"balanced"`
	Underrepresented *string `json:"underrepresented,omitempty"`
}

// IsOvercrowded reports whether the waiting count exceeds the threshold.
// Exactly at the threshold is still fine.
func (h *HealthMonitor) IsOvercrowded(ctx context.Context) (bool, error) {
	total, err := h.queue.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("queue count: %w", err)
	}
	return total > h.overcrowdThreshold, nil
}

// GenderBalance reports whether the minority gender holds at least the
// configured fraction of the queue. An empty queue is balanced.
func (h *HealthMonitor) GenderBalance(ctx context.Context) (male, female int, balanced bool, err error) {
	male, female, err = h.queue.GenderBalance(ctx)
	if err != nil {
		return 0, 0, false, fmt.Errorf("gender balance: %w", err)
	}

	total := male + female
	if total == 0 {
		return 0, 0, true, nil
	}

	minority := male
	if female < male {
		minority = female
	}
	balanced = float64(minority)/float64(total) >= h.balanceMinRatio
	return male, female, balanced, nil
}

// UnderrepresentedGender names the minority gender when the queue is
// imbalanced, nil otherwise. Equal counts never name a gender.
func (h *HealthMonitor) UnderrepresentedGender(ctx context.Context) (*matchtype.Gender, error) {
	male, female, balanced, err := h.GenderBalance(ctx)
	if err != nil {
		return nil, err
	}
	if balanced || male == female {
		return nil, nil
	}

	g := matchtype.GenderMale
	if female < male {
		g = matchtype.GenderFemale
	}
	return &g, nil
}

// Snapshot bundles every health signal into one report.
func (h *HealthMonitor) Snapshot(ctx context.Context) (*QueueHealth, error) {
	male, female, balanced, err := h.GenderBalance(ctx)
	if err != nil {
		return nil, err
	}
	total, err := h.queue.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue count: %w", err)
	}

	health := &QueueHealth{
		TotalWaiting:  total,
		Overcrowded:   total > h.overcrowdThreshold,
		MaleWaiting:   male,
		FemaleWaiting: female,
		Balanced:      balanced,
	}
	if !balanced && male != female {
		name := "male"
		if female < male {
			name = "female"
		}
		health.Underrepresented = &name
	}
	return health, nil
}
