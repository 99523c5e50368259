package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"roulette/pkg/types/matchtype"
)

type PairRepository struct {
	db *gorm.DB
}

func NewPairRepository(db *gorm.DB) *PairRepository {
	return &PairRepository{db: db}
}

func (r *PairRepository) InitDB() error {
	err := r.db.AutoMigrate(&matchtype.Pair{})
	if err != nil {
		log.Printf("Failed to migrate pairs table: %v", err)
		return err
	}
	return nil
}

func (r *PairRepository) CreateActive(ctx context.Context, userID, partnerID int64) (*matchtype.Pair, error) {
	if userID == partnerID {
		return nil, errors.New("pair participants must be distinct")
	}

	now := time.Now()
	pair := matchtype.Pair{
		ID:            uuid.NewString(),
		UserID:        userID,
		PartnerID:     partnerID,
		Status:        matchtype.PairStatusActive,
		StartedAt:     now,
		LastMessageAt: now,
	}

	if err := r.db.WithContext(ctx).Create(&pair).Error; err != nil {
		log.Printf("Failed to insert pair for users %d/%d: %v", userID, partnerID, err)
		return nil, err
	}
	return &pair, nil
}

func (r *PairRepository) FindActiveByUser(ctx context.Context, userID int64) (*matchtype.Pair, error) {
	var pair matchtype.Pair
	err := r.db.WithContext(ctx).
		Where("status = ? AND (user_id = ? OR partner_id = ?)", matchtype.PairStatusActive, userID, userID).
		First(&pair).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pair, nil
}

// End closes the pair. The WHERE on status makes the update a no-op when
// the pair was already ended, so a double end never rewrites ended_at.
func (r *PairRepository) End(ctx context.Context, pairID string, endedBy int64, reason string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&matchtype.Pair{}).
		Where("id = ? AND status = ?", pairID, matchtype.PairStatusActive).
		Updates(map[string]interface{}{
			"status":     matchtype.PairStatusEnded,
			"ended_at":   now,
			"ended_by":   endedBy,
			"end_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&matchtype.Pair{}).Where("id = ?", pairID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, matchtype.ErrPairNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *PairRepository) FindStaleActive(ctx context.Context, inactiveFor time.Duration) ([]matchtype.Pair, error) {
	var pairs []matchtype.Pair
	cutoff := time.Now().Add(-inactiveFor)
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_message_at < ?", matchtype.PairStatusActive, cutoff).
		Find(&pairs).Error
	return pairs, err
}

func (r *PairRepository) FindExpiredActive(ctx context.Context, maxDuration time.Duration) ([]matchtype.Pair, error) {
	var pairs []matchtype.Pair
	cutoff := time.Now().Add(-maxDuration)
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", matchtype.PairStatusActive, cutoff).
		Find(&pairs).Error
	return pairs, err
}

func (r *PairRepository) RecordMessage(ctx context.Context, pairID string) error {
	result := r.db.WithContext(ctx).
		Model(&matchtype.Pair{}).
		Where("id = ? AND status = ?", pairID, matchtype.PairStatusActive).
		Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return matchtype.ErrPairEnded
	}
	return nil
}

func (r *PairRepository) Rate(ctx context.Context, pairID string, raterUserID int64, score int) error {
	var pair matchtype.Pair
	if err := r.db.WithContext(ctx).First(&pair, "id = ?", pairID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return matchtype.ErrPairNotFound
		}
		return err
	}

	var column string
	switch raterUserID {
	case pair.UserID:
		column = "user_rating"
	case pair.PartnerID:
		column = "partner_rating"
	default:
		return errors.New("rater is not a participant")
	}

	return r.db.WithContext(ctx).
		Model(&matchtype.Pair{}).
		Where("id = ?", pairID).
		Update(column, score).Error
}

// RecentPartnerIDs lists everyone the user conversed with since the given
// time, for the variety cooldown.
func (r *PairRepository) RecentPartnerIDs(ctx context.Context, userID int64, since time.Time) ([]int64, error) {
	var pairs []matchtype.Pair
	err := r.db.WithContext(ctx).
		Where("(user_id = ? OR partner_id = ?) AND (started_at >= ? OR ended_at >= ?)", userID, userID, since, since).
		Find(&pairs).Error
	if err != nil {
		return nil, err
	}

	partners := make([]int64, 0, len(pairs))
	for _, pair := range pairs {
		partners = append(partners, pair.PartnerOf(userID))
	}
	return partners, nil
}

func (r *PairRepository) PurgeEnded(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("status = ? AND ended_at < ?", matchtype.PairStatusEnded, cutoff).
		Delete(&matchtype.Pair{})
	return int(result.RowsAffected), result.Error
}
