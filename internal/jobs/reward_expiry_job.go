package jobs

import (
	"context"
	"log"
	"time"

	"github.com/craftfolio/backend/internal/models"
	"gorm.io/gorm"
)

// RewardExpiryJob sweeps pending rewards past their expiry date
type RewardExpiryJob struct {
	db *gorm.DB
}

// NewRewardExpiryJob creates a new reward expiry job
func NewRewardExpiryJob(db *gorm.DB) *RewardExpiryJob {
	return &RewardExpiryJob{db: db}
}

// Run transitions all overdue pending rewards to expired
func (j *RewardExpiryJob) Run(ctx context.Context) error {
	now := time.Now()

	result := j.db.WithContext(ctx).Model(&models.Reward{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.RewardStatusPending, now).
		Update("status", models.RewardStatusExpired)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Expired %d overdue rewards", result.RowsAffected)
	}
	return nil
}
