package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// StartScheduledJobs starts the recurring maintenance jobs and returns
// the scheduler so the caller can stop it on shutdown.
func StartScheduledJobs(db *gorm.DB) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)

	rewardExpiry := NewRewardExpiryJob(db)
	_, err := scheduler.Every(1).Day().At("02:00").Do(func() {
		if err := rewardExpiry.Run(context.Background()); err != nil {
			log.Printf("Reward expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Failed to schedule reward expiry sweep: %v", err)
	}

	scheduler.StartAsync()
	return scheduler
}
