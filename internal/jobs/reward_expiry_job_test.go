package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Referral{}, &models.Reward{}))
	return db
}

func seedReward(t *testing.T, db *gorm.DB, status models.RewardStatus, expiresAt *time.Time) *models.Reward {
	t.Helper()
	reward := &models.Reward{
		ReferralID:  uuid.New(),
		Role:        models.RewardRoleReferrer,
		RecipientID: uuid.New(),
		Type:        "credit",
		Amount:      decimal.NewFromInt(25),
		Currency:    "USD",
		Status:      status,
		ExpiresAt:   expiresAt,
	}
	require.NoError(t, db.Create(reward).Error)
	return reward
}

func TestRewardExpirySweep(t *testing.T) {
	db := setupTestDB(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	overdue := seedReward(t, db, models.RewardStatusPending, &past)
	upcoming := seedReward(t, db, models.RewardStatusPending, &future)
	open := seedReward(t, db, models.RewardStatusPending, nil)
	paid := seedReward(t, db, models.RewardStatusPaid, &past)

	require.NoError(t, NewRewardExpiryJob(db).Run(context.Background()))

	assertStatus := func(id uuid.UUID, want models.RewardStatus) {
		var reward models.Reward
		require.NoError(t, db.First(&reward, "id = ?", id).Error)
		assert.Equal(t, want, reward.Status)
	}

	assertStatus(overdue.ID, models.RewardStatusExpired)
	assertStatus(upcoming.ID, models.RewardStatusPending)
	assertStatus(open.ID, models.RewardStatusPending)
	assertStatus(paid.ID, models.RewardStatusPaid)
}

func TestRewardExpirySweepEmpty(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, NewRewardExpiryJob(db).Run(context.Background()))
}
