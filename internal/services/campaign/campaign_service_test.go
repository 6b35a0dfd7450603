package campaign

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
	require.NoError(t, db.AutoMigrate(&models.Campaign{}))
	return db
}

func TestCreateCampaign(t *testing.T) {
	svc := NewService(setupTestDB(t))

	result, err := svc.Create(context.Background(), CreateCampaignInput{
		Name:   "Spring Launch 2026",
		Status: models.CampaignStatusActive,
		ReferrerReward: models.RewardSpec{
			Type:     "credit",
			Amount:   decimal.NewFromInt(25),
			Currency: "USD",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "spring-launch-2026", result.Slug)
	assert.Equal(t, models.CampaignStatusActive, result.Status)
	assert.False(t, result.StartDate.IsZero())
}

func TestCreateCampaignDefaultsInactive(t *testing.T) {
	svc := NewService(setupTestDB(t))

	result, err := svc.Create(context.Background(), CreateCampaignInput{Name: "Draft Promo"})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusInactive, result.Status)
}

func TestUpdateCampaignPartial(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateCampaignInput{Name: "Promo"})
	require.NoError(t, err)

	newName := "Promo Renamed"
	active := models.CampaignStatusActive
	updated, err := svc.Update(ctx, created.ID, UpdateCampaignInput{
		Name:   &newName,
		Status: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "Promo Renamed", updated.Name)
	assert.Equal(t, models.CampaignStatusActive, updated.Status)

	// Slug is stable across renames so existing links keep working
	assert.Equal(t, "promo", updated.Slug)
}

func TestUpdateCampaignNotFound(t *testing.T) {
	svc := NewService(setupTestDB(t))

	_, err := svc.Update(context.Background(), uuid.New(), UpdateCampaignInput{})
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestActiveCampaignFiltering(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now()
	seed := func(slug string, status models.CampaignStatus, start time.Time, end *time.Time, priority int) {
		require.NoError(t, db.Create(&models.Campaign{
			Slug:      slug,
			Name:      slug,
			Status:    status,
			Priority:  priority,
			StartDate: start,
			EndDate:   end,
		}).Error)
	}

	ended := now.Add(-time.Hour)
	seed("running", models.CampaignStatusActive, now.Add(-time.Hour), nil, 1)
	seed("priority", models.CampaignStatusActive, now.Add(-time.Hour), nil, 5)
	seed("upcoming", models.CampaignStatusActive, now.Add(time.Hour), nil, 0)
	seed("finished", models.CampaignStatusActive, now.Add(-48*time.Hour), &ended, 0)
	seed("disabled", models.CampaignStatusInactive, now.Add(-time.Hour), nil, 0)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "priority", active[0].Slug)
	assert.Equal(t, "running", active[1].Slug)
}
