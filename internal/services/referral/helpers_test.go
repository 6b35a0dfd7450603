package referral

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/craftfolio/backend/internal/config"
	"github.com/craftfolio/backend/internal/database/migrations"
	"github.com/craftfolio/backend/internal/models"
	"github.com/craftfolio/backend/internal/services/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full schema.
// The DSN is derived from the test name so parallel tests never share
// state.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Campaign{},
		&models.Referral{},
		&models.Reward{},
		&models.ReferralEvent{},
	))
	require.NoError(t, db.Exec(migrations.UserReferralStatsViewSQL).Error)

	return db
}

func testConfig() config.ReferralConfig {
	return config.ReferralConfig{
		ShareBaseURL:          "https://app.craftfolio.io",
		CodeLength:            8,
		CodeMaxAttempts:       10,
		MaxReferralsPerUser:   50,
		MaxTouchpoints:        10,
		LinkTTLDays:           30,
		FraudDetectionEnabled: true,
		AutoApproveRewards:    true,
		AutoApproveLowRisk:    true,
	}
}

func newTestService(t *testing.T, cfg config.ReferralConfig) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewService(db, cfg, analytics.NewTracker(db, nil)), db
}

func seedActiveCampaign(t *testing.T, db *gorm.DB, slug string, priority int) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Slug:      slug,
		Name:      slug,
		Status:    models.CampaignStatusActive,
		Priority:  priority,
		StartDate: time.Now().Add(-time.Hour),
		ReferrerReward: models.RewardSpec{
			Type:     "credit",
			Amount:   decimal.NewFromInt(25),
			Currency: "USD",
		},
		RefereeReward: models.RewardSpec{
			Type:       "discount",
			Amount:     decimal.NewFromInt(10),
			Currency:   "USD",
			ExpiryDays: 14,
		},
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

func seedReferral(t *testing.T, db *gorm.DB, referrerID uuid.UUID, code string) *models.Referral {
	t.Helper()
	referral := &models.Referral{
		ReferrerID: referrerID,
		Code:       code,
		Status:     models.ReferralStatusPending,
		Attribution: models.Attribution{
			Touchpoints: []models.Touchpoint{},
		},
	}
	require.NoError(t, db.Create(referral).Error)
	return referral
}

func seedClickEvent(t *testing.T, db *gorm.DB, referralID uuid.UUID, ip, fingerprint string) {
	t.Helper()
	event := &models.ReferralEvent{
		ReferralID:        &referralID,
		EventType:         models.EventLinkClicked,
		IPAddress:         ip,
		DeviceFingerprint: fingerprint,
	}
	require.NoError(t, db.Create(event).Error)
}

func intPtr(v int) *int { return &v }
