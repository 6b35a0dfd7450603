package referral

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReferral(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	referrerID := uuid.New()
	result, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)

	assert.Len(t, result.ShareCode, 8)
	assert.Equal(t, "https://app.craftfolio.io/r/"+result.ShareCode, result.ShareURL)
	assert.Equal(t, models.ReferralStatusPending, result.Referral.Status)
	assert.Equal(t, referrerID, result.Referral.ReferrerID)
	require.NotNil(t, result.Referral.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *result.Referral.ExpiresAt, time.Minute)

	// Audit trail row is written
	var event models.ReferralEvent
	require.NoError(t, db.Where("event_type = ?", models.EventLinkGenerated).First(&event).Error)
	require.NotNil(t, event.ReferralID)
	assert.Equal(t, result.Referral.ID, *event.ReferralID)
}

func TestCreateReferralResolvesHighestPriorityCampaign(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	seedActiveCampaign(t, db, "baseline", 1)
	preferred := seedActiveCampaign(t, db, "double-bonus", 10)

	result, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)
	require.NotNil(t, result.Referral.CampaignID)
	assert.Equal(t, preferred.ID, *result.Referral.CampaignID)
	assert.Contains(t, result.ShareURL, "?c=double-bonus")
}

func TestCreateReferralIgnoresInactiveExplicitCampaign(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	inactive := seedActiveCampaign(t, db, "over", 5)
	inactive.Status = models.CampaignStatusInactive
	require.NoError(t, db.Save(inactive).Error)
	fallback := seedActiveCampaign(t, db, "fallback", 1)

	result, err := svc.CreateReferral(ctx, CreateReferralInput{
		ReferrerID: uuid.New(),
		CampaignID: &inactive.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Referral.CampaignID)
	assert.Equal(t, fallback.ID, *result.Referral.CampaignID)
}

func TestCreateReferralEnforcesGlobalCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReferralsPerUser = 1
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	referrerID := uuid.New()
	_, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)

	_, err = svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	assert.True(t, IsValidationCode(err, CodeMaxReferralsExceeded))
}

func TestTrackClick(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	result, err := svc.TrackClick(ctx, ClickInput{
		Code: created.ShareCode,
		Attribution: AttributionData{
			UTMSource: "twitter",
			UTMMedium: "social",
			IPAddress: "198.51.100.4",
			UserAgent: "Mozilla/5.0",
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, created.Referral.ID, result.ReferralID)
	assert.Contains(t, result.RedirectURL, "ref="+created.ShareCode)
	assert.Contains(t, result.RedirectURL, "utm_source=twitter")

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", created.Referral.ID).Error)
	assert.Equal(t, 1, referral.Attribution.ClickCount)
	require.NotNil(t, referral.Attribution.LastClickAt)
	require.Len(t, referral.Attribution.Touchpoints, 1)
	assert.Equal(t, "twitter", referral.Attribution.Touchpoints[0].Source)
	assert.Equal(t, "198.51.100.4", referral.Attribution.Touchpoints[0].IPAddress)

	var event models.ReferralEvent
	require.NoError(t, db.Where("event_type = ?", models.EventLinkClicked).First(&event).Error)
	assert.Equal(t, "198.51.100.4", event.IPAddress)
}

func TestTrackClickCapsTouchpoints(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		_, err := svc.TrackClick(ctx, ClickInput{
			Code:        created.ShareCode,
			Attribution: AttributionData{UTMSource: fmt.Sprintf("source-%d", i)},
		})
		require.NoError(t, err)
	}

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", created.Referral.ID).Error)
	assert.Equal(t, 15, referral.Attribution.ClickCount)
	require.Len(t, referral.Attribution.Touchpoints, 10)

	// Oldest touchpoints are evicted; the newest survive in order
	assert.Equal(t, "source-5", referral.Attribution.Touchpoints[0].Source)
	assert.Equal(t, "source-14", referral.Attribution.Touchpoints[9].Source)
}

func TestTrackClickUnknownCode(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	_, err := svc.TrackClick(context.Background(), ClickInput{Code: "NOPE2345"})
	assert.True(t, IsValidationCode(err, CodeInvalidCode))
}

func TestTrackClickExpiresOverdueReferral(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Referral{}).
		Where("id = ?", created.Referral.ID).
		Update("expires_at", past).Error)

	_, err = svc.TrackClick(ctx, ClickInput{Code: created.ShareCode})
	assert.True(t, IsValidationCode(err, CodeExpiredCode))

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", created.Referral.ID).Error)
	assert.Equal(t, models.ReferralStatusExpired, referral.Status)

	// Once expired the code no longer resolves
	_, err = svc.TrackClick(ctx, ClickInput{Code: created.ShareCode})
	assert.True(t, IsValidationCode(err, CodeInvalidCode))
}

func TestConvert(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	campaign := seedActiveCampaign(t, db, "launch", 0)
	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)
	require.NotNil(t, created.Referral.CampaignID)

	refereeID := uuid.New()
	result, err := svc.Convert(ctx, ConvertInput{
		Code:      created.ShareCode,
		RefereeID: refereeID,
		Metadata:  map[string]interface{}{"plan": "pro"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.ReferralStatusConverted, result.Referral.Status)
	require.NotNil(t, result.Referral.RefereeID)
	assert.Equal(t, refereeID, *result.Referral.RefereeID)
	assert.NotNil(t, result.Referral.ConvertedAt)
	assert.Equal(t, "pro", result.Referral.Metadata["plan"])

	require.Len(t, result.Rewards, 2)
	byRole := map[models.RewardRole]models.Reward{}
	for _, reward := range result.Rewards {
		byRole[reward.Role] = reward
	}

	referrerReward := byRole[models.RewardRoleReferrer]
	assert.Equal(t, created.Referral.ReferrerID, referrerReward.RecipientID)
	assert.True(t, referrerReward.Amount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, models.RewardStatusApproved, referrerReward.Status)
	assert.Nil(t, referrerReward.ExpiresAt)

	refereeReward := byRole[models.RewardRoleReferee]
	assert.Equal(t, refereeID, refereeReward.RecipientID)
	assert.True(t, refereeReward.Amount.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, refereeReward.ExpiresAt)
	assert.Equal(t, campaign.ID, *refereeReward.CampaignID)
}

func TestConvertSelfReferral(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	referrerID := uuid.New()
	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)

	_, err = svc.Convert(ctx, ConvertInput{Code: created.ShareCode, RefereeID: referrerID})
	assert.True(t, IsValidationCode(err, CodeSelfReferral))
}

func TestConvertRejectsSecondConversion(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	first, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)
	second, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	refereeID := uuid.New()
	_, err = svc.Convert(ctx, ConvertInput{Code: first.ShareCode, RefereeID: refereeID})
	require.NoError(t, err)

	_, err = svc.Convert(ctx, ConvertInput{Code: second.ShareCode, RefereeID: refereeID})
	assert.True(t, IsValidationCode(err, CodeAlreadyConverted))
}

func TestConvertWithoutCampaignIssuesNoRewards(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	result, err := svc.Convert(ctx, ConvertInput{Code: created.ShareCode, RefereeID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusConverted, result.Referral.Status)
	assert.Empty(t, result.Rewards)
}

func TestConvertRewardsStayPendingWithoutAutoApprove(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApproveRewards = false
	svc, db := newTestService(t, cfg)
	ctx := context.Background()

	seedActiveCampaign(t, db, "manual", 0)
	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	result, err := svc.Convert(ctx, ConvertInput{Code: created.ShareCode, RefereeID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, result.Rewards, 2)
	for _, reward := range result.Rewards {
		assert.Equal(t, models.RewardStatusPending, reward.Status)
	}
}

func TestConvertBlocksCriticalRisk(t *testing.T) {
	svc, db := newTestService(t, testConfig())
	ctx := context.Background()

	referrerID := uuid.New()
	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)

	// All three heuristics fire: burst of recent referrals plus click
	// history sharing this referral's IP and device fingerprint.
	_, err = svc.TrackClick(ctx, ClickInput{
		Code:              created.ShareCode,
		Attribution:       AttributionData{IPAddress: "203.0.113.50"},
		DeviceFingerprint: "device-fraud",
	})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		seedReferral(t, db, referrerID, randomTestCode(t))
	}
	for i := 0; i < 3; i++ {
		other := seedReferral(t, db, uuid.New(), randomTestCode(t))
		seedClickEvent(t, db, other.ID, "203.0.113.50", "device-fraud")
	}

	_, err = svc.Convert(ctx, ConvertInput{Code: created.ShareCode, RefereeID: uuid.New()})
	var fraudErr *FraudError
	require.ErrorAs(t, err, &fraudErr)
	assert.Equal(t, 75, fraudErr.Score)
	assert.Len(t, fraudErr.Flags, 3)

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", created.Referral.ID).Error)
	assert.Equal(t, models.ReferralStatusFraudulent, referral.Status)
	assert.Equal(t, 75, referral.RiskScore)
	assert.Len(t, []string(referral.FraudFlags), 3)

	var fraudEvents int64
	require.NoError(t, db.Model(&models.ReferralEvent{}).
		Where("event_type = ?", models.EventFraudDetected).
		Count(&fraudEvents).Error)
	assert.Equal(t, int64(1), fraudEvents)

	// No rewards for a blocked conversion
	var rewards int64
	require.NoError(t, db.Model(&models.Reward{}).Count(&rewards).Error)
	assert.Zero(t, rewards)
}

func TestListReferrals(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	referrerID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
		require.NoError(t, err)
	}
	_, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: uuid.New()})
	require.NoError(t, err)

	referrals, err := svc.ListReferrals(ctx, referrerID)
	require.NoError(t, err)
	assert.Len(t, referrals, 3)
}

func TestGetStats(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	referrerID := uuid.New()

	// Unknown users get zeroed stats, not an error
	stats, err := svc.GetStats(ctx, referrerID)
	require.NoError(t, err)
	assert.Equal(t, referrerID, stats.UserID)
	assert.Zero(t, stats.TotalReferrals)

	created, err := svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)
	_, err = svc.CreateReferral(ctx, CreateReferralInput{ReferrerID: referrerID})
	require.NoError(t, err)

	_, err = svc.TrackClick(ctx, ClickInput{Code: created.ShareCode})
	require.NoError(t, err)
	_, err = svc.TrackClick(ctx, ClickInput{Code: created.ShareCode})
	require.NoError(t, err)

	_, err = svc.Convert(ctx, ConvertInput{Code: created.ShareCode, RefereeID: uuid.New()})
	require.NoError(t, err)

	stats, err = svc.GetStats(ctx, referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalReferrals)
	assert.Equal(t, int64(1), stats.PendingReferrals)
	assert.Equal(t, int64(1), stats.ConvertedReferrals)
	assert.Equal(t, int64(2), stats.TotalClicks)
}
