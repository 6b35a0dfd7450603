package referral

import (
	"testing"

	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReferrerUnderCap(t *testing.T) {
	db := setupTestDB(t)
	validator := NewEligibilityValidator(db, testConfig())

	assert.NoError(t, validator.ValidateReferrer(uuid.New(), nil))
}

func TestValidateReferrerGlobalCap(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.MaxReferralsPerUser = 2
	validator := NewEligibilityValidator(db, cfg)

	referrerID := uuid.New()
	seedReferral(t, db, referrerID, "CAPAA234")
	seedReferral(t, db, referrerID, "CAPBB234")

	err := validator.ValidateReferrer(referrerID, nil)
	assert.True(t, IsValidationCode(err, CodeMaxReferralsExceeded))

	// Other users are unaffected
	assert.NoError(t, validator.ValidateReferrer(uuid.New(), nil))
}

func TestValidateReferrerExcludedFromCampaign(t *testing.T) {
	db := setupTestDB(t)
	validator := NewEligibilityValidator(db, testConfig())

	referrerID := uuid.New()
	campaign := seedActiveCampaign(t, db, "spring-launch", 0)
	campaign.Eligibility = models.EligibilityRules{
		ExcludedUsers: []string{referrerID.String()},
	}
	require.NoError(t, db.Save(campaign).Error)

	err := validator.ValidateReferrer(referrerID, campaign)
	assert.True(t, IsValidationCode(err, CodeNotEligible))
}

func TestValidateReferrerCampaignReferralLimit(t *testing.T) {
	db := setupTestDB(t)
	validator := NewEligibilityValidator(db, testConfig())

	referrerID := uuid.New()
	campaign := seedActiveCampaign(t, db, "limited", 0)
	campaign.Eligibility = models.EligibilityRules{
		MaxPreviousReferrals: intPtr(1),
	}
	require.NoError(t, db.Save(campaign).Error)

	existing := seedReferral(t, db, referrerID, "LIMIT234")
	existing.CampaignID = &campaign.ID
	require.NoError(t, db.Save(existing).Error)

	err := validator.ValidateReferrer(referrerID, campaign)
	assert.True(t, IsValidationCode(err, CodeNotEligible))
}
