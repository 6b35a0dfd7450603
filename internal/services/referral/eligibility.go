package referral

import (
	"fmt"

	"github.com/craftfolio/backend/internal/config"
	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EligibilityValidator enforces the global referral cap and
// campaign-specific eligibility rules.
type EligibilityValidator struct {
	db  *gorm.DB
	cfg config.ReferralConfig
}

// NewEligibilityValidator creates a new eligibility validator
func NewEligibilityValidator(db *gorm.DB, cfg config.ReferralConfig) *EligibilityValidator {
	return &EligibilityValidator{db: db, cfg: cfg}
}

// ValidateReferrer checks the referrer against the global cap and, when a
// campaign is resolved, against that campaign's rules.
func (v *EligibilityValidator) ValidateReferrer(referrerID uuid.UUID, campaign *models.Campaign) error {
	if v.cfg.MaxReferralsPerUser > 0 {
		var total int64
		if err := v.db.Model(&models.Referral{}).
			Where("referrer_id = ?", referrerID).
			Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count referrals for user %s: %w", referrerID, err)
		}

		if total >= int64(v.cfg.MaxReferralsPerUser) {
			return newValidationError(CodeMaxReferralsExceeded,
				fmt.Sprintf("referral limit of %d reached", v.cfg.MaxReferralsPerUser))
		}
	}

	if campaign != nil {
		return v.validateCampaignRules(referrerID, campaign)
	}

	return nil
}

// validateCampaignRules is the pure predicate over a (user, campaign)
// pair. User tier and minimum account age are declared in the rule set but
// accepted permissively until the user-profile collaborator is wired in.
func (v *EligibilityValidator) validateCampaignRules(userID uuid.UUID, campaign *models.Campaign) error {
	rules := campaign.Eligibility

	for _, excluded := range rules.ExcludedUsers {
		if excluded == userID.String() {
			return newValidationError(CodeNotEligible,
				fmt.Sprintf("user is excluded from campaign %s", campaign.Slug))
		}
	}

	if rules.MaxPreviousReferrals != nil {
		var count int64
		if err := v.db.Model(&models.Referral{}).
			Where("referrer_id = ? AND campaign_id = ?", userID, campaign.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count campaign referrals for user %s: %w", userID, err)
		}

		if count >= int64(*rules.MaxPreviousReferrals) {
			return newValidationError(CodeNotEligible,
				fmt.Sprintf("campaign %s referral limit of %d reached", campaign.Slug, *rules.MaxPreviousReferrals))
		}
	}

	return nil
}
