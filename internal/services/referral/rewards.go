package referral

import (
	"fmt"
	"time"

	"github.com/craftfolio/backend/internal/config"
	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// issueRewards creates one reward row per side of the campaign's reward
// schedule that carries a payable entry. A referral without a campaign
// yields no rewards; that is not an error.
func issueRewards(tx *gorm.DB, cfg config.ReferralConfig, referral *models.Referral, campaign *models.Campaign) ([]models.Reward, error) {
	if campaign == nil || referral.RefereeID == nil {
		return nil, nil
	}

	status := models.RewardStatusPending
	if cfg.AutoApproveRewards {
		status = models.RewardStatusApproved
	}

	sides := []struct {
		role      models.RewardRole
		spec      models.RewardSpec
		recipient uuid.UUID
	}{
		{models.RewardRoleReferrer, campaign.ReferrerReward, referral.ReferrerID},
		{models.RewardRoleReferee, campaign.RefereeReward, *referral.RefereeID},
	}

	now := time.Now()
	rewards := make([]models.Reward, 0, len(sides))
	for _, side := range sides {
		if side.spec.Empty() {
			continue
		}

		reward := models.Reward{
			ReferralID:  referral.ID,
			Role:        side.role,
			CampaignID:  referral.CampaignID,
			RecipientID: side.recipient,
			Type:        side.spec.Type,
			Amount:      side.spec.Amount,
			Currency:    side.spec.Currency,
			Status:      status,
		}
		if side.spec.ExpiryDays > 0 {
			expiresAt := now.AddDate(0, 0, side.spec.ExpiryDays)
			reward.ExpiresAt = &expiresAt
		}

		if err := tx.Create(&reward).Error; err != nil {
			return nil, fmt.Errorf("failed to create %s reward for referral %s: %w", side.role, referral.ID, err)
		}
		rewards = append(rewards, reward)
	}

	return rewards, nil
}
