package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RewardRole identifies which side of the referral a reward pays out to
type RewardRole string

const (
	RewardRoleReferrer RewardRole = "referrer"
	RewardRoleReferee  RewardRole = "referee"
)

// RewardStatus is the payout status of a reward.
// The transition to "paid" belongs to the external payout collaborator.
type RewardStatus string

const (
	RewardStatusPending  RewardStatus = "pending"
	RewardStatusApproved RewardStatus = "approved"
	RewardStatusPaid     RewardStatus = "paid"
	RewardStatusExpired  RewardStatus = "expired"
)

// Reward represents a single payout unit tied to one referral and one recipient
type Reward struct {
	Base
	ReferralID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_rewards_referral_role" json:"referral_id"`
	Role        RewardRole      `gorm:"type:varchar(10);not null;uniqueIndex:idx_rewards_referral_role" json:"role"`
	CampaignID  *uuid.UUID      `gorm:"type:uuid;index" json:"campaign_id,omitempty"`
	RecipientID uuid.UUID       `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type        string          `gorm:"type:varchar(50);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status      RewardStatus    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt   *time.Time      `gorm:"index" json:"expires_at,omitempty"`
}
