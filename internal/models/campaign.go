package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CampaignStatus is the status of a referral campaign
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusInactive CampaignStatus = "inactive"
)

// RewardSpec describes one side of a campaign's reward schedule
type RewardSpec struct {
	Type       string          `json:"type,omitempty"` // e.g. "credit", "cash", "discount"
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	ExpiryDays int             `json:"expiry_days,omitempty"`
}

// Empty reports whether the spec carries no payable reward
func (r RewardSpec) Empty() bool {
	return r.Type == "" || !r.Amount.IsPositive()
}

// Value implements the driver.Valuer interface for RewardSpec
func (r RewardSpec) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for RewardSpec
func (r *RewardSpec) Scan(value interface{}) error {
	if value == nil {
		*r = RewardSpec{}
		return nil
	}

	bytes, err := toBytes(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, r)
}

// EligibilityRules is a campaign's eligibility rule set.
// AllowedTiers and MinAccountAgeDays are declared but accepted permissively
// until the user-profile collaborator is integrated.
type EligibilityRules struct {
	ExcludedUsers        []string `json:"excluded_users,omitempty"`
	MaxPreviousReferrals *int     `json:"max_previous_referrals,omitempty"`
	MinAccountAgeDays    *int     `json:"min_account_age_days,omitempty"`
	AllowedTiers         []string `json:"allowed_tiers,omitempty"`
}

// Value implements the driver.Valuer interface for EligibilityRules
func (e EligibilityRules) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface for EligibilityRules
func (e *EligibilityRules) Scan(value interface{}) error {
	if value == nil {
		*e = EligibilityRules{}
		return nil
	}

	bytes, err := toBytes(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, e)
}

// Campaign represents a time-boxed referral promotion
type Campaign struct {
	Base
	Slug           string           `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Name           string           `gorm:"type:varchar(255);not null" json:"name"`
	Status         CampaignStatus   `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Priority       int              `gorm:"not null;default:0;index" json:"priority"`
	StartDate      time.Time        `gorm:"not null;index" json:"start_date"`
	EndDate        *time.Time       `gorm:"index" json:"end_date,omitempty"` // nil = open-ended
	Eligibility    EligibilityRules `gorm:"type:jsonb" json:"eligibility"`
	ReferrerReward RewardSpec       `gorm:"type:jsonb" json:"referrer_reward"`
	RefereeReward  RewardSpec       `gorm:"type:jsonb" json:"referee_reward"`
}

// ActiveAt reports whether the campaign accepts new referrals at the given
// time: status active and now within [start_date, end_date).
func (c *Campaign) ActiveAt(now time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	if now.Before(c.StartDate) {
		return false
	}
	if c.EndDate != nil && !now.Before(*c.EndDate) {
		return false
	}
	return true
}
