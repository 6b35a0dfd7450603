package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReferralStatus is the lifecycle status of a referral
type ReferralStatus string

const (
	ReferralStatusPending    ReferralStatus = "pending"
	ReferralStatusConverted  ReferralStatus = "converted"
	ReferralStatusExpired    ReferralStatus = "expired"
	ReferralStatusFraudulent ReferralStatus = "fraudulent"
)

// Touchpoint is one recorded attribution event with marketing context.
// Touchpoints are immutable once appended.
type Touchpoint struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Medium    string    `json:"medium,omitempty"`
	Campaign  string    `json:"campaign,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Attribution is the click-attribution payload nested inside a referral.
// The touchpoint list is bounded; the oldest entries are evicted first.
type Attribution struct {
	ClickCount  int          `json:"click_count"`
	LastClickAt *time.Time   `json:"last_click_at,omitempty"`
	Touchpoints []Touchpoint `json:"touchpoints"`
}

// Value implements the driver.Valuer interface for Attribution
func (a Attribution) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for Attribution
func (a *Attribution) Scan(value interface{}) error {
	if value == nil {
		*a = Attribution{}
		return nil
	}

	bytes, err := toBytes(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, a)
}

// Referral represents one outstanding or resolved referral link
type Referral struct {
	Base
	ReferrerID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"referrer_id"`
	RefereeID   *uuid.UUID     `gorm:"type:uuid;index" json:"referee_id,omitempty"`
	CampaignID  *uuid.UUID     `gorm:"type:uuid;index" json:"campaign_id,omitempty"`
	Code        string         `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Status      ReferralStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attribution Attribution    `gorm:"type:jsonb" json:"attribution"`
	RiskScore   int            `gorm:"not null;default:0" json:"risk_score"`
	FraudFlags  StringList     `gorm:"type:jsonb" json:"fraud_flags,omitempty"`
	Metadata    JSON           `gorm:"type:jsonb" json:"metadata,omitempty"`
	ConvertedAt *time.Time     `json:"converted_at,omitempty"`
	ExpiresAt   *time.Time     `gorm:"index" json:"expires_at,omitempty"`
}

// Expired reports whether the referral's expiry timestamp has passed.
// Expiry is enforced lazily on access, not by a background sweep.
func (r *Referral) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
