package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral event types recorded in the audit trail
const (
	EventLinkGenerated      = "referral_link_generated"
	EventLinkClicked        = "referral_link_clicked"
	EventConverted          = "referral_converted"
	EventFraudDetected      = "fraud_detected"
	EventReferralSuccessful = "referral_successful"
)

// ReferralEvent is an append-only audit log row for referral state
// transitions. Rows are never mutated or deleted by the engine.
type ReferralEvent struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ReferralID        *uuid.UUID `gorm:"type:uuid;index" json:"referral_id,omitempty"`
	CampaignID        *uuid.UUID `gorm:"type:uuid;index" json:"campaign_id,omitempty"`
	UserID            *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	EventType         string     `gorm:"type:varchar(50);not null;index" json:"event_type"`
	Properties        JSON       `gorm:"type:jsonb" json:"properties,omitempty"`
	IPAddress         string     `gorm:"type:varchar(64);index" json:"ip_address,omitempty"`
	UserAgent         string     `gorm:"type:varchar(1024)" json:"user_agent,omitempty"`
	DeviceFingerprint string     `gorm:"type:varchar(128);index" json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (e *ReferralEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
