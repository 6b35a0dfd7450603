package models

import "github.com/google/uuid"

// UserReferralStats is a derived aggregate over a user's referral history,
// materialized as a SQL view owned by the store. The engine reads it for
// eligibility checks and exposes it unchanged to callers.
type UserReferralStats struct {
	UserID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalReferrals      int64     `json:"total_referrals"`
	PendingReferrals    int64     `json:"pending_referrals"`
	ConvertedReferrals  int64     `json:"converted_referrals"`
	FraudulentReferrals int64     `json:"fraudulent_referrals"`
	TotalClicks         int64     `json:"total_clicks"`
}

// TableName points GORM at the view
func (UserReferralStats) TableName() string {
	return "user_referral_stats"
}
