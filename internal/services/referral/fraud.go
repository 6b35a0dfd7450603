package referral

import (
	"fmt"
	"time"

	"github.com/craftfolio/backend/internal/models"
	"gorm.io/gorm"
)

// RiskTier is one of low/medium/high/critical, derived from the weighted
// sum of heuristic risk signals.
type RiskTier string

const (
	TierLow      RiskTier = "low"
	TierMedium   RiskTier = "medium"
	TierHigh     RiskTier = "high"
	TierCritical RiskTier = "critical"
)

// Recommended actions by risk tier
const (
	ActionApprove     = "approve"
	ActionReview      = "review"
	ActionInvestigate = "investigate"
	ActionReject      = "reject"
)

// Fraud flag identifiers recorded on a flagged referral
const (
	FlagHighVelocity      = "high_velocity"
	FlagSharedIP          = "shared_ip"
	FlagSharedFingerprint = "shared_device_fingerprint"
)

// Assessment is the result of scoring a conversion attempt
type Assessment struct {
	Score             int      `json:"score"`
	Tier              RiskTier `json:"tier"`
	Flags             []string `json:"flags"`
	RecommendedAction string   `json:"recommended_action"`
	Confidence        int      `json:"confidence"`
}

// fraudContext bundles the referral under assessment with pre-extracted
// attribution signals, so each rule can run without re-deriving them.
type fraudContext struct {
	referral    *models.Referral
	clickIP     string
	fingerprint string
	now         time.Time
}

// fraudRule is one independent, additive risk signal
type fraudRule struct {
	flag    string
	weight  int
	trigger func(db *gorm.DB, fc *fraudContext) (bool, error)
}

// fraudRules are evaluated independently and summed. Keeping them as data
// lets each rule be unit-tested in isolation and extended without touching
// the scoring loop.
var fraudRules = []fraudRule{
	{
		// Referrer created more than 5 referrals in the trailing 24 hours
		flag:   FlagHighVelocity,
		weight: 30,
		trigger: func(db *gorm.DB, fc *fraudContext) (bool, error) {
			var count int64
			err := db.Model(&models.Referral{}).
				Where("referrer_id = ? AND created_at > ?", fc.referral.ReferrerID, fc.now.Add(-24*time.Hour)).
				Count(&count).Error
			if err != nil {
				return false, fmt.Errorf("failed to count recent referrals: %w", err)
			}
			return count > 5, nil
		},
	},
	{
		// More than 2 click events on other referrals share this
		// referral's attribution IP
		flag:   FlagSharedIP,
		weight: 20,
		trigger: func(db *gorm.DB, fc *fraudContext) (bool, error) {
			if fc.clickIP == "" {
				return false, nil
			}
			var count int64
			err := db.Model(&models.ReferralEvent{}).
				Where("event_type = ? AND ip_address = ? AND referral_id <> ?",
					models.EventLinkClicked, fc.clickIP, fc.referral.ID).
				Count(&count).Error
			if err != nil {
				return false, fmt.Errorf("failed to count shared-IP click events: %w", err)
			}
			return count > 2, nil
		},
	},
	{
		// More than 1 click event on other referrals shares this
		// referral's device fingerprint
		flag:   FlagSharedFingerprint,
		weight: 25,
		trigger: func(db *gorm.DB, fc *fraudContext) (bool, error) {
			if fc.fingerprint == "" {
				return false, nil
			}
			var count int64
			err := db.Model(&models.ReferralEvent{}).
				Where("event_type = ? AND device_fingerprint = ? AND referral_id <> ?",
					models.EventLinkClicked, fc.fingerprint, fc.referral.ID).
				Count(&count).Error
			if err != nil {
				return false, fmt.Errorf("failed to count shared-fingerprint click events: %w", err)
			}
			return count > 1, nil
		},
	},
}

// FraudDetector scores conversion attempts. It reads historical context
// from the store but never writes; status transitions for flagged
// referrals happen in the conversion path.
type FraudDetector struct {
	db *gorm.DB
}

// NewFraudDetector creates a new fraud detector
func NewFraudDetector(db *gorm.DB) *FraudDetector {
	return &FraudDetector{db: db}
}

// Assess scores a conversion attempt against all fraud rules
func (d *FraudDetector) Assess(referral *models.Referral) (*Assessment, error) {
	fc := &fraudContext{
		referral:    referral,
		clickIP:     lastClickIP(referral),
		fingerprint: lastClickFingerprint(d.db, referral),
		now:         time.Now(),
	}

	score := 0
	flags := []string{}
	for _, rule := range fraudRules {
		hit, err := rule.trigger(d.db, fc)
		if err != nil {
			return nil, err
		}
		if hit {
			score += rule.weight
			flags = append(flags, rule.flag)
		}
	}

	tier := tierForScore(score)
	return &Assessment{
		Score:             score,
		Tier:              tier,
		Flags:             flags,
		RecommendedAction: actionForTier(tier),
		Confidence:        confidence(len(flags)),
	}, nil
}

// lastClickIP returns the IP of the most recent touchpoint carrying one
func lastClickIP(referral *models.Referral) string {
	touchpoints := referral.Attribution.Touchpoints
	for i := len(touchpoints) - 1; i >= 0; i-- {
		if touchpoints[i].IPAddress != "" {
			return touchpoints[i].IPAddress
		}
	}
	return ""
}

// lastClickFingerprint returns the device fingerprint from this referral's
// most recent click event, if any was recorded
func lastClickFingerprint(db *gorm.DB, referral *models.Referral) string {
	var event models.ReferralEvent
	err := db.Where("referral_id = ? AND event_type = ? AND device_fingerprint <> ''",
		referral.ID, models.EventLinkClicked).
		Order("created_at desc").
		First(&event).Error
	if err != nil {
		return ""
	}
	return event.DeviceFingerprint
}

func tierForScore(score int) RiskTier {
	switch {
	case score >= 70:
		return TierCritical
	case score >= 50:
		return TierHigh
	case score >= 30:
		return TierMedium
	default:
		return TierLow
	}
}

func actionForTier(tier RiskTier) string {
	switch tier {
	case TierCritical:
		return ActionReject
	case TierHigh:
		return ActionInvestigate
	case TierMedium:
		return ActionReview
	default:
		return ActionApprove
	}
}

func confidence(flagCount int) int {
	c := 60 + 10*flagCount
	if c > 95 {
		return 95
	}
	return c
}
