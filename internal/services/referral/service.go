package referral

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/craftfolio/backend/internal/config"
	"github.com/craftfolio/backend/internal/models"
	"github.com/craftfolio/backend/internal/services/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service implements the referral engine: create referral, track click,
// convert referral. It holds no state between calls; every invocation
// re-reads what it needs from the store and writes results back.
type Service struct {
	db          *gorm.DB
	cfg         config.ReferralConfig
	events      *analytics.Tracker
	eligibility *EligibilityValidator
	fraud       *FraudDetector
}

// NewService creates a new referral service
func NewService(db *gorm.DB, cfg config.ReferralConfig, events *analytics.Tracker) *Service {
	return &Service{
		db:          db,
		cfg:         cfg,
		events:      events,
		eligibility: NewEligibilityValidator(db, cfg),
		fraud:       NewFraudDetector(db),
	}
}

// CreateReferralInput is the input for CreateReferral
type CreateReferralInput struct {
	ReferrerID uuid.UUID
	CampaignID *uuid.UUID
	Metadata   map[string]interface{}
}

// CreateReferralResult is the result of CreateReferral
type CreateReferralResult struct {
	Referral  *models.Referral `json:"referral"`
	ShareURL  string           `json:"share_url"`
	ShareCode string           `json:"share_code"`
}

// CreateReferral creates a new pending referral with a unique share code
func (s *Service) CreateReferral(ctx context.Context, in CreateReferralInput) (*CreateReferralResult, error) {
	campaign, err := s.resolveCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}

	if err := s.eligibility.ValidateReferrer(in.ReferrerID, campaign); err != nil {
		return nil, err
	}

	code, err := generateUniqueCode(s.cfg.CodeLength, s.cfg.CodeMaxAttempts, s.codeExists(ctx))
	if err != nil {
		return nil, err
	}

	referral := models.Referral{
		ReferrerID: in.ReferrerID,
		Code:       code,
		Status:     models.ReferralStatusPending,
		Attribution: models.Attribution{
			Touchpoints: []models.Touchpoint{},
		},
		Metadata: models.JSON(in.Metadata),
	}
	if campaign != nil {
		referral.CampaignID = &campaign.ID
	}
	if s.cfg.LinkTTLDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, s.cfg.LinkTTLDays)
		referral.ExpiresAt = &expiresAt
	}

	if err := s.db.WithContext(ctx).Create(&referral).Error; err != nil {
		return nil, fmt.Errorf("failed to create referral for user %s: %w", in.ReferrerID, err)
	}

	shareURL := s.shareURL(code, campaign)

	s.events.Track(ctx, analytics.Event{
		ReferralID: &referral.ID,
		CampaignID: referral.CampaignID,
		UserID:     &referral.ReferrerID,
		Type:       models.EventLinkGenerated,
		Properties: map[string]interface{}{
			"code":      code,
			"share_url": shareURL,
		},
	})

	return &CreateReferralResult{
		Referral:  &referral,
		ShareURL:  shareURL,
		ShareCode: code,
	}, nil
}

// AttributionData carries the marketing context of one click
type AttributionData struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	IPAddress   string `json:"ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}

// ClickInput is the input for TrackClick
type ClickInput struct {
	Code              string
	Attribution       AttributionData
	DeviceFingerprint string
}

// ClickResult is the result of TrackClick
type ClickResult struct {
	Success     bool             `json:"success"`
	ReferralID  uuid.UUID        `json:"referral_id"`
	RedirectURL string           `json:"redirect_url"`
	Campaign    *models.Campaign `json:"campaign,omitempty"`
}

// TrackClick records a click-through touchpoint against a pending
// referral. Expiry is enforced lazily here: an overdue referral is flipped
// to expired and the click rejected.
func (s *Service) TrackClick(ctx context.Context, in ClickInput) (*ClickResult, error) {
	now := time.Now()

	var referral models.Referral
	var lapsed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// Serialize concurrent merges on the same referral row. SQLite
		// does not support row locks; its writes are serialized anyway.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		if err := q.Where("code = ? AND status = ?", in.Code, models.ReferralStatusPending).
			First(&referral).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newValidationError(CodeInvalidCode, "referral code not found")
			}
			return fmt.Errorf("failed to look up referral code %s: %w", in.Code, err)
		}

		if referral.Expired(now) {
			// Return nil so the status flip commits; the validation
			// error is raised after the transaction.
			referral.Status = models.ReferralStatusExpired
			if err := tx.Save(&referral).Error; err != nil {
				return fmt.Errorf("failed to expire referral %s: %w", referral.ID, err)
			}
			lapsed = true
			return nil
		}

		touchpoint := models.Touchpoint{
			Timestamp: now,
			Source:    in.Attribution.UTMSource,
			Medium:    in.Attribution.UTMMedium,
			Campaign:  in.Attribution.UTMCampaign,
			IPAddress: in.Attribution.IPAddress,
			UserAgent: in.Attribution.UserAgent,
		}

		referral.Attribution.ClickCount++
		referral.Attribution.LastClickAt = &now
		referral.Attribution.Touchpoints = append(referral.Attribution.Touchpoints, touchpoint)
		if max := s.cfg.MaxTouchpoints; max > 0 && len(referral.Attribution.Touchpoints) > max {
			// FIFO eviction: keep the most recent entries
			referral.Attribution.Touchpoints = referral.Attribution.Touchpoints[len(referral.Attribution.Touchpoints)-max:]
		}

		if err := tx.Save(&referral).Error; err != nil {
			return fmt.Errorf("failed to persist attribution for referral %s: %w", referral.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lapsed {
		return nil, newValidationError(CodeExpiredCode, "referral code has expired")
	}

	s.events.Track(ctx, analytics.Event{
		ReferralID: &referral.ID,
		CampaignID: referral.CampaignID,
		Type:       models.EventLinkClicked,
		Properties: map[string]interface{}{
			"click_count": referral.Attribution.ClickCount,
			"source":      in.Attribution.UTMSource,
		},
		IPAddress:         in.Attribution.IPAddress,
		UserAgent:         in.Attribution.UserAgent,
		DeviceFingerprint: in.DeviceFingerprint,
	})

	var campaign *models.Campaign
	if referral.CampaignID != nil {
		campaign, err = s.loadCampaign(ctx, *referral.CampaignID)
		if err != nil {
			return nil, err
		}
	}

	return &ClickResult{
		Success:     true,
		ReferralID:  referral.ID,
		RedirectURL: s.redirectURL(referral.Code, in.Attribution),
		Campaign:    campaign,
	}, nil
}

// ConvertInput is the input for Convert
type ConvertInput struct {
	Code      string
	RefereeID uuid.UUID
	Metadata  map[string]interface{}
}

// ConvertResult is the result of Convert
type ConvertResult struct {
	Success  bool             `json:"success"`
	Referral *models.Referral `json:"referral"`
	Rewards  []models.Reward  `json:"rewards"`
}

// Convert attributes a signed-up referee to a pending referral, runs the
// fraud check, transitions the referral to converted and issues campaign
// rewards.
func (s *Service) Convert(ctx context.Context, in ConvertInput) (*ConvertResult, error) {
	var referral models.Referral
	err := s.db.WithContext(ctx).
		Where("code = ? AND status = ?", in.Code, models.ReferralStatusPending).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newValidationError(CodeInvalidCode, "referral code not found")
		}
		return nil, fmt.Errorf("failed to look up referral code %s: %w", in.Code, err)
	}

	if referral.ReferrerID == in.RefereeID {
		return nil, newValidationError(CodeSelfReferral, "users cannot convert their own referral")
	}

	// Double-dipping across multiple codes: one converted referral per referee
	var converted int64
	err = s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referee_id = ? AND status = ?", in.RefereeID, models.ReferralStatusConverted).
		Count(&converted).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check prior conversions for user %s: %w", in.RefereeID, err)
	}
	if converted > 0 {
		return nil, newValidationError(CodeAlreadyConverted, "user has already converted a referral")
	}

	var campaign *models.Campaign
	if referral.CampaignID != nil {
		campaign, err = s.loadCampaign(ctx, *referral.CampaignID)
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.FraudDetectionEnabled {
		if err := s.screenConversion(ctx, &referral); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	referral.Status = models.ReferralStatusConverted
	referral.RefereeID = &in.RefereeID
	referral.ConvertedAt = &now
	if len(in.Metadata) > 0 {
		if referral.Metadata == nil {
			referral.Metadata = models.JSON{}
		}
		for k, v := range in.Metadata {
			referral.Metadata[k] = v
		}
	}

	var rewards []models.Reward
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&referral).Error; err != nil {
			return fmt.Errorf("failed to convert referral %s: %w", referral.ID, err)
		}

		var issueErr error
		rewards, issueErr = issueRewards(tx, s.cfg, &referral, campaign)
		return issueErr
	})
	if err != nil {
		return nil, err
	}

	totalValue := decimal.Zero
	for _, reward := range rewards {
		totalValue = totalValue.Add(reward.Amount)
	}

	s.events.Track(ctx, analytics.Event{
		ReferralID: &referral.ID,
		CampaignID: referral.CampaignID,
		UserID:     &in.RefereeID,
		Type:       models.EventConverted,
		Properties: map[string]interface{}{
			"conversion_metadata": in.Metadata,
			"reward_count":        len(rewards),
			"total_reward_value":  totalValue.String(),
		},
	})
	s.events.Capture(ctx, referral.ReferrerID, models.EventReferralSuccessful, map[string]interface{}{
		"referral_id":  referral.ID.String(),
		"reward_count": len(rewards),
	})

	return &ConvertResult{
		Success:  true,
		Referral: &referral,
		Rewards:  rewards,
	}, nil
}

// screenConversion runs the fraud assessment and applies its outcome.
// Critical tier blocks the conversion and marks the referral fraudulent.
// High tier flags for manual review but does not block.
func (s *Service) screenConversion(ctx context.Context, referral *models.Referral) error {
	assessment, err := s.fraud.Assess(referral)
	if err != nil {
		return fmt.Errorf("fraud assessment failed for referral %s: %w", referral.ID, err)
	}

	referral.RiskScore = assessment.Score
	referral.FraudFlags = models.StringList(assessment.Flags)

	if assessment.Tier == TierCritical {
		referral.Status = models.ReferralStatusFraudulent
		if err := s.db.WithContext(ctx).Save(referral).Error; err != nil {
			return fmt.Errorf("failed to mark referral %s fraudulent: %w", referral.ID, err)
		}

		s.events.Track(ctx, analytics.Event{
			ReferralID: &referral.ID,
			CampaignID: referral.CampaignID,
			Type:       models.EventFraudDetected,
			Properties: map[string]interface{}{
				"score": assessment.Score,
				"flags": assessment.Flags,
			},
		})

		return &FraudError{Score: assessment.Score, Flags: assessment.Flags}
	}

	if assessment.Tier == TierHigh && !s.cfg.AutoApproveLowRisk {
		if referral.Metadata == nil {
			referral.Metadata = models.JSON{}
		}
		referral.Metadata["requires_manual_review"] = true
	}

	return nil
}

// ListReferrals returns a user's referrals, most recent first
func (s *Service) ListReferrals(ctx context.Context, userID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := s.db.WithContext(ctx).
		Where("referrer_id = ?", userID).
		Order("created_at desc").
		Find(&referrals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals for user %s: %w", userID, err)
	}
	return referrals, nil
}

// GetStats reads the store-owned per-user aggregate. A user with no
// referral history yields zeroed stats rather than an error.
func (s *Service) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserReferralStats, error) {
	var stats models.UserReferralStats
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserReferralStats{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to read referral stats for user %s: %w", userID, err)
	}
	return &stats, nil
}

// resolveCampaign picks the campaign for a new referral: the explicit one
// when supplied and currently active, else the highest-priority active
// campaign, else none.
func (s *Service) resolveCampaign(ctx context.Context, campaignID *uuid.UUID) (*models.Campaign, error) {
	now := time.Now()

	if campaignID != nil {
		campaign, err := s.loadCampaign(ctx, *campaignID)
		if err != nil {
			return nil, err
		}
		if campaign != nil && campaign.ActiveAt(now) {
			return campaign, nil
		}
	}

	var campaign models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
			models.CampaignStatusActive, now, now).
		Order("priority desc").
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve active campaign: %w", err)
	}
	return &campaign, nil
}

func (s *Service) loadCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load campaign %s: %w", id, err)
	}
	return &campaign, nil
}

// codeExists checks a candidate code against non-expired referrals
func (s *Service) codeExists(ctx context.Context) codeExistsFunc {
	return func(code string) (bool, error) {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Referral{}).
			Where("code = ? AND status <> ?", code, models.ReferralStatusExpired).
			Count(&count).Error
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
}

// shareURL builds the outward-facing share link for a code
func (s *Service) shareURL(code string, campaign *models.Campaign) string {
	u := fmt.Sprintf("%s/r/%s", s.cfg.ShareBaseURL, code)
	if campaign != nil {
		u += "?c=" + url.QueryEscape(campaign.Slug)
	}
	return u
}

// redirectURL builds the signup destination for a tracked click,
// preserving UTM parameters from the attribution data
func (s *Service) redirectURL(code string, attribution AttributionData) string {
	params := url.Values{}
	params.Set("ref", code)
	if attribution.UTMSource != "" {
		params.Set("utm_source", attribution.UTMSource)
	}
	if attribution.UTMMedium != "" {
		params.Set("utm_medium", attribution.UTMMedium)
	}
	if attribution.UTMCampaign != "" {
		params.Set("utm_campaign", attribution.UTMCampaign)
	}
	return fmt.Sprintf("%s/signup?%s", s.cfg.ShareBaseURL, params.Encode())
}
