package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftfolio/backend/internal/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ErrCampaignNotFound is returned when a campaign lookup misses
var ErrCampaignNotFound = errors.New("campaign not found")

// Service manages referral campaign configuration
type Service struct {
	db *gorm.DB
}

// NewService creates a new campaign service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateCampaignInput is the input for Create
type CreateCampaignInput struct {
	Name           string                  `json:"name" binding:"required"`
	Status         models.CampaignStatus   `json:"status"`
	Priority       int                     `json:"priority"`
	StartDate      time.Time               `json:"start_date"`
	EndDate        *time.Time              `json:"end_date"`
	Eligibility    models.EligibilityRules `json:"eligibility"`
	ReferrerReward models.RewardSpec       `json:"referrer_reward"`
	RefereeReward  models.RewardSpec       `json:"referee_reward"`
}

// Create creates a new campaign. The slug is derived from the name and
// must be unique across campaigns.
func (s *Service) Create(ctx context.Context, in CreateCampaignInput) (*models.Campaign, error) {
	campaign := models.Campaign{
		Slug:           slug.Make(in.Name),
		Name:           in.Name,
		Status:         in.Status,
		Priority:       in.Priority,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Eligibility:    in.Eligibility,
		ReferrerReward: in.ReferrerReward,
		RefereeReward:  in.RefereeReward,
	}
	if campaign.Status == "" {
		campaign.Status = models.CampaignStatusInactive
	}
	if campaign.StartDate.IsZero() {
		campaign.StartDate = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign %s: %w", campaign.Slug, err)
	}
	return &campaign, nil
}

// UpdateCampaignInput is the input for Update. Nil fields are untouched.
type UpdateCampaignInput struct {
	Name           *string                  `json:"name"`
	Status         *models.CampaignStatus   `json:"status"`
	Priority       *int                     `json:"priority"`
	StartDate      *time.Time               `json:"start_date"`
	EndDate        *time.Time               `json:"end_date"`
	Eligibility    *models.EligibilityRules `json:"eligibility"`
	ReferrerReward *models.RewardSpec       `json:"referrer_reward"`
	RefereeReward  *models.RewardSpec       `json:"referee_reward"`
}

// Update applies a partial update to a campaign. Renaming does not change
// the slug; existing share links keep resolving.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateCampaignInput) (*models.Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		campaign.Name = *in.Name
	}
	if in.Status != nil {
		campaign.Status = *in.Status
	}
	if in.Priority != nil {
		campaign.Priority = *in.Priority
	}
	if in.StartDate != nil {
		campaign.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		campaign.EndDate = in.EndDate
	}
	if in.Eligibility != nil {
		campaign.Eligibility = *in.Eligibility
	}
	if in.ReferrerReward != nil {
		campaign.ReferrerReward = *in.ReferrerReward
	}
	if in.RefereeReward != nil {
		campaign.RefereeReward = *in.RefereeReward
	}

	if err := s.db.WithContext(ctx).Save(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to update campaign %s: %w", id, err)
	}
	return campaign, nil
}

// Get fetches a campaign by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to load campaign %s: %w", id, err)
	}
	return &campaign, nil
}

// List returns all campaigns, highest priority first
func (s *Service) List(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Order("priority desc, created_at desc").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// Active returns campaigns currently accepting referrals
func (s *Service) Active(ctx context.Context) ([]models.Campaign, error) {
	now := time.Now()
	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
			models.CampaignStatusActive, now, now).
		Order("priority desc").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	return campaigns, nil
}
