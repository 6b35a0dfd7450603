package handlers

import (
	"errors"
	"net/http"

	"github.com/craftfolio/backend/internal/services/campaign"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CampaignHandler handles campaign administration requests
type CampaignHandler struct {
	service *campaign.Service
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(service *campaign.Service) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ListCampaigns returns all campaigns for administration
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// ListActiveCampaigns returns campaigns currently accepting referrals
func (h *CampaignHandler) ListActiveCampaigns(c *gin.Context) {
	campaigns, err := h.service.Active(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// GetCampaign returns one campaign by ID
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondCampaignError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateCampaign creates a new campaign
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// UpdateCampaign applies a partial update to a campaign
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return
	}

	var req campaign.UpdateCampaignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondCampaignError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondCampaignError(c *gin.Context, err error) {
	if errors.Is(err, campaign.ErrCampaignNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
