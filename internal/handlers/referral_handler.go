package handlers

import (
	"errors"
	"net/http"

	"github.com/craftfolio/backend/internal/services/referral"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReferralHandler handles referral requests
type ReferralHandler struct {
	service *referral.Service
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(service *referral.Service) *ReferralHandler {
	return &ReferralHandler{service: service}
}

// CreateReferralRequest is the request body for creating a referral
type CreateReferralRequest struct {
	CampaignID *uuid.UUID             `json:"campaign_id"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CreateReferral generates a new referral link for the authenticated user
func (h *ReferralHandler) CreateReferral(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	// The request body is optional; a bare POST creates a referral
	// against the default campaign.
	var req CreateReferralRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	result, err := h.service.CreateReferral(c.Request.Context(), referral.CreateReferralInput{
		ReferrerID: userID,
		CampaignID: req.CampaignID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		respondReferralError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListReferrals returns the authenticated user's referrals
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	referrals, err := h.service.ListReferrals(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": referrals})
}

// GetStats returns the authenticated user's referral aggregates
func (h *ReferralHandler) GetStats(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	stats, err := h.service.GetStats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load referral stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TrackClickRequest is the request body for recording a click-through
type TrackClickRequest struct {
	Code              string `json:"code" binding:"required"`
	UTMSource         string `json:"utm_source"`
	UTMMedium         string `json:"utm_medium"`
	UTMCampaign       string `json:"utm_campaign"`
	IPAddress         string `json:"ip"`
	UserAgent         string `json:"user_agent"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// TrackClick records a click-through on a referral link. IP and user
// agent fall back to the request's own when the caller omits them.
func (h *ReferralHandler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.GetHeader("User-Agent")
	}

	result, err := h.service.TrackClick(c.Request.Context(), referral.ClickInput{
		Code: req.Code,
		Attribution: referral.AttributionData{
			UTMSource:   req.UTMSource,
			UTMMedium:   req.UTMMedium,
			UTMCampaign: req.UTMCampaign,
			IPAddress:   req.IPAddress,
			UserAgent:   req.UserAgent,
		},
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		respondReferralError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ConvertRequest is the request body for converting a referral
type ConvertRequest struct {
	Code     string                 `json:"code" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Convert attributes the authenticated user as referee of a referral code
func (h *ReferralHandler) Convert(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.service.Convert(c.Request.Context(), referral.ConvertInput{
		Code:      req.Code,
		RefereeID: userID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		respondReferralError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondReferralError maps service errors onto HTTP status codes
func respondReferralError(c *gin.Context, err error) {
	var fraudErr *referral.FraudError
	if errors.As(err, &fraudErr) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Referral rejected",
			"code":  "FRAUD_DETECTED",
			"score": fraudErr.Score,
			"flags": fraudErr.Flags,
		})
		return
	}

	var valErr *referral.ValidationError
	if errors.As(err, &valErr) {
		status := http.StatusBadRequest
		switch valErr.Code {
		case referral.CodeInvalidCode:
			status = http.StatusNotFound
		case referral.CodeExpiredCode:
			status = http.StatusGone
		case referral.CodeAlreadyConverted:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": valErr.Message, "code": string(valErr.Code)})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
