package routes

import (
	"net/http"

	"github.com/craftfolio/backend/internal/handlers"
	"github.com/craftfolio/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	router *gin.Engine,
	referralHandler *handlers.ReferralHandler,
	campaignHandler *handlers.CampaignHandler,
	rateLimiter *middleware.RateLimiter,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public endpoints, rate limited by client IP. Click tracking has to
	// work for visitors with no account.
	public := router.Group("/public")
	public.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		public.POST("/referrals/click", referralHandler.TrackClick)
		public.GET("/campaigns/active", campaignHandler.ListActiveCampaigns)
	}

	// Authenticated endpoints
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		api.POST("/referrals", referralHandler.CreateReferral)
		api.GET("/referrals", referralHandler.ListReferrals)
		api.GET("/referrals/stats", referralHandler.GetStats)
		api.POST("/referrals/convert", referralHandler.Convert)

		// Campaign administration
		admin := api.Group("/admin")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.GET("/campaigns", campaignHandler.ListCampaigns)
			admin.POST("/campaigns", campaignHandler.CreateCampaign)
			admin.GET("/campaigns/:id", campaignHandler.GetCampaign)
			admin.PUT("/campaigns/:id", campaignHandler.UpdateCampaign)
		}
	}
}
