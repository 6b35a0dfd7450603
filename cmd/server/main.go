package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftfolio/backend/internal/config"
	"github.com/craftfolio/backend/internal/database"
	"github.com/craftfolio/backend/internal/handlers"
	"github.com/craftfolio/backend/internal/jobs"
	"github.com/craftfolio/backend/internal/middleware"
	"github.com/craftfolio/backend/internal/queue"
	"github.com/craftfolio/backend/internal/routes"
	"github.com/craftfolio/backend/internal/services/analytics"
	"github.com/craftfolio/backend/internal/services/campaign"
	"github.com/craftfolio/backend/internal/services/referral"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)

	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Create Redis-backed queue instance
	redisQueue := queue.NewRedisQueue(redisClient)

	// Analytics forwarding only runs with a configured sink. Without one
	// the tracker gets no enqueuer, so captures are not queued at all
	// rather than piling up without a consumer.
	jobProcessor := queue.NewJobProcessor(redisQueue, 5)
	var enqueuer queue.Enqueuer
	if cfg.Analytics.APIKey != "" {
		sink := analytics.NewCaptureClient(cfg.Analytics)
		jobs.RegisterAnalyticsJobHandlers(jobProcessor, sink)
		enqueuer = redisQueue
	}
	go jobProcessor.Start()

	// Initialize services
	tracker := analytics.NewTracker(db, enqueuer)
	referralService := referral.NewService(db, cfg.Referral, tracker)
	campaignService := campaign.NewService(db)

	// Schedule recurring jobs
	scheduler := jobs.StartScheduledJobs(db)

	// Initialize handlers
	referralHandler := handlers.NewReferralHandler(referralService)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	rateLimiter := middleware.NewRateLimiter(5, 10)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup routes
	routes.SetupRoutes(router, referralHandler, campaignHandler, rateLimiter)

	// Start server
	srv := startServer(router, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	jobProcessor.Stop()
	rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", port)
	return srv
}
