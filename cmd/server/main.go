package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/robotoverlord/backend/config"
	"github.com/robotoverlord/backend/internal/appeal"
	"github.com/robotoverlord/backend/internal/auth"
	"github.com/robotoverlord/backend/internal/cache"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/handlers"
	"github.com/robotoverlord/backend/internal/leaderboard"
	"github.com/robotoverlord/backend/internal/loyalty"
	"github.com/robotoverlord/backend/internal/middleware"
	"github.com/robotoverlord/backend/internal/notify"
	"github.com/robotoverlord/backend/internal/queue"
	"github.com/robotoverlord/backend/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Connect to Redis
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Running without Redis - caching and notifications will be limited")
		redis = nil
	} else {
		defer redis.Close()
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	loyaltyRepo := repository.NewLoyaltyRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	appealRepo := repository.NewAppealRepository(db)
	versionRepo := repository.NewContentVersionRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)

	// Domain services
	loyaltySvc := loyalty.NewService(loyaltyRepo, userRepo, redis)
	scheduler := queue.NewScheduler(queueRepo, userRepo, redis, cfg.Worker.LeaseTimeout)
	appealSvc := appeal.NewService(appealRepo, userRepo, versionRepo, loyaltySvc, scheduler, redis,
		cfg.Appeals.SubmissionCooldown, cfg.Appeals.SustainedBonus)
	leaderboardSvc := leaderboard.NewService(leaderboardRepo)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userRepo, jwtService)
	loyaltyHandler := handlers.NewLoyaltyHandler(loyaltySvc)
	queueHandler := handlers.NewQueueHandler(scheduler)
	appealHandler := handlers.NewAppealHandler(appealSvc)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardSvc)

	// Notification hub (only if Redis is available)
	var notifyHandler *notify.Handler
	if redis != nil {
		hub := notify.NewHub(redis)
		go hub.Run()
		notifyHandler = notify.NewHandler(hub, jwtService, cfg.CORS.AllowedOrigins)
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitRequestsPerSec)
	rateLimiter.Cleanup()

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public routes
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// WebSocket endpoint (only if Redis is available)
	if notifyHandler != nil {
		router.GET("/ws", notifyHandler.Serve)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		// User routes
		api.GET("/me", authHandler.Me)

		// Loyalty routes
		api.GET("/loyalty/thresholds", loyaltyHandler.GetThresholds)
		api.GET("/loyalty/:user_id", loyaltyHandler.GetProfile)
		api.GET("/loyalty/:user_id/breakdown", loyaltyHandler.GetBreakdown)
		api.GET("/loyalty/:user_id/events", loyaltyHandler.GetEvents)
		api.GET("/loyalty/:user_id/history", loyaltyHandler.GetHistory)

		// Appeal routes
		api.POST("/appeals", middleware.RateLimitMiddleware(rateLimiter), appealHandler.Submit)
		api.GET("/appeals/eligibility", appealHandler.CheckEligibility)
		api.GET("/appeals/mine", appealHandler.ListMine)
		api.GET("/appeals/:id", appealHandler.Get)
		api.GET("/appeals/:id/restoration", appealHandler.Restoration)
		api.POST("/appeals/:id/withdraw", appealHandler.Withdraw)
		api.GET("/appeals/content/:content_type/:content_id", appealHandler.ContentHistory)

		// Leaderboard routes
		api.GET("/leaderboard", leaderboardHandler.GetPage)
		api.GET("/leaderboard/rank/:user_id", leaderboardHandler.GetUserRank)
		api.GET("/leaderboard/nearby/:user_id", leaderboardHandler.GetNearby)
		api.GET("/leaderboard/top", leaderboardHandler.GetTop)
		api.GET("/leaderboard/rank-range", leaderboardHandler.GetRankRange)
		api.GET("/leaderboard/percentile", leaderboardHandler.GetPercentileRange)
		api.GET("/leaderboard/search", leaderboardHandler.Search)
		api.GET("/leaderboard/stats", leaderboardHandler.Stats)

		// Queue visibility for content authors
		api.GET("/queues/:scope/status/:content_id", queueHandler.Status)
		api.GET("/queues/:scope/items/:id/position", queueHandler.Position)
	}

	// Moderator routes
	mod := router.Group("/api/v1/mod")
	mod.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(auth.RoleModerator))
	{
		mod.POST("/queues/:scope/enqueue", queueHandler.Enqueue)
		mod.POST("/queues/:scope/claim", queueHandler.Claim)
		mod.POST("/queues/:scope/items/:id/complete", queueHandler.Complete)
		mod.POST("/queues/:scope/items/:id/release", queueHandler.Release)
		mod.GET("/queues/:scope/pending", queueHandler.ListPending)
		mod.GET("/queues/overview", queueHandler.Overview)

		mod.POST("/moderation/outcome", loyaltyHandler.RecordOutcome)

		mod.GET("/appeals/queue", appealHandler.ListQueue)
		mod.POST("/appeals/:id/assign", appealHandler.Assign)
		mod.POST("/appeals/:id/release", appealHandler.Release)
		mod.POST("/appeals/:id/decide", appealHandler.Decide)
		mod.GET("/appeals/stats", appealHandler.Stats)
	}

	// Admin routes
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/queues/recompute", queueHandler.Recompute)
		admin.POST("/loyalty/adjust", loyaltyHandler.AdjustScore)
		admin.POST("/loyalty/:user_id/recalculate", loyaltyHandler.Recalculate)
		admin.POST("/leaderboard/refresh", leaderboardHandler.Refresh)
		admin.GET("/loyalty/stats", loyaltyHandler.GetSystemStats)
		admin.GET("/loyalty/users", loyaltyHandler.ListUsersByScore)
	}

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Starting moderation server on %s (env: %s)", addr, cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
