package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robotoverlord/backend/config"
	"github.com/robotoverlord/backend/internal/cache"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/leaderboard"
	"github.com/robotoverlord/backend/internal/queue"
	"github.com/robotoverlord/backend/internal/repository"
)

// The worker keeps the moderation pipeline healthy while the API serves
// traffic: it requeues items whose lease expired, keeps display positions
// fresh, and rebuilds the leaderboard projection on a fixed cadence.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	queueRepo := repository.NewQueueRepository(db)
	userRepo := repository.NewUserRepository(db)
	leaderboardRepo := repository.NewLeaderboardRepository(db)

	scheduler := queue.NewScheduler(queueRepo, userRepo, redis, cfg.Worker.LeaseTimeout)
	leaderboardSvc := leaderboard.NewService(leaderboardRepo)

	log.Printf("Starting worker %s (poll=%s lease=%s)", cfg.Worker.ID, cfg.Worker.PollInterval, cfg.Worker.LeaseTimeout)

	sweepTicker := time.NewTicker(cfg.Worker.PollInterval)
	defer sweepTicker.Stop()
	positionTicker := time.NewTicker(cfg.Worker.PositionRefreshInterval)
	defer positionTicker.Stop()
	refreshTicker := time.NewTicker(cfg.Worker.LeaderboardRefresh)
	defer refreshTicker.Stop()

	// Seed the projection so a fresh deployment serves rankings immediately
	refreshLeaderboard(leaderboardSvc)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			scheduler.SweepExpiredLeases()
		case <-positionTicker.C:
			scheduler.RecomputePositions()
		case <-refreshTicker.C:
			refreshLeaderboard(leaderboardSvc)
		case sig := <-stop:
			log.Printf("Worker %s shutting down (%v)", cfg.Worker.ID, sig)
			return
		}
	}
}

func refreshLeaderboard(svc *leaderboard.Service) {
	rows, err := svc.Refresh()
	if err != nil {
		log.Printf("Failed to refresh leaderboard: %v", err)
		return
	}
	log.Printf("Leaderboard refreshed (%d rankings)", rows)
}
