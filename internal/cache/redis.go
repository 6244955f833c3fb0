package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robotoverlord/backend/internal/models"
)

const (
	profileTTL   = 10 * time.Minute
	breakdownTTL = 5 * time.Minute
	statsTTL     = 30 * time.Minute
	overviewTTL  = 30 * time.Second
)

// RedisClient wraps the Redis connection. A nil *RedisClient is valid and
// degrades every cache operation to a miss or no-op, so the API can run
// without Redis.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}

// Loyalty read models

// SetProfile caches a user's loyalty profile
func (r *RedisClient) SetProfile(profile *models.LoyaltyProfile) error {
	if r == nil {
		return nil
	}
	key := fmt.Sprintf("loyalty:profile:%s", profile.UserPK)
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, profileTTL).Err()
}

// GetProfile returns a cached profile, or nil on miss
func (r *RedisClient) GetProfile(userPK uuid.UUID) (*models.LoyaltyProfile, error) {
	if r == nil {
		return nil, nil
	}
	key := fmt.Sprintf("loyalty:profile:%s", userPK)
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profile models.LoyaltyProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetBreakdown caches a user's score breakdown
func (r *RedisClient) SetBreakdown(breakdown *models.ScoreBreakdown) error {
	if r == nil {
		return nil
	}
	key := fmt.Sprintf("loyalty:breakdown:%s", breakdown.UserPK)
	data, err := json.Marshal(breakdown)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, breakdownTTL).Err()
}

// GetBreakdown returns a cached breakdown, or nil on miss
func (r *RedisClient) GetBreakdown(userPK uuid.UUID) (*models.ScoreBreakdown, error) {
	if r == nil {
		return nil, nil
	}
	key := fmt.Sprintf("loyalty:breakdown:%s", userPK)
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var breakdown models.ScoreBreakdown
	if err := json.Unmarshal([]byte(data), &breakdown); err != nil {
		return nil, err
	}
	return &breakdown, nil
}

// InvalidateUser drops every cached read model for a user. Called after any
// ledger write so stale scores never outlive an event.
func (r *RedisClient) InvalidateUser(userPK uuid.UUID) error {
	if r == nil {
		return nil
	}
	keys := []string{
		fmt.Sprintf("loyalty:profile:%s", userPK),
		fmt.Sprintf("loyalty:breakdown:%s", userPK),
	}
	return r.client.Del(r.ctx, keys...).Err()
}

// SetSystemStats caches the system-wide score statistics
func (r *RedisClient) SetSystemStats(stats *models.SystemStats) error {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, "loyalty:stats", data, statsTTL).Err()
}

// GetSystemStats returns cached system stats, or nil on miss
func (r *RedisClient) GetSystemStats() (*models.SystemStats, error) {
	if r == nil {
		return nil, nil
	}
	data, err := r.client.Get(r.ctx, "loyalty:stats").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats models.SystemStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Queue read models

// SetQueueOverview caches a queue overview
func (r *RedisClient) SetQueueOverview(overview *models.QueueOverview) error {
	if r == nil {
		return nil
	}
	key := fmt.Sprintf("queue:overview:%s", overview.Scope)
	data, err := json.Marshal(overview)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, overviewTTL).Err()
}

// GetQueueOverview returns a cached overview, or nil on miss
func (r *RedisClient) GetQueueOverview(scope models.QueueScope) (*models.QueueOverview, error) {
	if r == nil {
		return nil, nil
	}
	key := fmt.Sprintf("queue:overview:%s", scope)
	data, err := r.client.Get(r.ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var overview models.QueueOverview
	if err := json.Unmarshal([]byte(data), &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Appeal submission cooldown

// AllowSubmission enforces the per-user appeal submission cooldown with a
// single SET NX. The key carries its own expiry, so a crashed submission
// never wedges the user permanently.
func (r *RedisClient) AllowSubmission(userPK uuid.UUID, cooldown time.Duration) (bool, time.Duration, error) {
	if r == nil {
		return true, 0, nil
	}
	key := fmt.Sprintf("appeal:cooldown:%s", userPK)

	ok, err := r.client.SetNX(r.ctx, key, time.Now().Unix(), cooldown).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check submission cooldown: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := r.client.TTL(r.ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to get cooldown ttl: %w", err)
	}
	return false, remaining, nil
}

// ClearSubmissionCooldown removes the cooldown, used when a submission fails
// eligibility so the rejected attempt does not burn the user's window.
func (r *RedisClient) ClearSubmissionCooldown(userPK uuid.UUID) error {
	if r == nil {
		return nil
	}
	key := fmt.Sprintf("appeal:cooldown:%s", userPK)
	return r.client.Del(r.ctx, key).Err()
}

// Notification intents

// NotificationIntent is a fire-and-forget event published for delivery
// infrastructure to fan out.
type NotificationIntent struct {
	Kind      string            `json:"kind"`
	UserPK    uuid.UUID         `json:"user_pk"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// PublishIntent publishes a notification intent on the shared channel.
// Publish failures are the caller's to log and ignore; intents never block
// or fail the operation that produced them.
func (r *RedisClient) PublishIntent(intent NotificationIntent) error {
	if r == nil {
		return nil
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, "notifications:intents", data).Err()
}

// SubscribeIntents subscribes to the notification intent channel
func (r *RedisClient) SubscribeIntents() *redis.PubSub {
	return r.client.Subscribe(r.ctx, "notifications:intents")
}
