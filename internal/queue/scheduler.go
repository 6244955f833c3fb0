package queue

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/cache"
	"github.com/robotoverlord/backend/internal/models"
	"github.com/robotoverlord/backend/internal/repository"
)

var allScopes = []models.QueueScope{
	models.ScopeTopicCreation,
	models.ScopePostModeration,
	models.ScopeMessageModeration,
}

type Scheduler struct {
	queueRepo    *repository.QueueRepository
	userRepo     *repository.UserRepository
	cache        *cache.RedisClient
	leaseTimeout time.Duration
}

func NewScheduler(queueRepo *repository.QueueRepository, userRepo *repository.UserRepository, cache *cache.RedisClient, leaseTimeout time.Duration) *Scheduler {
	return &Scheduler{
		queueRepo:    queueRepo,
		userRepo:     userRepo,
		cache:        cache,
		leaseTimeout: leaseTimeout,
	}
}

// ComputePriority maps an author's loyalty score to a queue priority.
// Queues serve the lowest priority value first, so higher loyalty means a
// more negative value and an earlier slot.
func ComputePriority(loyaltyScore int) int64 {
	return -int64(loyaltyScore)
}

// EnqueueTopic admits a topic into the global topic creation queue
func (s *Scheduler) EnqueueTopic(topicPK, authorPK uuid.UUID) (*models.QueueItem, error) {
	return s.enqueue(models.ScopeTopicCreation, topicPK, "", authorPK, nil)
}

// EnqueuePost admits a post into its topic's moderation queue
func (s *Scheduler) EnqueuePost(postPK, topicPK, authorPK uuid.UUID) (*models.QueueItem, error) {
	return s.enqueue(models.ScopePostModeration, postPK, topicPK.String(), authorPK, nil)
}

// EnqueueMessage admits a private message into its conversation's queue
func (s *Scheduler) EnqueueMessage(messagePK, senderPK, recipientPK uuid.UUID) (*models.QueueItem, error) {
	key := models.ConversationKey(senderPK, recipientPK)
	return s.enqueue(models.ScopeMessageModeration, messagePK, key, senderPK, nil)
}

// EnqueueWithPriority admits content with an explicit priority, bypassing
// the loyalty-derived default. Used for appeal-driven re-review.
func (s *Scheduler) EnqueueWithPriority(scope models.QueueScope, contentPK uuid.UUID, scopeKey string, priority int64) (*models.QueueItem, error) {
	return s.queueRepo.Enqueue(scope, contentPK, scopeKey, priority)
}

func (s *Scheduler) enqueue(scope models.QueueScope, contentPK uuid.UUID, scopeKey string, authorPK uuid.UUID, priority *int64) (*models.QueueItem, error) {
	var p int64
	if priority != nil {
		p = *priority
	} else {
		user, err := s.userRepo.GetByID(authorPK)
		if err != nil {
			return nil, err
		}
		p = ComputePriority(user.LoyaltyScore)
	}

	item, err := s.queueRepo.Enqueue(scope, contentPK, scopeKey, p)
	if err != nil {
		return nil, err
	}

	intent := cache.NotificationIntent{
		Kind:   "content_queued",
		UserPK: authorPK,
		Payload: map[string]string{
			"scope":      string(scope),
			"content_pk": contentPK.String(),
		},
	}
	if err := s.cache.PublishIntent(intent); err != nil {
		log.Printf("Failed to publish enqueue intent: %v", err)
	}

	return item, nil
}

// ClaimNext atomically hands the most urgent pending item to a worker. A
// nil item means the queue is empty.
func (s *Scheduler) ClaimNext(scope models.QueueScope, scopeKey, workerID string) (*models.QueueItem, error) {
	return s.queueRepo.ClaimNext(scope, scopeKey, workerID)
}

// Complete finishes a claimed item
func (s *Scheduler) Complete(scope models.QueueScope, id uuid.UUID, workerID string) error {
	return s.queueRepo.Complete(scope, id, workerID)
}

// Release gives a claimed item back without completing it
func (s *Scheduler) Release(scope models.QueueScope, id uuid.UUID) error {
	return s.queueRepo.Release(scope, id)
}

// Position returns the 1-based position of a pending item in its partition
func (s *Scheduler) Position(scope models.QueueScope, id uuid.UUID) (int, error) {
	return s.queueRepo.PositionOf(scope, id)
}

// Status returns the live queue entry for a piece of content
func (s *Scheduler) Status(scope models.QueueScope, contentPK uuid.UUID) (*models.QueueItem, error) {
	return s.queueRepo.GetByContent(scope, contentPK)
}

// Remove withdraws a pending item, e.g. when content is deleted
func (s *Scheduler) Remove(scope models.QueueScope, contentPK uuid.UUID) error {
	return s.queueRepo.Remove(scope, contentPK)
}

// ListPending returns the head of a queue in serving order
func (s *Scheduler) ListPending(scope models.QueueScope, scopeKey string, limit int) ([]models.QueueItem, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.queueRepo.ListPending(scope, scopeKey, limit)
}

// Overview returns a cached per-queue summary
func (s *Scheduler) Overview(scope models.QueueScope) (*models.QueueOverview, error) {
	if cached, err := s.cache.GetQueueOverview(scope); err == nil && cached != nil {
		return cached, nil
	}

	overview, err := s.queueRepo.Overview(scope)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetQueueOverview(overview); err != nil {
		log.Printf("Failed to cache queue overview: %v", err)
	}

	return overview, nil
}

// OverviewAll summarizes every queue scope
func (s *Scheduler) OverviewAll() ([]models.QueueOverview, error) {
	overviews := make([]models.QueueOverview, 0, len(allScopes))
	for _, scope := range allScopes {
		o, err := s.Overview(scope)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, *o)
	}
	return overviews, nil
}

// RecomputePositions refreshes stored display positions for every scope
func (s *Scheduler) RecomputePositions() {
	for _, scope := range allScopes {
		updated, err := s.queueRepo.RecomputePositions(scope)
		if err != nil {
			log.Printf("Failed to recompute %s positions: %v", scope, err)
			continue
		}
		if updated > 0 {
			log.Printf("Recomputed %d %s queue positions", updated, scope)
		}
	}
}

// SweepExpiredLeases requeues items whose worker claim has outlived the
// lease timeout. Run periodically so crashed workers never strand items.
func (s *Scheduler) SweepExpiredLeases() int {
	total := 0
	for _, scope := range allScopes {
		requeued, err := s.queueRepo.RequeueExpired(scope, s.leaseTimeout)
		if err != nil {
			log.Printf("Failed to sweep %s leases: %v", scope, err)
			continue
		}
		if requeued > 0 {
			log.Printf("Requeued %d expired %s items", requeued, scope)
		}
		total += requeued
	}
	return total
}
