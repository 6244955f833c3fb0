package loyalty

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/cache"
	"github.com/robotoverlord/backend/internal/models"
	"github.com/robotoverlord/backend/internal/repository"
)

// Content weights. A topic carries more weight than a post or message
// because approved topics are rarer and higher effort.
const (
	weightPost           = 1
	weightTopic          = 5
	weightPrivateMessage = 1
)

// Privilege thresholds. TopicCreation is a fallback: the live value tracks
// the top-10% score from system stats.
var DefaultThresholds = models.ScoreThresholds{
	TopicCreation:      100,
	PriorityModeration: 500,
	ExtendedAppeals:    1000,
}

type Service struct {
	loyaltyRepo *repository.LoyaltyRepository
	userRepo    *repository.UserRepository
	cache       *cache.RedisClient
	thresholds  models.ScoreThresholds
}

func NewService(loyaltyRepo *repository.LoyaltyRepository, userRepo *repository.UserRepository, cache *cache.RedisClient) *Service {
	return &Service{
		loyaltyRepo: loyaltyRepo,
		userRepo:    userRepo,
		cache:       cache,
		thresholds:  DefaultThresholds,
	}
}

// DeltaFor maps a moderation outcome to its score delta. Approval earns the
// content weight, rejection and removal cost it.
func DeltaFor(contentType models.ContentType, outcome models.EventOutcome) (int, error) {
	var weight int
	switch contentType {
	case models.ContentTypePost:
		weight = weightPost
	case models.ContentTypeTopic:
		weight = weightTopic
	case models.ContentTypePrivateMessage:
		weight = weightPrivateMessage
	default:
		return 0, fmt.Errorf("unknown content type: %s", contentType)
	}

	switch outcome {
	case models.OutcomeApproved:
		return weight, nil
	case models.OutcomeRejected, models.OutcomeRemoved:
		return -weight, nil
	default:
		return 0, fmt.Errorf("outcome %s has no moderation delta", outcome)
	}
}

// EventTypeFor maps a content type to its moderation event type
func EventTypeFor(contentType models.ContentType) models.EventType {
	switch contentType {
	case models.ContentTypeTopic:
		return models.EventTypeTopicModeration
	case models.ContentTypePrivateMessage:
		return models.EventTypeMessageModeration
	default:
		return models.EventTypePostModeration
	}
}

// RecordOutcome appends a moderation outcome to the user's ledger and applies
// privilege side effects once thresholds are crossed.
func (s *Service) RecordOutcome(req *models.RecordOutcomeRequest) (*models.ModerationEvent, error) {
	delta, err := DeltaFor(req.ContentType, req.Outcome)
	if err != nil {
		return nil, err
	}

	event := &models.ModerationEvent{
		UserPK:      req.UserPK,
		EventType:   EventTypeFor(req.ContentType),
		ContentType: req.ContentType,
		ContentPK:   req.ContentPK,
		Outcome:     req.Outcome,
		ScoreDelta:  delta,
		ModeratorPK: req.ModeratorPK,
		Reason:      req.Reason,
	}

	if err := s.loyaltyRepo.RecordEvent(event); err != nil {
		return nil, err
	}

	if req.ContentType == models.ContentTypeTopic && req.Outcome == models.OutcomeApproved {
		if err := s.userRepo.IncrementTopicsCreated(req.UserPK); err != nil {
			log.Printf("Failed to bump topic count for %s: %v", req.UserPK, err)
		}
	}

	s.applyThresholds(event)
	s.invalidate(event.UserPK)

	return event, nil
}

// RecordAppealResolution appends an appeal outcome to the ledger. The caller
// supplies the delta since appeal penalties are policy owned by the appeal
// layer.
func (s *Service) RecordAppealResolution(userPK uuid.UUID, contentType models.ContentType, contentPK uuid.UUID, outcome models.EventOutcome, delta int, moderatorPK *uuid.UUID, reason string, metadata map[string]string) (*models.ModerationEvent, error) {
	event := &models.ModerationEvent{
		UserPK:      userPK,
		EventType:   models.EventTypeAppealResolution,
		ContentType: contentType,
		ContentPK:   contentPK,
		Outcome:     outcome,
		ScoreDelta:  delta,
		ModeratorPK: moderatorPK,
		Reason:      &reason,
		Metadata:    metadata,
	}

	if err := s.loyaltyRepo.RecordEvent(event); err != nil {
		return nil, err
	}

	s.applyThresholds(event)
	s.invalidate(userPK)

	return event, nil
}

// AdjustScore applies an admin-supplied manual adjustment
func (s *Service) AdjustScore(req *models.AdjustScoreRequest, adminPK uuid.UUID) (*models.ModerationEvent, error) {
	if req.Adjustment == 0 {
		return nil, fmt.Errorf("adjustment must be non-zero")
	}

	reason := req.Reason
	event := &models.ModerationEvent{
		UserPK:      req.UserPK,
		EventType:   models.EventTypeManualAdjustment,
		ContentType: models.ContentTypePost,
		ContentPK:   uuid.New(),
		Outcome:     models.OutcomeApproved,
		ScoreDelta:  req.Adjustment,
		ModeratorPK: &adminPK,
		Reason:      &reason,
	}
	if req.Adjustment < 0 {
		event.Outcome = models.OutcomeRejected
	}
	if req.AdminNotes != "" {
		event.Metadata = map[string]string{"admin_notes": req.AdminNotes}
	}

	if err := s.loyaltyRepo.RecordEvent(event); err != nil {
		return nil, err
	}

	s.applyThresholds(event)
	s.invalidate(req.UserPK)

	return event, nil
}

// Recalculate replays the ledger and returns the corrected score
func (s *Service) Recalculate(userPK uuid.UUID) (int, error) {
	score, err := s.loyaltyRepo.Recalculate(userPK)
	if err != nil {
		return 0, err
	}
	s.invalidate(userPK)
	return score, nil
}

// GetProfile assembles the full reputation view for a user, cache first
func (s *Service) GetProfile(userPK uuid.UUID) (*models.LoyaltyProfile, error) {
	if cached, err := s.cache.GetProfile(userPK); err == nil && cached != nil {
		return cached, nil
	}

	user, err := s.userRepo.GetByID(userPK)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.loyaltyRepo.GetBreakdown(userPK)
	if err != nil {
		return nil, err
	}

	recent, err := s.loyaltyRepo.GetRecentEvents(userPK, 10)
	if err != nil {
		return nil, err
	}

	history, err := s.loyaltyRepo.GetHistory(userPK, 30)
	if err != nil {
		return nil, err
	}

	profile := &models.LoyaltyProfile{
		UserPK:          userPK,
		Username:        user.Username,
		CurrentScore:    user.LoyaltyScore,
		Breakdown:       *breakdown,
		RecentEvents:    recent,
		ScoreHistory:    history,
		CanCreateTopics: user.TopicCreationEnabled,
	}
	if next := s.nextThreshold(user.LoyaltyScore); next > 0 {
		profile.NextThreshold = &next
	}

	if err := s.cache.SetProfile(profile); err != nil {
		log.Printf("Failed to cache loyalty profile: %v", err)
	}

	return profile, nil
}

// GetBreakdown returns the cached score breakdown for a user
func (s *Service) GetBreakdown(userPK uuid.UUID) (*models.ScoreBreakdown, error) {
	if cached, err := s.cache.GetBreakdown(userPK); err == nil && cached != nil {
		return cached, nil
	}

	breakdown, err := s.loyaltyRepo.GetBreakdown(userPK)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetBreakdown(breakdown); err != nil {
		log.Printf("Failed to cache score breakdown: %v", err)
	}

	return breakdown, nil
}

// GetEvents returns a filtered page of a user's ledger
func (s *Service) GetEvents(userPK uuid.UUID, filters models.EventFilters, page, pageSize int) (*models.EventPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.loyaltyRepo.GetUserEvents(userPK, filters, page, pageSize)
}

// GetHistory returns recent score snapshots
func (s *Service) GetHistory(userPK uuid.UUID, limit int) ([]models.LoyaltyScoreHistory, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return s.loyaltyRepo.GetHistory(userPK, limit)
}

// GetSystemStats returns cached system-wide statistics
func (s *Service) GetSystemStats() (*models.SystemStats, error) {
	if cached, err := s.cache.GetSystemStats(); err == nil && cached != nil {
		return cached, nil
	}

	stats, err := s.loyaltyRepo.GetSystemStats()
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSystemStats(stats); err != nil {
		log.Printf("Failed to cache system stats: %v", err)
	}

	return stats, nil
}

// ListUsersByScore returns users whose score falls inside [min, max]
func (s *Service) ListUsersByScore(min, max, limit, offset int) ([]models.User, error) {
	if max < min {
		return nil, models.ErrInvalidState
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.GetByScoreRange(min, max, limit, offset)
}

// thresholdsFrom overlays the percentile-derived topic creation unlock onto
// the fixed moderation and appeals tiers.
func thresholdsFrom(base models.ScoreThresholds, stats *models.SystemStats) models.ScoreThresholds {
	if stats != nil && stats.Top10PercentThreshold > 0 {
		base.TopicCreation = stats.Top10PercentThreshold
	}
	return base
}

// Thresholds returns the privilege thresholds in force. Topic creation
// unlocks at the top-10% score of the current population; the moderation
// and appeals tiers are fixed.
func (s *Service) Thresholds() models.ScoreThresholds {
	stats, err := s.GetSystemStats()
	if err != nil {
		return s.thresholds
	}
	return thresholdsFrom(s.thresholds, stats)
}

func (s *Service) nextThreshold(score int) int {
	t := s.Thresholds()
	for _, v := range []int{t.TopicCreation, t.PriorityModeration, t.ExtendedAppeals} {
		if score < v {
			return v
		}
	}
	return 0
}

// applyThresholds flips privileges when a score crosses the topic creation
// threshold in either direction.
func (s *Service) applyThresholds(event *models.ModerationEvent) {
	topicThreshold := s.Thresholds().TopicCreation
	crossedUp := event.PreviousScore < topicThreshold && event.NewScore >= topicThreshold
	crossedDown := event.PreviousScore >= topicThreshold && event.NewScore < topicThreshold

	if crossedUp {
		if err := s.userRepo.SetTopicCreationEnabled(event.UserPK, true); err != nil {
			log.Printf("Failed to enable topic creation for %s: %v", event.UserPK, err)
		}
	}
	if crossedDown {
		if err := s.userRepo.SetTopicCreationEnabled(event.UserPK, false); err != nil {
			log.Printf("Failed to disable topic creation for %s: %v", event.UserPK, err)
		}
	}
}

func (s *Service) invalidate(userPK uuid.UUID) {
	if err := s.cache.InvalidateUser(userPK); err != nil {
		log.Printf("Failed to invalidate cache for %s: %v", userPK, err)
	}
}
