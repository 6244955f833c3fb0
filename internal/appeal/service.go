package appeal

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/cache"
	"github.com/robotoverlord/backend/internal/loyalty"
	"github.com/robotoverlord/backend/internal/models"
	"github.com/robotoverlord/backend/internal/queue"
	"github.com/robotoverlord/backend/internal/repository"
)

// Base priorities per appeal type. Sanctions carry the most weight because
// they restrict the whole account, not a single piece of content.
var basePriority = map[models.AppealType]int{
	models.AppealTypeSanction:           100,
	models.AppealTypeContentRestoration: 75,
	models.AppealTypeFlag:               50,
	models.AppealTypeTopicRejection:     40,
	models.AppealTypePostRejection:      25,
}

const (
	deniedPenalty      = -5
	frivolousPenalty   = -25
	frivolousThreshold = 3
	banThreshold       = 5
	banDuration        = 7 * 24 * time.Hour
	deniedLookback     = 30 * 24 * time.Hour
)

// PriorityFor computes an appeal's review priority from its type and the
// appellant's loyalty score. The loyalty multiplier caps at 6x so whales
// cannot bury everyone else, and the result truncates to an integer.
func PriorityFor(appealType models.AppealType, loyaltyScore int) (int, error) {
	base, ok := basePriority[appealType]
	if !ok {
		return 0, fmt.Errorf("unknown appeal type: %s", appealType)
	}

	multiplier := float64(loyaltyScore) / 100.0
	if multiplier > 5.0 {
		multiplier = 5.0
	}
	if multiplier < 0 {
		multiplier = 0
	}

	return int(float64(base) * (1 + multiplier)), nil
}

// EligibilitySnapshot gathers everything the eligibility rules read. Keeping
// the reads separate from the evaluation keeps the rules pure and testable.
type EligibilitySnapshot struct {
	User              *models.User
	AppealsToday      int
	AppealsForContent int
	LastDeniedAt      *time.Time
	ContentCreatedAt  time.Time
}

// Evaluate runs the eligibility rules in order against a snapshot. The
// result is structured, not an error; callers branch on Eligible.
func Evaluate(snap EligibilitySnapshot, limits models.AppealRateLimits, now time.Time) models.AppealEligibility {
	maxDaily := limits.MaxDailyFor(snap.User.LoyaltyScore)
	result := models.AppealEligibility{
		MaxAppealsPerDay: maxDaily,
		AppealsUsedToday: snap.AppealsToday,
	}

	if snap.User.AppealBanActive(now) {
		result.Reason = "appeal submission temporarily banned"
		result.CooldownExpiresAt = snap.User.AppealBannedUntil
		return result
	}

	if snap.AppealsForContent >= limits.MaxAppealsPerContent {
		result.Reason = "already appealed"
		return result
	}

	if snap.AppealsToday >= maxDaily {
		result.Reason = fmt.Sprintf("daily limit reached (%d)", maxDaily)
		return result
	}

	if snap.LastDeniedAt != nil {
		cooldownEnds := snap.LastDeniedAt.Add(time.Duration(limits.CooldownHours) * time.Hour)
		if now.Before(cooldownEnds) {
			result.Reason = "cooldown active"
			result.CooldownExpiresAt = &cooldownEnds
			return result
		}
	}

	ageLimit := time.Duration(limits.ContentAgeLimitDays) * 24 * time.Hour
	if now.Sub(snap.ContentCreatedAt) > ageLimit {
		result.Reason = "content too old"
		return result
	}

	result.Eligible = true
	result.AppealsRemaining = maxDaily - snap.AppealsToday
	return result
}

func scopeFor(contentType models.ContentType) models.QueueScope {
	switch contentType {
	case models.ContentTypeTopic:
		return models.ScopeTopicCreation
	case models.ContentTypePrivateMessage:
		return models.ScopeMessageModeration
	default:
		return models.ScopePostModeration
	}
}

type Service struct {
	appealRepo     *repository.AppealRepository
	userRepo       *repository.UserRepository
	versionRepo    *repository.ContentVersionRepository
	loyaltySvc     *loyalty.Service
	scheduler      *queue.Scheduler
	cache          *cache.RedisClient
	limits         models.AppealRateLimits
	cooldown       time.Duration
	sustainedBonus int
}

func NewService(
	appealRepo *repository.AppealRepository,
	userRepo *repository.UserRepository,
	versionRepo *repository.ContentVersionRepository,
	loyaltySvc *loyalty.Service,
	scheduler *queue.Scheduler,
	cache *cache.RedisClient,
	cooldown time.Duration,
	sustainedBonus int,
) *Service {
	return &Service{
		appealRepo:     appealRepo,
		userRepo:       userRepo,
		versionRepo:    versionRepo,
		loyaltySvc:     loyaltySvc,
		scheduler:      scheduler,
		cache:          cache,
		limits:         models.DefaultAppealRateLimits(),
		cooldown:       cooldown,
		sustainedBonus: sustainedBonus,
	}
}

// CheckEligibility reports whether a user may appeal a piece of content
func (s *Service) CheckEligibility(userPK uuid.UUID, contentType models.ContentType, contentPK uuid.UUID) (*models.AppealEligibility, error) {
	snap, err := s.snapshot(userPK, contentType, contentPK)
	if err != nil {
		return nil, err
	}
	result := Evaluate(*snap, s.limits, time.Now().UTC())
	return &result, nil
}

// Submit runs the full appeal submission pipeline: submission cooldown,
// eligibility, creation, and enqueueing the appeal for moderator review.
// An ineligible result comes back with a nil appeal, not an error.
func (s *Service) Submit(userPK uuid.UUID, req *models.AppealCreate) (*models.Appeal, *models.AppealEligibility, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	allowed, remaining, err := s.cache.AllowSubmission(userPK, s.cooldown)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		expires := time.Now().UTC().Add(remaining)
		return nil, &models.AppealEligibility{
			Reason:            "submission rate limited",
			CooldownExpiresAt: &expires,
		}, nil
	}

	snap, err := s.snapshot(userPK, req.ContentType, req.ContentPK)
	if err != nil {
		s.clearCooldown(userPK)
		return nil, nil, err
	}

	eligibility := Evaluate(*snap, s.limits, time.Now().UTC())
	if !eligibility.Eligible {
		// a rejected attempt should not burn the submission window
		s.clearCooldown(userPK)
		return nil, &eligibility, nil
	}

	priority, err := PriorityFor(req.AppealType, snap.User.LoyaltyScore)
	if err != nil {
		s.clearCooldown(userPK)
		return nil, nil, err
	}

	previousCount, err := s.appealRepo.CountPrevious(userPK)
	if err != nil {
		s.clearCooldown(userPK)
		return nil, nil, err
	}

	appeal := &models.Appeal{
		AppellantPK:          userPK,
		ContentType:          req.ContentType,
		ContentPK:            req.ContentPK,
		AppealType:           req.AppealType,
		Reason:               req.Reason,
		Evidence:             req.Evidence,
		PriorityScore:        priority,
		PreviousAppealsCount: previousCount,
	}

	if err := s.appealRepo.Create(appeal); err != nil {
		s.clearCooldown(userPK)
		return nil, nil, err
	}

	// Re-enqueue the content for review. Appeal priority is higher-is-more-
	// urgent while queues serve lower values first, so it enters negated.
	scopeKey, err := s.appealRepo.QueueScopeKey(req.ContentType, req.ContentPK)
	if err == nil {
		_, qerr := s.scheduler.EnqueueWithPriority(scopeFor(req.ContentType), req.ContentPK, scopeKey, -int64(priority))
		if qerr != nil && !errors.Is(qerr, models.ErrInvalidState) {
			log.Printf("Failed to enqueue appeal %s for review: %v", appeal.ID, qerr)
		}
	} else {
		log.Printf("Failed to derive queue scope for appeal %s: %v", appeal.ID, err)
	}

	s.publishIntent(cache.NotificationIntent{
		Kind:   "appeal_submitted",
		UserPK: userPK,
		Payload: map[string]string{
			"appeal_id":   appeal.ID.String(),
			"appeal_type": string(appeal.AppealType),
		},
	})

	return appeal, &eligibility, nil
}

// Assign moves a pending appeal to under_review for a moderator
func (s *Service) Assign(appealPK, reviewerPK uuid.UUID) (*models.Appeal, error) {
	if err := s.appealRepo.AssignReviewer(appealPK, reviewerPK); err != nil {
		return nil, err
	}
	return s.appealRepo.GetByID(appealPK)
}

// Release returns an under_review appeal to pending
func (s *Service) Release(appealPK uuid.UUID) error {
	return s.appealRepo.ReleaseReview(appealPK)
}

// CanDecide checks that an appeal is under review and assigned to the
// deciding reviewer. A decision by any other moderator is rejected instead
// of silently reassigning the appeal.
func CanDecide(a *models.Appeal, reviewerPK uuid.UUID) error {
	if a.Status != models.AppealStatusUnderReview {
		return fmt.Errorf("appeal %s is not under review: %w", a.ID, models.ErrInvalidState)
	}
	if a.ReviewedBy == nil || *a.ReviewedBy != reviewerPK {
		return fmt.Errorf("appeal %s is not assigned to reviewer %s: %w", a.ID, reviewerPK, models.ErrInvalidState)
	}
	return nil
}

// Decide resolves an under_review appeal and applies its ledger and
// restoration consequences.
func (s *Service) Decide(appealPK, reviewerPK uuid.UUID, decision *models.AppealDecision) (*models.Appeal, error) {
	if decision.Decision != models.AppealStatusSustained && decision.Decision != models.AppealStatusDenied {
		return nil, fmt.Errorf("decision must be sustained or denied: %w", models.ErrInvalidState)
	}

	appeal, err := s.appealRepo.GetByID(appealPK)
	if err != nil {
		return nil, err
	}
	if err := CanDecide(appeal, reviewerPK); err != nil {
		return nil, err
	}

	// The repository predicate re-checks status and reviewer so a decision
	// racing a release or another decision loses cleanly.
	if err := s.appealRepo.Resolve(appealPK, reviewerPK, decision.Decision, decision.ReviewNotes); err != nil {
		return nil, err
	}

	switch decision.Decision {
	case models.AppealStatusSustained:
		err = s.applySustained(appeal, reviewerPK, decision)
	case models.AppealStatusDenied:
		err = s.applyDenied(appeal, reviewerPK)
	}
	if err != nil {
		return nil, err
	}

	return s.appealRepo.GetByID(appealPK)
}

func (s *Service) applySustained(appeal *models.Appeal, reviewerPK uuid.UUID, decision *models.AppealDecision) error {
	_, err := s.loyaltySvc.RecordAppealResolution(
		appeal.AppellantPK,
		appeal.ContentType,
		appeal.ContentPK,
		models.OutcomeAppealSustained,
		s.sustainedBonus,
		&reviewerPK,
		"appeal sustained",
		map[string]string{"appeal_id": appeal.ID.String()},
	)
	if err != nil {
		return err
	}

	original, err := s.appealRepo.ContentSnapshot(appeal.ContentType, appeal.ContentPK)
	if err != nil {
		log.Printf("Failed to snapshot content for appeal %s: %v", appeal.ID, err)
	} else {
		version := &repository.ContentVersion{
			ContentType:     appeal.ContentType,
			ContentPK:       appeal.ContentPK,
			AppealPK:        &appeal.ID,
			OriginalContent: original,
			EditedContent:   decision.EditedContent,
			EditReason:      decision.EditReason,
			EditedBy:        &reviewerPK,
		}
		if err := s.versionRepo.Create(version); err != nil {
			log.Printf("Failed to version content for appeal %s: %v", appeal.ID, err)
		}

		if err := s.versionRepo.RestoreContent(appeal.ContentType, appeal.ContentPK, decision.EditedContent); err != nil {
			log.Printf("Failed to restore content for appeal %s: %v", appeal.ID, err)
		} else {
			meta := map[string]string{"restored_by": reviewerPK.String()}
			if err := s.appealRepo.MarkRestorationCompleted(appeal.ID, meta); err != nil {
				log.Printf("Failed to mark restoration for appeal %s: %v", appeal.ID, err)
			}
		}
	}

	s.publishIntent(cache.NotificationIntent{
		Kind:    "appeal_sustained",
		UserPK:  appeal.AppellantPK,
		Payload: map[string]string{"appeal_id": appeal.ID.String()},
	})

	return nil
}

func (s *Service) applyDenied(appeal *models.Appeal, reviewerPK uuid.UUID) error {
	_, err := s.loyaltySvc.RecordAppealResolution(
		appeal.AppellantPK,
		appeal.ContentType,
		appeal.ContentPK,
		models.OutcomeAppealDenied,
		deniedPenalty,
		&reviewerPK,
		"appeal denied",
		map[string]string{"appeal_id": appeal.ID.String()},
	)
	if err != nil {
		return err
	}

	since := time.Now().UTC().Add(-deniedLookback)
	deniedCount, err := s.appealRepo.CountDeniedSince(appeal.AppellantPK, since)
	if err != nil {
		return err
	}

	if deniedCount >= frivolousThreshold {
		_, err = s.loyaltySvc.RecordAppealResolution(
			appeal.AppellantPK,
			appeal.ContentType,
			appeal.ContentPK,
			models.OutcomeAppealDenied,
			frivolousPenalty,
			&reviewerPK,
			"frivolous appeal",
			map[string]string{"appeal_id": appeal.ID.String(), "denied_in_window": fmt.Sprint(deniedCount)},
		)
		if err != nil {
			return err
		}
	}

	if deniedCount >= banThreshold {
		until := time.Now().UTC().Add(banDuration)
		if err := s.userRepo.SetAppealBan(appeal.AppellantPK, until); err != nil {
			return err
		}
	}

	s.publishIntent(cache.NotificationIntent{
		Kind:    "appeal_denied",
		UserPK:  appeal.AppellantPK,
		Payload: map[string]string{"appeal_id": appeal.ID.String()},
	})

	return nil
}

// Withdraw lets the appellant retract an open appeal. The content's queue
// item is removed if still pending; no score penalty applies.
func (s *Service) Withdraw(appealPK, userPK uuid.UUID) error {
	appeal, err := s.appealRepo.GetByID(appealPK)
	if err != nil {
		return err
	}

	if err := s.appealRepo.Withdraw(appealPK, userPK); err != nil {
		return err
	}

	if err := s.scheduler.Remove(scopeFor(appeal.ContentType), appeal.ContentPK); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Printf("Failed to remove queue item for withdrawn appeal %s: %v", appealPK, err)
	}

	return nil
}

// Get returns one appeal
func (s *Service) Get(appealPK uuid.UUID) (*models.Appeal, error) {
	return s.appealRepo.GetByID(appealPK)
}

// ListByUser returns a user's appeals
func (s *Service) ListByUser(userPK uuid.UUID, status models.AppealStatus, page, pageSize int) (*models.AppealPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.appealRepo.ListByUser(userPK, status, page, pageSize)
}

// ListQueue returns the moderator review queue, highest priority first
func (s *Service) ListQueue(status models.AppealStatus, page, pageSize int) (*models.AppealPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.appealRepo.ListQueue(status, page, pageSize)
}

// Stats returns appeal system statistics
func (s *Service) Stats() (*models.AppealStats, error) {
	return s.appealRepo.Stats()
}

// History returns the version trail for a piece of content
func (s *Service) History(contentType models.ContentType, contentPK uuid.UUID) ([]repository.ContentVersion, error) {
	return s.versionRepo.ListForContent(contentType, contentPK)
}

// RestorationVersion returns the snapshot taken when an appeal's content
// was restored
func (s *Service) RestorationVersion(appealPK uuid.UUID) (*repository.ContentVersion, error) {
	return s.versionRepo.GetByAppeal(appealPK)
}

func (s *Service) snapshot(userPK uuid.UUID, contentType models.ContentType, contentPK uuid.UUID) (*EligibilitySnapshot, error) {
	user, err := s.userRepo.GetByID(userPK)
	if err != nil {
		return nil, err
	}

	appealsToday, err := s.appealRepo.CountToday(userPK)
	if err != nil {
		return nil, err
	}

	forContent, err := s.appealRepo.CountForContent(userPK, contentPK)
	if err != nil {
		return nil, err
	}

	lastDenied, err := s.appealRepo.LastDeniedAt(userPK)
	if err != nil {
		return nil, err
	}

	createdAt, err := s.appealRepo.ContentCreatedAt(contentType, contentPK)
	if err != nil {
		return nil, err
	}

	return &EligibilitySnapshot{
		User:              user,
		AppealsToday:      appealsToday,
		AppealsForContent: forContent,
		LastDeniedAt:      lastDenied,
		ContentCreatedAt:  createdAt,
	}, nil
}

func (s *Service) clearCooldown(userPK uuid.UUID) {
	if err := s.cache.ClearSubmissionCooldown(userPK); err != nil {
		log.Printf("Failed to clear submission cooldown for %s: %v", userPK, err)
	}
}

func (s *Service) publishIntent(intent cache.NotificationIntent) {
	if err := s.cache.PublishIntent(intent); err != nil {
		log.Printf("Failed to publish %s intent: %v", intent.Kind, err)
	}
}
