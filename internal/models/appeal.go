package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppealType classifies what outcome is being contested
type AppealType string

const (
	AppealTypeSanction           AppealType = "sanction_appeal"
	AppealTypeContentRestoration AppealType = "content_restoration"
	AppealTypeFlag               AppealType = "flag_appeal"
	AppealTypeTopicRejection     AppealType = "topic_rejection"
	AppealTypePostRejection      AppealType = "post_rejection"
)

// AppealStatus is the lifecycle state of an appeal. Withdrawal is modeled
// as a transition to denied.
type AppealStatus string

const (
	AppealStatusPending     AppealStatus = "pending"
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusSustained   AppealStatus = "sustained"
	AppealStatusDenied      AppealStatus = "denied"
)

// Terminal reports whether no further transitions are allowed
func (s AppealStatus) Terminal() bool {
	return s == AppealStatusSustained || s == AppealStatusDenied
}

type Appeal struct {
	ID                     uuid.UUID         `json:"id" db:"id"`
	AppellantPK            uuid.UUID         `json:"appellant_pk" db:"appellant_pk"`
	ContentType            ContentType       `json:"content_type" db:"content_type"`
	ContentPK              uuid.UUID         `json:"content_pk" db:"content_pk"`
	AppealType             AppealType        `json:"appeal_type" db:"appeal_type"`
	Status                 AppealStatus      `json:"status" db:"status"`
	Reason                 string            `json:"reason" db:"reason"`
	Evidence               *string           `json:"evidence,omitempty" db:"evidence"`
	PriorityScore          int               `json:"priority_score" db:"priority_score"`
	PreviousAppealsCount   int               `json:"previous_appeals_count" db:"previous_appeals_count"`
	SubmittedAt            time.Time         `json:"submitted_at" db:"submitted_at"`
	ReviewedBy             *uuid.UUID        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt             *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes            *string           `json:"review_notes,omitempty" db:"review_notes"`
	RestorationCompleted   bool              `json:"restoration_completed" db:"restoration_completed"`
	RestorationCompletedAt *time.Time        `json:"restoration_completed_at,omitempty" db:"restoration_completed_at"`
	RestorationMetadata    map[string]string `json:"restoration_metadata,omitempty" db:"restoration_metadata"`
	UpdatedAt              time.Time         `json:"updated_at" db:"updated_at"`
}

// AppealCreate is the submission payload
type AppealCreate struct {
	ContentType ContentType `json:"content_type" binding:"required"`
	ContentPK   uuid.UUID   `json:"content_pk" binding:"required"`
	AppealType  AppealType  `json:"appeal_type" binding:"required"`
	Reason      string      `json:"reason" binding:"required"`
	Evidence    *string     `json:"evidence,omitempty"`
}

// Validate checks submission constraints beyond binding tags
func (a *AppealCreate) Validate() error {
	if len(a.Reason) < 20 || len(a.Reason) > 1000 {
		return fmt.Errorf("reason must be between 20 and 1000 characters")
	}
	switch a.AppealType {
	case AppealTypeSanction, AppealTypeContentRestoration, AppealTypeFlag,
		AppealTypeTopicRejection, AppealTypePostRejection:
	default:
		return fmt.Errorf("unknown appeal type: %s", a.AppealType)
	}
	switch a.ContentType {
	case ContentTypeTopic, ContentTypePost, ContentTypePrivateMessage:
	default:
		return fmt.Errorf("unknown content type: %s", a.ContentType)
	}
	return nil
}

// AppealDecision carries the reviewer's verdict
type AppealDecision struct {
	Decision      AppealStatus      `json:"decision" binding:"required"`
	ReviewNotes   *string           `json:"review_notes,omitempty"`
	EditedContent map[string]string `json:"edited_content,omitempty"`
	EditReason    *string           `json:"edit_reason,omitempty"`
}

// AppealEligibility is a structured result, not an error. Callers branch on
// Eligible and Reason.
type AppealEligibility struct {
	Eligible          bool       `json:"eligible"`
	Reason            string     `json:"reason,omitempty"`
	CooldownExpiresAt *time.Time `json:"cooldown_expires_at,omitempty"`
	AppealsRemaining  int        `json:"appeals_remaining"`
	MaxAppealsPerDay  int        `json:"max_appeals_per_day"`
	AppealsUsedToday  int        `json:"appeals_used_today"`
}

// AppealRateLimits are the durable eligibility rules. The separate 5-minute
// submission cooldown lives in the cache layer.
type AppealRateLimits struct {
	MaxAppealsPerDay     int
	MaxAppealsPerContent int
	CooldownHours        int
	ContentAgeLimitDays  int
	// LoyaltyBonusAppeals grants extra daily appeals at score thresholds
	LoyaltyBonusAppeals map[int]int
}

// DefaultAppealRateLimits returns the standard rule set
func DefaultAppealRateLimits() AppealRateLimits {
	return AppealRateLimits{
		MaxAppealsPerDay:     3,
		MaxAppealsPerContent: 1,
		CooldownHours:        24,
		ContentAgeLimitDays:  7,
		LoyaltyBonusAppeals: map[int]int{
			100:  1,
			500:  2,
			1000: 3,
		},
	}
}

// MaxDailyFor returns the daily appeal quota for a loyalty score, applying
// every bonus tier the score reaches.
func (r AppealRateLimits) MaxDailyFor(loyaltyScore int) int {
	max := r.MaxAppealsPerDay
	for threshold, bonus := range r.LoyaltyBonusAppeals {
		if loyaltyScore >= threshold {
			max += bonus
		}
	}
	return max
}

// AppealStats summarizes appeals for moderator tooling
type AppealStats struct {
	TotalPending       int              `json:"total_pending"`
	TotalUnderReview   int              `json:"total_under_review"`
	TotalSustained     int              `json:"total_sustained"`
	TotalDenied        int              `json:"total_denied"`
	TotalCount         int              `json:"total_count"`
	TotalToday         int              `json:"total_today"`
	AverageReviewHours *float64         `json:"average_review_time_hours,omitempty"`
	AppealsByType      map[string]int   `json:"appeals_by_type"`
	TopAppellants      []AppellantCount `json:"top_appellants"`
	ReviewerStats      []ReviewerStats  `json:"reviewer_stats"`
}

type AppellantCount struct {
	Username    string `json:"username"`
	AppealCount int    `json:"appeal_count"`
}

type ReviewerStats struct {
	Username         string `json:"username"`
	ReviewsCompleted int    `json:"reviews_completed"`
	SustainedCount   int    `json:"sustained_count"`
	DeniedCount      int    `json:"denied_count"`
}

// AppealPage is a paginated appeal listing
type AppealPage struct {
	Appeals    []Appeal `json:"appeals"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	HasNext    bool     `json:"has_next"`
}
