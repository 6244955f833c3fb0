package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType identifies the kind of user-submitted content an event refers to
type ContentType string

const (
	ContentTypeTopic          ContentType = "topic"
	ContentTypePost           ContentType = "post"
	ContentTypePrivateMessage ContentType = "private_message"
)

// EventType identifies what produced a moderation event
type EventType string

const (
	EventTypePostModeration    EventType = "post_moderation"
	EventTypeTopicModeration   EventType = "topic_moderation"
	EventTypeMessageModeration EventType = "message_moderation"
	EventTypeManualAdjustment  EventType = "manual_adjustment"
	EventTypeAppealResolution  EventType = "appeal_resolution"
)

// EventOutcome is the scored result of a moderation decision
type EventOutcome string

const (
	OutcomeApproved        EventOutcome = "approved"
	OutcomeRejected        EventOutcome = "rejected"
	OutcomeRemoved         EventOutcome = "removed"
	OutcomeAppealSustained EventOutcome = "appeal_sustained"
	OutcomeAppealDenied    EventOutcome = "appeal_denied"
)

// ModerationEvent is an immutable ledger entry. The append-only sequence of
// events for a user is the sole source of truth for that user's score.
type ModerationEvent struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	UserPK        uuid.UUID         `json:"user_pk" db:"user_pk"`
	EventType     EventType         `json:"event_type" db:"event_type"`
	ContentType   ContentType       `json:"content_type" db:"content_type"`
	ContentPK     uuid.UUID         `json:"content_pk" db:"content_pk"`
	Outcome       EventOutcome      `json:"outcome" db:"outcome"`
	ScoreDelta    int               `json:"score_delta" db:"score_delta"`
	PreviousScore int               `json:"previous_score" db:"previous_score"`
	NewScore      int               `json:"new_score" db:"new_score"`
	ModeratorPK   *uuid.UUID        `json:"moderator_pk,omitempty" db:"moderator_pk"`
	Reason        *string           `json:"reason,omitempty" db:"reason"`
	Metadata      map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// LoyaltyScoreHistory is a point-in-time score snapshot, one row per event
type LoyaltyScoreHistory struct {
	UserPK     uuid.UUID `json:"user_pk" db:"user_pk"`
	Score      int       `json:"score" db:"score"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	EventPK    uuid.UUID `json:"event_pk" db:"event_pk"`
}

// ScoreBreakdown aggregates a user's ledger by content type and outcome
type ScoreBreakdown struct {
	UserPK                uuid.UUID `json:"user_pk"`
	CurrentScore          int       `json:"current_score"`
	PostScore             int       `json:"post_score"`
	TopicScore            int       `json:"topic_score"`
	PrivateMessageScore   int       `json:"private_message_score"`
	AppealAdjustments     int       `json:"appeal_adjustments"`
	ManualAdjustments     int       `json:"manual_adjustments"`
	TotalApprovedPosts    int       `json:"total_approved_posts"`
	TotalRejectedPosts    int       `json:"total_rejected_posts"`
	TotalApprovedTopics   int       `json:"total_approved_topics"`
	TotalRejectedTopics   int       `json:"total_rejected_topics"`
	TotalApprovedMessages int       `json:"total_approved_messages"`
	TotalRejectedMessages int       `json:"total_rejected_messages"`
	LastUpdated           time.Time `json:"last_updated"`
}

// EventFilters narrows ledger queries
type EventFilters struct {
	EventType   EventType    `json:"event_type,omitempty" form:"event_type"`
	ContentType ContentType  `json:"content_type,omitempty" form:"content_type"`
	Outcome     EventOutcome `json:"outcome,omitempty" form:"outcome"`
	StartDate   *time.Time   `json:"start_date,omitempty" form:"start_date"`
	EndDate     *time.Time   `json:"end_date,omitempty" form:"end_date"`
}

// EventPage is a paginated slice of a user's ledger
type EventPage struct {
	Events     []ModerationEvent `json:"events"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	HasNext    bool              `json:"has_next"`
}

// SystemStats holds system-wide loyalty score statistics
type SystemStats struct {
	TotalUsers            int            `json:"total_users"`
	AverageScore          float64        `json:"average_score"`
	MedianScore           int            `json:"median_score"`
	ScoreDistribution     map[string]int `json:"score_distribution"`
	Top10PercentThreshold int            `json:"top_10_percent_threshold"`
	TotalEventsProcessed  int            `json:"total_events_processed"`
	LastUpdated           time.Time      `json:"last_updated"`
}

// ScoreThresholds are the score levels that gate privileges
type ScoreThresholds struct {
	TopicCreation      int `json:"topic_creation"`
	PriorityModeration int `json:"priority_moderation"`
	ExtendedAppeals    int `json:"extended_appeals"`
}

// LoyaltyProfile is the full reputation view for a single user
type LoyaltyProfile struct {
	UserPK          uuid.UUID             `json:"user_pk"`
	Username        string                `json:"username"`
	CurrentScore    int                   `json:"current_score"`
	Rank            *int                  `json:"rank,omitempty"`
	PercentileRank  *float64              `json:"percentile_rank,omitempty"`
	Breakdown       ScoreBreakdown        `json:"breakdown"`
	RecentEvents    []ModerationEvent     `json:"recent_events"`
	ScoreHistory    []LoyaltyScoreHistory `json:"score_history"`
	CanCreateTopics bool                  `json:"can_create_topics"`
	NextThreshold   *int                  `json:"next_threshold,omitempty"`
}

// RecordOutcomeRequest is what the external moderation pipeline submits
type RecordOutcomeRequest struct {
	UserPK      uuid.UUID    `json:"user_pk" binding:"required"`
	ContentType ContentType  `json:"content_type" binding:"required"`
	ContentPK   uuid.UUID    `json:"content_pk" binding:"required"`
	Outcome     EventOutcome `json:"outcome" binding:"required"`
	ModeratorPK *uuid.UUID   `json:"moderator_pk,omitempty"`
	Reason      *string      `json:"reason,omitempty"`
}

// AdjustScoreRequest is an admin-supplied manual score adjustment
type AdjustScoreRequest struct {
	UserPK     uuid.UUID `json:"user_pk" binding:"required"`
	Adjustment int       `json:"adjustment" binding:"required"`
	Reason     string    `json:"reason" binding:"required"`
	AdminNotes string    `json:"admin_notes,omitempty"`
}
