package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueScope identifies one of the three independent admission queues
type QueueScope string

const (
	ScopeTopicCreation     QueueScope = "topic_creation"
	ScopePostModeration    QueueScope = "post_moderation"
	ScopeMessageModeration QueueScope = "private_message"
)

// QueueStatus is the lifecycle state of a queue item
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
)

// QueueItem is an admission-queue entry. Lower priority_score is served
// first; ties break by entered_queue_at, then primary key.
type QueueItem struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	Scope            QueueScope  `json:"scope" db:"-"`
	ContentPK        uuid.UUID   `json:"content_pk" db:"content_pk"`
	ScopeKey         string      `json:"scope_key,omitempty" db:"-"`
	PriorityScore    int64       `json:"priority_score" db:"priority_score"`
	PositionInQueue  *int        `json:"position_in_queue,omitempty" db:"position_in_queue"`
	Status           QueueStatus `json:"status" db:"status"`
	EnteredQueueAt   time.Time   `json:"entered_queue_at" db:"entered_queue_at"`
	WorkerID         *string     `json:"worker_id,omitempty" db:"worker_id"`
	WorkerAssignedAt *time.Time  `json:"worker_assigned_at,omitempty" db:"worker_assigned_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// QueueOverview summarizes one queue scope for moderator tooling
type QueueOverview struct {
	Scope           QueueScope `json:"scope"`
	PendingCount    int        `json:"pending_count"`
	ProcessingCount int        `json:"processing_count"`
	OldestWait      *float64   `json:"oldest_wait_seconds,omitempty"`
	AverageWait     *float64   `json:"average_wait_seconds,omitempty"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// ConversationKey derives a stable scope key for a private-message queue
// from an unordered pair of users.
func ConversationKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("users_%s_%s", lo, hi)
}
