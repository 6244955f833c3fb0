package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/models"
)

// queueSpec maps a queue scope onto its table layout. The three queues share
// one shape except for the content column and the optional scope-key column
// that partitions ordering (topic for posts, conversation for messages).
type queueSpec struct {
	table      string
	contentCol string
	scopeCol   string // empty for the global topic queue
	scopeCast  string // SQL cast applied to the scope-key parameter
}

var queueSpecs = map[models.QueueScope]queueSpec{
	models.ScopeTopicCreation: {
		table:      "topic_creation_queue",
		contentCol: "topic_pk",
	},
	models.ScopePostModeration: {
		table:      "post_moderation_queue",
		contentCol: "post_pk",
		scopeCol:   "topic_pk",
		scopeCast:  "::uuid",
	},
	models.ScopeMessageModeration: {
		table:      "private_message_queue",
		contentCol: "message_pk",
		scopeCol:   "conversation_id",
	},
}

type QueueRepository struct {
	db *database.DB
}

func NewQueueRepository(db *database.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func spec(scope models.QueueScope) (queueSpec, error) {
	s, ok := queueSpecs[scope]
	if !ok {
		return queueSpec{}, fmt.Errorf("unknown queue scope: %s", scope)
	}
	return s, nil
}

// Enqueue inserts a pending item. Duplicate pending entries for the same
// content are rejected.
func (r *QueueRepository) Enqueue(scope models.QueueScope, contentPK uuid.UUID, scopeKey string, priority int64) (*models.QueueItem, error) {
	s, err := spec(scope)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = r.db.QueryRow(fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1 AND status IN ('pending', 'processing'))`,
		s.table, s.contentCol,
	), contentPK).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check queue for duplicate: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("content %s already queued: %w", contentPK, models.ErrInvalidState)
	}

	item := &models.QueueItem{
		Scope:         scope,
		ContentPK:     contentPK,
		ScopeKey:      scopeKey,
		PriorityScore: priority,
		Status:        models.QueueStatusPending,
	}

	if s.scopeCol == "" {
		err = r.db.QueryRow(fmt.Sprintf(
			`INSERT INTO %s (%s, priority_score) VALUES ($1, $2)
			 RETURNING id, entered_queue_at, updated_at`,
			s.table, s.contentCol,
		), contentPK, priority).Scan(&item.ID, &item.EnteredQueueAt, &item.UpdatedAt)
	} else {
		err = r.db.QueryRow(fmt.Sprintf(
			`INSERT INTO %s (%s, %s, priority_score) VALUES ($1, $2%s, $3)
			 RETURNING id, entered_queue_at, updated_at`,
			s.table, s.contentCol, s.scopeCol, s.scopeCast,
		), contentPK, scopeKey, priority).Scan(&item.ID, &item.EnteredQueueAt, &item.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	return item, nil
}

// ClaimNext atomically claims the most urgent pending item for a worker.
// The subselect locks the candidate row with SKIP LOCKED, so two workers
// claiming concurrently get different items or none, never the same one.
// An empty scopeKey claims across all partitions of the scope.
func (r *QueueRepository) ClaimNext(scope models.QueueScope, scopeKey, workerID string) (*models.QueueItem, error) {
	s, err := spec(scope)
	if err != nil {
		return nil, err
	}

	scopeFilter := ""
	args := []interface{}{workerID}
	if s.scopeCol != "" && scopeKey != "" {
		args = append(args, scopeKey)
		scopeFilter = fmt.Sprintf("AND %s = $2%s", s.scopeCol, s.scopeCast)
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET status = 'processing', worker_id = $1, worker_assigned_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM %[1]s
			WHERE status = 'pending' %[2]s
			ORDER BY priority_score ASC, entered_queue_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, %[3]s, priority_score, position_in_queue, status,
		          entered_queue_at, worker_id, worker_assigned_at, updated_at
	`, s.table, scopeFilter, s.contentCol)

	item := &models.QueueItem{Scope: scope, ScopeKey: scopeKey}
	err = r.db.QueryRow(query, args...).Scan(
		&item.ID,
		&item.ContentPK,
		&item.PriorityScore,
		&item.PositionInQueue,
		&item.Status,
		&item.EnteredQueueAt,
		&item.WorkerID,
		&item.WorkerAssignedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// nothing pending: an empty claim, not an error
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", err)
	}

	return item, nil
}

// Complete marks a processing item done. Only the worker holding the claim
// may complete it.
func (r *QueueRepository) Complete(scope models.QueueScope, id uuid.UUID, workerID string) error {
	s, err := spec(scope)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(fmt.Sprintf(
		`UPDATE %s
		 SET status = 'completed', updated_at = NOW()
		 WHERE id = $1 AND status = 'processing' AND worker_id = $2`,
		s.table,
	), id, workerID)
	if err != nil {
		return fmt.Errorf("failed to complete queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s not processing for worker %s: %w", id, workerID, models.ErrInvalidState)
	}

	return nil
}

// Release returns a processing item to pending, clearing the claim
func (r *QueueRepository) Release(scope models.QueueScope, id uuid.UUID) error {
	s, err := spec(scope)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(fmt.Sprintf(
		`UPDATE %s
		 SET status = 'pending', worker_id = NULL, worker_assigned_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		s.table,
	), id)
	if err != nil {
		return fmt.Errorf("failed to release queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s not processing: %w", id, models.ErrInvalidState)
	}

	return nil
}

// RequeueExpired releases every claim older than the lease timeout and
// returns how many items went back to pending.
func (r *QueueRepository) RequeueExpired(scope models.QueueScope, leaseTimeout time.Duration) (int, error) {
	s, err := spec(scope)
	if err != nil {
		return 0, err
	}

	result, err := r.db.Exec(fmt.Sprintf(
		`UPDATE %s
		 SET status = 'pending', worker_id = NULL, worker_assigned_at = NULL, updated_at = NOW()
		 WHERE status = 'processing' AND worker_assigned_at < NOW() - $1 * INTERVAL '1 second'`,
		s.table,
	), int(leaseTimeout.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue expired items: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// PositionOf computes the 1-based position of a pending item inside its
// ordering partition. Positions are derived, never stored authoritatively.
func (r *QueueRepository) PositionOf(scope models.QueueScope, id uuid.UUID) (int, error) {
	s, err := spec(scope)
	if err != nil {
		return 0, err
	}

	partition := ""
	if s.scopeCol != "" {
		partition = "PARTITION BY " + s.scopeCol
	}

	query := fmt.Sprintf(`
		SELECT position FROM (
			SELECT id, ROW_NUMBER() OVER (%s ORDER BY priority_score ASC, entered_queue_at ASC, id ASC) AS position
			FROM %s
			WHERE status = 'pending'
		) ranked
		WHERE id = $1
	`, partition, s.table)

	var position int
	err = r.db.QueryRow(query, id).Scan(&position)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("item %s not pending: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get queue position: %w", err)
	}

	return position, nil
}

// RecomputePositions refreshes the stored position_in_queue for every
// pending item. The stored value is advisory display state; ordering always
// comes from (priority_score, entered_queue_at).
func (r *QueueRepository) RecomputePositions(scope models.QueueScope) (int, error) {
	s, err := spec(scope)
	if err != nil {
		return 0, err
	}

	partition := ""
	if s.scopeCol != "" {
		partition = "PARTITION BY " + s.scopeCol
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s q
		SET position_in_queue = ranked.position
		FROM (
			SELECT id, ROW_NUMBER() OVER (%[2]s ORDER BY priority_score ASC, entered_queue_at ASC, id ASC) AS position
			FROM %[1]s
			WHERE status = 'pending'
		) ranked
		WHERE q.id = ranked.id AND q.position_in_queue IS DISTINCT FROM ranked.position
	`, s.table, partition)

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute positions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// GetByContent finds the live queue entry for a piece of content
func (r *QueueRepository) GetByContent(scope models.QueueScope, contentPK uuid.UUID) (*models.QueueItem, error) {
	s, err := spec(scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, %s, priority_score, position_in_queue, status,
		       entered_queue_at, worker_id, worker_assigned_at, updated_at
		FROM %s
		WHERE %s = $1 AND status IN ('pending', 'processing')
	`, s.contentCol, s.table, s.contentCol)

	item := &models.QueueItem{Scope: scope}
	err = r.db.QueryRow(query, contentPK).Scan(
		&item.ID,
		&item.ContentPK,
		&item.PriorityScore,
		&item.PositionInQueue,
		&item.Status,
		&item.EnteredQueueAt,
		&item.WorkerID,
		&item.WorkerAssignedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("content %s not queued: %w", contentPK, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}

	return item, nil
}

// Remove drops a pending item, e.g. when content is deleted before review
func (r *QueueRepository) Remove(scope models.QueueScope, contentPK uuid.UUID) error {
	s, err := spec(scope)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE %s = $1 AND status = 'pending'`,
		s.table, s.contentCol,
	), contentPK)
	if err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("content %s not pending: %w", contentPK, models.ErrNotFound)
	}

	return nil
}

// ListPending returns the head of a queue partition in serving order
func (r *QueueRepository) ListPending(scope models.QueueScope, scopeKey string, limit int) ([]models.QueueItem, error) {
	s, err := spec(scope)
	if err != nil {
		return nil, err
	}

	scopeFilter := ""
	args := []interface{}{limit}
	if s.scopeCol != "" && scopeKey != "" {
		args = append(args, scopeKey)
		scopeFilter = fmt.Sprintf("AND %s = $2%s", s.scopeCol, s.scopeCast)
	}

	query := fmt.Sprintf(`
		SELECT id, %s, priority_score, position_in_queue, status,
		       entered_queue_at, worker_id, worker_assigned_at, updated_at
		FROM %s
		WHERE status = 'pending' %s
		ORDER BY priority_score ASC, entered_queue_at ASC, id ASC
		LIMIT $1
	`, s.contentCol, s.table, scopeFilter)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()

	items := []models.QueueItem{}
	for rows.Next() {
		item := models.QueueItem{Scope: scope}
		err := rows.Scan(
			&item.ID,
			&item.ContentPK,
			&item.PriorityScore,
			&item.PositionInQueue,
			&item.Status,
			&item.EnteredQueueAt,
			&item.WorkerID,
			&item.WorkerAssignedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// Overview summarizes one queue for moderator tooling
func (r *QueueRepository) Overview(scope models.QueueScope) (*models.QueueOverview, error) {
	s, err := spec(scope)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			EXTRACT(EPOCH FROM (NOW() - MIN(entered_queue_at) FILTER (WHERE status = 'pending'))),
			EXTRACT(EPOCH FROM AVG(NOW() - entered_queue_at) FILTER (WHERE status = 'pending'))
		FROM %s
	`, s.table)

	overview := &models.QueueOverview{Scope: scope, LastUpdated: time.Now().UTC()}
	err = r.db.QueryRow(query).Scan(
		&overview.PendingCount,
		&overview.ProcessingCount,
		&overview.OldestWait,
		&overview.AverageWait,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue overview: %w", err)
	}

	return overview, nil
}
