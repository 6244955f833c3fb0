package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/models"
)

type LoyaltyRepository struct {
	db *database.DB
}

func NewLoyaltyRepository(db *database.DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// RecordEvent appends a moderation event to the ledger and applies its delta
// to the user's score. The user row is locked for the duration of the
// transaction so concurrent events for the same user serialize; each event
// sees the score left by the previous one.
func (r *LoyaltyRepository) RecordEvent(event *models.ModerationEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previousScore int
	err = tx.QueryRow(
		`SELECT loyalty_score FROM users WHERE id = $1 FOR UPDATE`,
		event.UserPK,
	).Scan(&previousScore)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %s: %w", event.UserPK, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock user row: %w", err)
	}

	event.PreviousScore = previousScore
	event.NewScore = previousScore + event.ScoreDelta
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	var metadata []byte
	if event.Metadata != nil {
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = tx.QueryRow(
		`INSERT INTO moderation_events
			(id, user_pk, event_type, content_type, content_pk, outcome,
			 score_delta, previous_score, new_score, moderator_pk, reason, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		event.ID,
		event.UserPK,
		event.EventType,
		event.ContentType,
		event.ContentPK,
		event.Outcome,
		event.ScoreDelta,
		event.PreviousScore,
		event.NewScore,
		event.ModeratorPK,
		event.Reason,
		metadata,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert moderation event: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO loyalty_score_history (user_pk, score, event_pk, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		event.UserPK, event.NewScore, event.ID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert score history: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE users SET loyalty_score = $1, updated_at = NOW() WHERE id = $2`,
		event.NewScore, event.UserPK,
	)
	if err != nil {
		return fmt.Errorf("failed to update user score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}

	return nil
}

// Recalculate replays the full ledger for a user and overwrites the cached
// score. Used to repair drift after manual database surgery.
func (r *LoyaltyRepository) Recalculate(userPK uuid.UUID) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRow(
		`SELECT loyalty_score FROM users WHERE id = $1 FOR UPDATE`,
		userPK,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %s: %w", userPK, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock user row: %w", err)
	}

	var score int
	err = tx.QueryRow(
		`SELECT COALESCE(SUM(score_delta), 0) FROM moderation_events WHERE user_pk = $1`,
		userPK,
	).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE users SET loyalty_score = $1, updated_at = NOW() WHERE id = $2`,
		score, userPK,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update user score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit recalculation: %w", err)
	}

	return score, nil
}

// GetBreakdown aggregates a user's ledger by content type and outcome
func (r *LoyaltyRepository) GetBreakdown(userPK uuid.UUID) (*models.ScoreBreakdown, error) {
	query := `
		SELECT
			COALESCE(SUM(score_delta) FILTER (WHERE content_type = 'post' AND event_type != 'appeal_resolution' AND event_type != 'manual_adjustment'), 0),
			COALESCE(SUM(score_delta) FILTER (WHERE content_type = 'topic' AND event_type != 'appeal_resolution' AND event_type != 'manual_adjustment'), 0),
			COALESCE(SUM(score_delta) FILTER (WHERE content_type = 'private_message' AND event_type != 'appeal_resolution' AND event_type != 'manual_adjustment'), 0),
			COALESCE(SUM(score_delta) FILTER (WHERE event_type = 'appeal_resolution'), 0),
			COALESCE(SUM(score_delta) FILTER (WHERE event_type = 'manual_adjustment'), 0),
			COUNT(*) FILTER (WHERE content_type = 'post' AND outcome = 'approved'),
			COUNT(*) FILTER (WHERE content_type = 'post' AND outcome IN ('rejected', 'removed')),
			COUNT(*) FILTER (WHERE content_type = 'topic' AND outcome = 'approved'),
			COUNT(*) FILTER (WHERE content_type = 'topic' AND outcome IN ('rejected', 'removed')),
			COUNT(*) FILTER (WHERE content_type = 'private_message' AND outcome = 'approved'),
			COUNT(*) FILTER (WHERE content_type = 'private_message' AND outcome IN ('rejected', 'removed')),
			COALESCE(MAX(created_at), NOW())
		FROM moderation_events
		WHERE user_pk = $1
	`

	b := &models.ScoreBreakdown{UserPK: userPK}
	err := r.db.QueryRow(query, userPK).Scan(
		&b.PostScore,
		&b.TopicScore,
		&b.PrivateMessageScore,
		&b.AppealAdjustments,
		&b.ManualAdjustments,
		&b.TotalApprovedPosts,
		&b.TotalRejectedPosts,
		&b.TotalApprovedTopics,
		&b.TotalRejectedTopics,
		&b.TotalApprovedMessages,
		&b.TotalRejectedMessages,
		&b.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get score breakdown: %w", err)
	}

	err = r.db.QueryRow(`SELECT loyalty_score FROM users WHERE id = $1`, userPK).Scan(&b.CurrentScore)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userPK, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current score: %w", err)
	}

	return b, nil
}

// GetHistory returns the most recent score snapshots for a user
func (r *LoyaltyRepository) GetHistory(userPK uuid.UUID, limit int) ([]models.LoyaltyScoreHistory, error) {
	query := `
		SELECT user_pk, score, event_pk, recorded_at
		FROM loyalty_score_history
		WHERE user_pk = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, userPK, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	defer rows.Close()

	history := []models.LoyaltyScoreHistory{}
	for rows.Next() {
		var h models.LoyaltyScoreHistory
		if err := rows.Scan(&h.UserPK, &h.Score, &h.EventPK, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, h)
	}

	return history, nil
}

// GetUserEvents returns a filtered, paginated slice of a user's ledger,
// newest first.
func (r *LoyaltyRepository) GetUserEvents(userPK uuid.UUID, filters models.EventFilters, page, pageSize int) (*models.EventPage, error) {
	where := "WHERE user_pk = $1"
	args := []interface{}{userPK}

	if filters.EventType != "" {
		args = append(args, filters.EventType)
		where += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filters.ContentType != "" {
		args = append(args, filters.ContentType)
		where += fmt.Sprintf(" AND content_type = $%d", len(args))
	}
	if filters.Outcome != "" {
		args = append(args, filters.Outcome)
		where += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM moderation_events " + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
		SELECT id, user_pk, event_type, content_type, content_pk, outcome,
		       score_delta, previous_score, new_score, moderator_pk, reason, metadata, created_at
		FROM moderation_events
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	return &models.EventPage{
		Events:     events,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page*pageSize < total,
	}, nil
}

// GetRecentEvents returns the newest ledger entries for a user
func (r *LoyaltyRepository) GetRecentEvents(userPK uuid.UUID, limit int) ([]models.ModerationEvent, error) {
	query := `
		SELECT id, user_pk, event_type, content_type, content_pk, outcome,
		       score_delta, previous_score, new_score, moderator_pk, reason, metadata, created_at
		FROM moderation_events
		WHERE user_pk = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, userPK, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetSystemStats computes system-wide score statistics
func (r *LoyaltyRepository) GetSystemStats() (*models.SystemStats, error) {
	stats := &models.SystemStats{
		ScoreDistribution: map[string]int{},
		LastUpdated:       time.Now().UTC(),
	}

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(loyalty_score), 0),
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY loyalty_score), 0)::int,
		       COALESCE(PERCENTILE_CONT(0.9) WITHIN GROUP (ORDER BY loyalty_score), 0)::int
		FROM users
	`).Scan(&stats.TotalUsers, &stats.AverageScore, &stats.MedianScore, &stats.Top10PercentThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	err = r.db.QueryRow(`SELECT COUNT(*) FROM moderation_events`).Scan(&stats.TotalEventsProcessed)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT CASE
		         WHEN loyalty_score < 0 THEN 'negative'
		         WHEN loyalty_score < 100 THEN '0-99'
		         WHEN loyalty_score < 500 THEN '100-499'
		         WHEN loyalty_score < 1000 THEN '500-999'
		         ELSE '1000+'
		       END AS bucket,
		       COUNT(*)
		FROM users
		GROUP BY bucket
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get score distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket string
		var count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		stats.ScoreDistribution[bucket] = count
	}

	return stats, nil
}

func scanEvents(rows *sql.Rows) ([]models.ModerationEvent, error) {
	events := []models.ModerationEvent{}
	for rows.Next() {
		var e models.ModerationEvent
		var metadata []byte
		err := rows.Scan(
			&e.ID,
			&e.UserPK,
			&e.EventType,
			&e.ContentType,
			&e.ContentPK,
			&e.Outcome,
			&e.ScoreDelta,
			&e.PreviousScore,
			&e.NewScore,
			&e.ModeratorPK,
			&e.Reason,
			&metadata,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, e)
	}

	return events, nil
}
