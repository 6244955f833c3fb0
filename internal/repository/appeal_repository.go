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

type AppealRepository struct {
	db *database.DB
}

func NewAppealRepository(db *database.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

// Create inserts a new pending appeal
func (r *AppealRepository) Create(appeal *models.Appeal) error {
	query := `
		INSERT INTO appeals
			(id, appellant_pk, content_type, content_pk, appeal_type, status,
			 reason, evidence, priority_score, previous_appeals_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING submitted_at, updated_at
	`

	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	if appeal.Status == "" {
		appeal.Status = models.AppealStatusPending
	}

	err := r.db.QueryRow(
		query,
		appeal.ID,
		appeal.AppellantPK,
		appeal.ContentType,
		appeal.ContentPK,
		appeal.AppealType,
		appeal.Status,
		appeal.Reason,
		appeal.Evidence,
		appeal.PriorityScore,
		appeal.PreviousAppealsCount,
	).Scan(&appeal.SubmittedAt, &appeal.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create appeal: %w", err)
	}

	return nil
}

const appealColumns = `
	id, appellant_pk, content_type, content_pk, appeal_type, status,
	reason, evidence, priority_score, previous_appeals_count, submitted_at,
	reviewed_by, reviewed_at, review_notes,
	restoration_completed, restoration_completed_at, restoration_metadata, updated_at
`

func scanAppeal(row *sql.Row) (*models.Appeal, error) {
	a := &models.Appeal{}
	var restorationMetadata []byte
	err := row.Scan(
		&a.ID,
		&a.AppellantPK,
		&a.ContentType,
		&a.ContentPK,
		&a.AppealType,
		&a.Status,
		&a.Reason,
		&a.Evidence,
		&a.PriorityScore,
		&a.PreviousAppealsCount,
		&a.SubmittedAt,
		&a.ReviewedBy,
		&a.ReviewedAt,
		&a.ReviewNotes,
		&a.RestorationCompleted,
		&a.RestorationCompletedAt,
		&restorationMetadata,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(restorationMetadata) > 0 {
		if err := json.Unmarshal(restorationMetadata, &a.RestorationMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal restoration metadata: %w", err)
		}
	}
	return a, nil
}

func scanAppeals(rows *sql.Rows) ([]models.Appeal, error) {
	appeals := []models.Appeal{}
	for rows.Next() {
		var a models.Appeal
		var restorationMetadata []byte
		err := rows.Scan(
			&a.ID,
			&a.AppellantPK,
			&a.ContentType,
			&a.ContentPK,
			&a.AppealType,
			&a.Status,
			&a.Reason,
			&a.Evidence,
			&a.PriorityScore,
			&a.PreviousAppealsCount,
			&a.SubmittedAt,
			&a.ReviewedBy,
			&a.ReviewedAt,
			&a.ReviewNotes,
			&a.RestorationCompleted,
			&a.RestorationCompletedAt,
			&restorationMetadata,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appeal: %w", err)
		}
		if len(restorationMetadata) > 0 {
			if err := json.Unmarshal(restorationMetadata, &a.RestorationMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal restoration metadata: %w", err)
			}
		}
		appeals = append(appeals, a)
	}

	return appeals, nil
}

// GetByID retrieves a single appeal
func (r *AppealRepository) GetByID(id uuid.UUID) (*models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`

	appeal, err := scanAppeal(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("appeal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}

	return appeal, nil
}

// AssignReviewer moves a pending appeal to under_review. The status check
// rides in the WHERE clause so a concurrent assignment loses cleanly instead
// of silently double-assigning.
func (r *AppealRepository) AssignReviewer(id, reviewerPK uuid.UUID) error {
	query := `
		UPDATE appeals
		SET status = 'under_review', reviewed_by = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.db.Exec(query, reviewerPK, id)
	if err != nil {
		return fmt.Errorf("failed to assign reviewer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appeal %s not pending: %w", id, models.ErrInvalidState)
	}

	return nil
}

// ReleaseReview returns an under_review appeal to pending
func (r *AppealRepository) ReleaseReview(id uuid.UUID) error {
	query := `
		UPDATE appeals
		SET status = 'pending', reviewed_by = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'under_review'
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to release review: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appeal %s not under review: %w", id, models.ErrInvalidState)
	}

	return nil
}

// Resolve moves an under_review appeal to a terminal status. Only the
// assigned reviewer may resolve; decisions on pending, already-resolved, or
// otherwise-assigned appeals are invalid-state rejections.
func (r *AppealRepository) Resolve(id, reviewerPK uuid.UUID, status models.AppealStatus, notes *string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal: %w", status, models.ErrInvalidState)
	}

	query := `
		UPDATE appeals
		SET status = $1, reviewed_at = NOW(), review_notes = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'under_review' AND reviewed_by = $2
	`

	result, err := r.db.Exec(query, status, reviewerPK, notes, id)
	if err != nil {
		return fmt.Errorf("failed to resolve appeal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appeal %s not under review by %s: %w", id, reviewerPK, models.ErrInvalidState)
	}

	return nil
}

// Withdraw lets the owning user retract an open appeal. Withdrawal lands in
// the denied terminal state but carries no score penalty.
func (r *AppealRepository) Withdraw(id, appellantPK uuid.UUID) error {
	query := `
		UPDATE appeals
		SET status = 'denied', review_notes = 'withdrawn by appellant', reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND appellant_pk = $2 AND status IN ('pending', 'under_review')
	`

	result, err := r.db.Exec(query, id, appellantPK)
	if err != nil {
		return fmt.Errorf("failed to withdraw appeal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appeal %s not open for %s: %w", id, appellantPK, models.ErrInvalidState)
	}

	return nil
}

// MarkRestorationCompleted records that sustained-appeal content was restored
func (r *AppealRepository) MarkRestorationCompleted(id uuid.UUID, metadata map[string]string) error {
	var meta []byte
	var err error
	if metadata != nil {
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal restoration metadata: %w", err)
		}
	}

	query := `
		UPDATE appeals
		SET restoration_completed = true, restoration_completed_at = NOW(),
		    restoration_metadata = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'sustained'
	`

	result, err := r.db.Exec(query, meta, id)
	if err != nil {
		return fmt.Errorf("failed to mark restoration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appeal %s not sustained: %w", id, models.ErrInvalidState)
	}

	return nil
}

// ListByUser returns a user's appeals, newest first
func (r *AppealRepository) ListByUser(userPK uuid.UUID, status models.AppealStatus, page, pageSize int) (*models.AppealPage, error) {
	where := "WHERE appellant_pk = $1"
	args := []interface{}{userPK}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM appeals "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count appeals: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(
		`SELECT %s FROM appeals %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d`,
		appealColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}
	defer rows.Close()

	appeals, err := scanAppeals(rows)
	if err != nil {
		return nil, err
	}

	return &models.AppealPage{
		Appeals:    appeals,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page*pageSize < total,
	}, nil
}

// ListQueue returns the review queue: open appeals ordered by priority
// descending, then age.
func (r *AppealRepository) ListQueue(status models.AppealStatus, page, pageSize int) (*models.AppealPage, error) {
	where := "WHERE status IN ('pending', 'under_review')"
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where = fmt.Sprintf("WHERE status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM appeals "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count appeals: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(
		`SELECT %s FROM appeals %s
		 ORDER BY priority_score DESC, submitted_at ASC
		 LIMIT $%d OFFSET $%d`,
		appealColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeal queue: %w", err)
	}
	defer rows.Close()

	appeals, err := scanAppeals(rows)
	if err != nil {
		return nil, err
	}

	return &models.AppealPage{
		Appeals:    appeals,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page*pageSize < total,
	}, nil
}

// CountToday counts a user's appeals submitted since local midnight UTC
func (r *AppealRepository) CountToday(userPK uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM appeals
		 WHERE appellant_pk = $1 AND submitted_at >= date_trunc('day', NOW())`,
		userPK,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily appeals: %w", err)
	}
	return count, nil
}

// CountForContent counts a user's appeals against one piece of content
func (r *AppealRepository) CountForContent(userPK, contentPK uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM appeals WHERE appellant_pk = $1 AND content_pk = $2`,
		userPK, contentPK,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count content appeals: %w", err)
	}
	return count, nil
}

// CountPrevious counts a user's earlier appeals of any status
func (r *AppealRepository) CountPrevious(userPK uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM appeals WHERE appellant_pk = $1`,
		userPK,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count previous appeals: %w", err)
	}
	return count, nil
}

// LastDeniedAt returns when the user's most recent appeal was denied
func (r *AppealRepository) LastDeniedAt(userPK uuid.UUID) (*time.Time, error) {
	var deniedAt sql.NullTime
	err := r.db.QueryRow(
		`SELECT MAX(reviewed_at) FROM appeals
		 WHERE appellant_pk = $1 AND status = 'denied'`,
		userPK,
	).Scan(&deniedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get last denial: %w", err)
	}
	if !deniedAt.Valid {
		return nil, nil
	}
	return &deniedAt.Time, nil
}

// CountDeniedSince counts denials for a user inside a lookback window
func (r *AppealRepository) CountDeniedSince(userPK uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM appeals
		 WHERE appellant_pk = $1 AND status = 'denied' AND reviewed_at >= $2`,
		userPK, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count denied appeals: %w", err)
	}
	return count, nil
}

// ContentCreatedAt looks up the creation time for appealed content
func (r *AppealRepository) ContentCreatedAt(contentType models.ContentType, contentPK uuid.UUID) (time.Time, error) {
	var query string
	switch contentType {
	case models.ContentTypeTopic:
		query = `SELECT created_at FROM topics WHERE id = $1`
	case models.ContentTypePost:
		query = `SELECT created_at FROM posts WHERE id = $1`
	case models.ContentTypePrivateMessage:
		query = `SELECT sent_at FROM private_messages WHERE id = $1`
	default:
		return time.Time{}, fmt.Errorf("unknown content type: %s", contentType)
	}

	var createdAt time.Time
	err := r.db.QueryRow(query, contentPK).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("content %s: %w", contentPK, models.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get content age: %w", err)
	}

	return createdAt, nil
}

// QueueScopeKey derives the queue partition key for appealed content: the
// parent topic for posts, the conversation for messages, empty for topics.
func (r *AppealRepository) QueueScopeKey(contentType models.ContentType, contentPK uuid.UUID) (string, error) {
	switch contentType {
	case models.ContentTypeTopic:
		return "", nil
	case models.ContentTypePost:
		var topicPK uuid.UUID
		err := r.db.QueryRow(`SELECT topic_pk FROM posts WHERE id = $1`, contentPK).Scan(&topicPK)
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("post %s: %w", contentPK, models.ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to get post topic: %w", err)
		}
		return topicPK.String(), nil
	case models.ContentTypePrivateMessage:
		var sender, recipient uuid.UUID
		err := r.db.QueryRow(`SELECT sender_pk, recipient_pk FROM private_messages WHERE id = $1`, contentPK).Scan(&sender, &recipient)
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("message %s: %w", contentPK, models.ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to get message parties: %w", err)
		}
		return models.ConversationKey(sender, recipient), nil
	default:
		return "", fmt.Errorf("unknown content type: %s", contentType)
	}
}

// ContentSnapshot captures the current text of appealed content for
// versioning before a restoration edit.
func (r *AppealRepository) ContentSnapshot(contentType models.ContentType, contentPK uuid.UUID) (map[string]string, error) {
	snapshot := map[string]string{}
	var err error

	switch contentType {
	case models.ContentTypeTopic:
		var title string
		var description sql.NullString
		err = r.db.QueryRow(`SELECT title, description FROM topics WHERE id = $1`, contentPK).Scan(&title, &description)
		snapshot["title"] = title
		if description.Valid {
			snapshot["description"] = description.String
		}
	case models.ContentTypePost:
		var content string
		err = r.db.QueryRow(`SELECT content FROM posts WHERE id = $1`, contentPK).Scan(&content)
		snapshot["content"] = content
	case models.ContentTypePrivateMessage:
		var content string
		err = r.db.QueryRow(`SELECT content FROM private_messages WHERE id = $1`, contentPK).Scan(&content)
		snapshot["content"] = content
	default:
		return nil, fmt.Errorf("unknown content type: %s", contentType)
	}

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("content %s: %w", contentPK, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot content: %w", err)
	}

	return snapshot, nil
}

// Stats aggregates the appeal system for moderator dashboards
func (r *AppealRepository) Stats() (*models.AppealStats, error) {
	stats := &models.AppealStats{
		AppealsByType: map[string]int{},
	}

	err := r.db.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'under_review'),
			COUNT(*) FILTER (WHERE status = 'sustained'),
			COUNT(*) FILTER (WHERE status = 'denied'),
			COUNT(*),
			COUNT(*) FILTER (WHERE submitted_at >= date_trunc('day', NOW())),
			EXTRACT(EPOCH FROM AVG(reviewed_at - submitted_at) FILTER (WHERE reviewed_at IS NOT NULL)) / 3600
		FROM appeals
	`).Scan(
		&stats.TotalPending,
		&stats.TotalUnderReview,
		&stats.TotalSustained,
		&stats.TotalDenied,
		&stats.TotalCount,
		&stats.TotalToday,
		&stats.AverageReviewHours,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get appeal stats: %w", err)
	}

	rows, err := r.db.Query(`SELECT appeal_type, COUNT(*) FROM appeals GROUP BY appeal_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to get appeals by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var appealType string
		var count int
		if err := rows.Scan(&appealType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan appeal type row: %w", err)
		}
		stats.AppealsByType[appealType] = count
	}

	appellants, err := r.db.Query(`
		SELECT u.username, COUNT(*) AS appeal_count
		FROM appeals a
		JOIN users u ON u.id = a.appellant_pk
		GROUP BY u.username
		ORDER BY appeal_count DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get top appellants: %w", err)
	}
	defer appellants.Close()
	for appellants.Next() {
		var ac models.AppellantCount
		if err := appellants.Scan(&ac.Username, &ac.AppealCount); err != nil {
			return nil, fmt.Errorf("failed to scan appellant row: %w", err)
		}
		stats.TopAppellants = append(stats.TopAppellants, ac)
	}

	reviewers, err := r.db.Query(`
		SELECT u.username,
		       COUNT(*) AS reviews,
		       COUNT(*) FILTER (WHERE a.status = 'sustained'),
		       COUNT(*) FILTER (WHERE a.status = 'denied')
		FROM appeals a
		JOIN users u ON u.id = a.reviewed_by
		WHERE a.reviewed_at IS NOT NULL
		GROUP BY u.username
		ORDER BY reviews DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer stats: %w", err)
	}
	defer reviewers.Close()
	for reviewers.Next() {
		var rs models.ReviewerStats
		if err := reviewers.Scan(&rs.Username, &rs.ReviewsCompleted, &rs.SustainedCount, &rs.DeniedCount); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer row: %w", err)
		}
		stats.ReviewerStats = append(stats.ReviewerStats, rs)
	}

	return stats, nil
}
