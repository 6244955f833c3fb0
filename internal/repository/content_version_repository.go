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

// ContentVersion preserves the before/after state of content edited during
// an appeal restoration.
type ContentVersion struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	ContentType     models.ContentType `json:"content_type" db:"content_type"`
	ContentPK       uuid.UUID          `json:"content_pk" db:"content_pk"`
	AppealPK        *uuid.UUID         `json:"appeal_pk,omitempty" db:"appeal_pk"`
	OriginalContent map[string]string  `json:"original_content" db:"original_content"`
	EditedContent   map[string]string  `json:"edited_content,omitempty" db:"edited_content"`
	EditReason      *string            `json:"edit_reason,omitempty" db:"edit_reason"`
	EditedBy        *uuid.UUID         `json:"edited_by,omitempty" db:"edited_by"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

type ContentVersionRepository struct {
	db *database.DB
}

func NewContentVersionRepository(db *database.DB) *ContentVersionRepository {
	return &ContentVersionRepository{db: db}
}

// Create records a content version snapshot
func (r *ContentVersionRepository) Create(v *ContentVersion) error {
	original, err := json.Marshal(v.OriginalContent)
	if err != nil {
		return fmt.Errorf("failed to marshal original content: %w", err)
	}

	var edited []byte
	if v.EditedContent != nil {
		edited, err = json.Marshal(v.EditedContent)
		if err != nil {
			return fmt.Errorf("failed to marshal edited content: %w", err)
		}
	}

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	err = r.db.QueryRow(`
		INSERT INTO content_versions
			(id, content_type, content_pk, appeal_pk, original_content, edited_content, edit_reason, edited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, v.ID, v.ContentType, v.ContentPK, v.AppealPK, original, edited, v.EditReason, v.EditedBy).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create content version: %w", err)
	}

	return nil
}

// ListForContent returns every version of a piece of content, oldest first
func (r *ContentVersionRepository) ListForContent(contentType models.ContentType, contentPK uuid.UUID) ([]ContentVersion, error) {
	rows, err := r.db.Query(`
		SELECT id, content_type, content_pk, appeal_pk, original_content, edited_content, edit_reason, edited_by, created_at
		FROM content_versions
		WHERE content_type = $1 AND content_pk = $2
		ORDER BY created_at ASC
	`, contentType, contentPK)
	if err != nil {
		return nil, fmt.Errorf("failed to list content versions: %w", err)
	}
	defer rows.Close()

	versions := []ContentVersion{}
	for rows.Next() {
		var v ContentVersion
		var original, edited []byte
		err := rows.Scan(
			&v.ID,
			&v.ContentType,
			&v.ContentPK,
			&v.AppealPK,
			&original,
			&edited,
			&v.EditReason,
			&v.EditedBy,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content version: %w", err)
		}
		if len(original) > 0 {
			if err := json.Unmarshal(original, &v.OriginalContent); err != nil {
				return nil, fmt.Errorf("failed to unmarshal original content: %w", err)
			}
		}
		if len(edited) > 0 {
			if err := json.Unmarshal(edited, &v.EditedContent); err != nil {
				return nil, fmt.Errorf("failed to unmarshal edited content: %w", err)
			}
		}
		versions = append(versions, v)
	}

	return versions, nil
}

// GetByAppeal returns the version snapshot taken for an appeal restoration
func (r *ContentVersionRepository) GetByAppeal(appealPK uuid.UUID) (*ContentVersion, error) {
	row := r.db.QueryRow(`
		SELECT id, content_type, content_pk, appeal_pk, original_content, edited_content, edit_reason, edited_by, created_at
		FROM content_versions
		WHERE appeal_pk = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appealPK)

	var v ContentVersion
	var original, edited []byte
	err := row.Scan(
		&v.ID,
		&v.ContentType,
		&v.ContentPK,
		&v.AppealPK,
		&original,
		&edited,
		&v.EditReason,
		&v.EditedBy,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("appeal %s has no content version: %w", appealPK, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content version: %w", err)
	}
	if len(original) > 0 {
		if err := json.Unmarshal(original, &v.OriginalContent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal original content: %w", err)
		}
	}
	if len(edited) > 0 {
		if err := json.Unmarshal(edited, &v.EditedContent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edited content: %w", err)
		}
	}

	return &v, nil
}

// RestoreContent flips appealed content back to an approved state and stores
// any moderator edits supplied with the decision.
func (r *ContentVersionRepository) RestoreContent(contentType models.ContentType, contentPK uuid.UUID, edits map[string]string) error {
	var query string
	switch contentType {
	case models.ContentTypeTopic:
		query = `UPDATE topics SET status = 'approved', updated_at = NOW() WHERE id = $1`
	case models.ContentTypePost:
		query = `UPDATE posts SET status = 'approved', updated_at = NOW() WHERE id = $1`
	case models.ContentTypePrivateMessage:
		query = `UPDATE private_messages SET status = 'approved' WHERE id = $1`
	default:
		return fmt.Errorf("unknown content type: %s", contentType)
	}

	result, err := r.db.Exec(query, contentPK)
	if err != nil {
		return fmt.Errorf("failed to restore content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("content %s: %w", contentPK, models.ErrNotFound)
	}

	if body, ok := edits["content"]; ok && contentType == models.ContentTypePost {
		if _, err := r.db.Exec(`UPDATE posts SET content = $1, updated_at = NOW() WHERE id = $2`, body, contentPK); err != nil {
			return fmt.Errorf("failed to apply content edit: %w", err)
		}
	}
	if title, ok := edits["title"]; ok && contentType == models.ContentTypeTopic {
		if _, err := r.db.Exec(`UPDATE topics SET title = $1, updated_at = NOW() WHERE id = $2`, title, contentPK); err != nil {
			return fmt.Errorf("failed to apply title edit: %w", err)
		}
	}

	return nil
}
