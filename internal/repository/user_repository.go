package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, loyalty_score, is_banned, topic_creation_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.LoyaltyScore,
		user.IsBanned,
		user.TopicCreationEnabled,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, loyalty_score, is_banned, topic_creation_enabled,
		       topics_created_count, appeal_banned_until, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRow(query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.LoyaltyScore,
		&user.IsBanned,
		&user.TopicCreationEnabled,
		&user.TopicsCreatedCount,
		&user.AppealBannedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, loyalty_score, is_banned, topic_creation_enabled,
		       topics_created_count, appeal_banned_until, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	user := &models.User{}
	err := r.db.QueryRow(query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.LoyaltyScore,
		&user.IsBanned,
		&user.TopicCreationEnabled,
		&user.TopicsCreatedCount,
		&user.AppealBannedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, loyalty_score, is_banned, topic_creation_enabled,
		       topics_created_count, appeal_banned_until, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user := &models.User{}
	err := r.db.QueryRow(query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.LoyaltyScore,
		&user.IsBanned,
		&user.TopicCreationEnabled,
		&user.TopicsCreatedCount,
		&user.AppealBannedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", email, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// SetAppealBan records an appeal ban that lasts until the given time
func (r *UserRepository) SetAppealBan(id uuid.UUID, until time.Time) error {
	query := `
		UPDATE users
		SET appeal_banned_until = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Exec(query, until, id)
	if err != nil {
		return fmt.Errorf("failed to set appeal ban: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// IncrementTopicsCreated bumps the created-topics counter
func (r *UserRepository) IncrementTopicsCreated(id uuid.UUID) error {
	query := `
		UPDATE users
		SET topics_created_count = topics_created_count + 1, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to increment topics created: %w", err)
	}

	return nil
}

// SetTopicCreationEnabled toggles the topic creation privilege
func (r *UserRepository) SetTopicCreationEnabled(id uuid.UUID, enabled bool) error {
	query := `
		UPDATE users
		SET topic_creation_enabled = $1, updated_at = NOW()
		WHERE id = $2
	`

	if _, err := r.db.Exec(query, enabled, id); err != nil {
		return fmt.Errorf("failed to set topic creation: %w", err)
	}

	return nil
}

// GetByScoreRange lists users whose loyalty score falls inside [min, max]
func (r *UserRepository) GetByScoreRange(min, max, limit, offset int) ([]models.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, loyalty_score, is_banned, topic_creation_enabled,
		       topics_created_count, appeal_banned_until, created_at, updated_at
		FROM users
		WHERE loyalty_score >= $1 AND loyalty_score <= $2
		ORDER BY loyalty_score DESC, created_at ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(query, min, max, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by score range: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.LoyaltyScore,
			&user.IsBanned,
			&user.TopicCreationEnabled,
			&user.TopicsCreatedCount,
			&user.AppealBannedUntil,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, nil
}
