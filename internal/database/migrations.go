package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
			CREATE EXTENSION IF NOT EXISTS pg_trgm;

			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				username VARCHAR(255) UNIQUE NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL DEFAULT 'citizen',
				loyalty_score INT NOT NULL DEFAULT 0,
				is_banned BOOLEAN NOT NULL DEFAULT false,
				topic_creation_enabled BOOLEAN NOT NULL DEFAULT false,
				topics_created_count INT NOT NULL DEFAULT 0,
				appeal_banned_until TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			CREATE INDEX IF NOT EXISTS idx_users_loyalty_score ON users(loyalty_score DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS moderation_events (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				event_type VARCHAR(50) NOT NULL,
				content_type VARCHAR(50) NOT NULL,
				content_pk UUID NOT NULL,
				outcome VARCHAR(50) NOT NULL,
				score_delta INT NOT NULL,
				previous_score INT NOT NULL,
				new_score INT NOT NULL,
				moderator_pk UUID,
				reason TEXT,
				metadata JSONB,
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_moderation_events_user ON moderation_events(user_pk, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_moderation_events_outcome ON moderation_events(outcome);

			CREATE TABLE IF NOT EXISTS loyalty_score_history (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				score INT NOT NULL,
				recorded_at TIMESTAMP NOT NULL DEFAULT NOW(),
				event_pk UUID NOT NULL REFERENCES moderation_events(id) ON DELETE CASCADE
			);

			CREATE INDEX IF NOT EXISTS idx_loyalty_history_user ON loyalty_score_history(user_pk, recorded_at DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS loyalty_score_history;
			DROP TABLE IF EXISTS moderation_events;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS topics (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				author_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS posts (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				topic_pk UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
				author_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS private_messages (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				sender_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipient_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				sent_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_posts_topic ON posts(topic_pk);
			CREATE INDEX IF NOT EXISTS idx_private_messages_sender ON private_messages(sender_pk);
		`,
		Down: `
			DROP TABLE IF EXISTS private_messages;
			DROP TABLE IF EXISTS posts;
			DROP TABLE IF EXISTS topics;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS topic_creation_queue (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				topic_pk UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
				priority_score BIGINT NOT NULL,
				position_in_queue INT,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				entered_queue_at TIMESTAMP NOT NULL DEFAULT NOW(),
				worker_id VARCHAR(255),
				worker_assigned_at TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_topic_queue_pending ON topic_creation_queue(status, priority_score, entered_queue_at);
			CREATE INDEX IF NOT EXISTS idx_topic_queue_topic ON topic_creation_queue(topic_pk);

			CREATE TABLE IF NOT EXISTS post_moderation_queue (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				post_pk UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				topic_pk UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
				priority_score BIGINT NOT NULL,
				position_in_queue INT,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				entered_queue_at TIMESTAMP NOT NULL DEFAULT NOW(),
				worker_id VARCHAR(255),
				worker_assigned_at TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_post_queue_pending ON post_moderation_queue(topic_pk, status, priority_score, entered_queue_at);
			CREATE INDEX IF NOT EXISTS idx_post_queue_post ON post_moderation_queue(post_pk);

			CREATE TABLE IF NOT EXISTS private_message_queue (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				message_pk UUID NOT NULL REFERENCES private_messages(id) ON DELETE CASCADE,
				conversation_id VARCHAR(255) NOT NULL,
				priority_score BIGINT NOT NULL,
				position_in_queue INT,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				entered_queue_at TIMESTAMP NOT NULL DEFAULT NOW(),
				worker_id VARCHAR(255),
				worker_assigned_at TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_message_queue_pending ON private_message_queue(conversation_id, status, priority_score, entered_queue_at);
			CREATE INDEX IF NOT EXISTS idx_message_queue_message ON private_message_queue(message_pk);
		`,
		Down: `
			DROP TABLE IF EXISTS private_message_queue;
			DROP TABLE IF EXISTS post_moderation_queue;
			DROP TABLE IF EXISTS topic_creation_queue;
		`,
	},
	{
		Version: 5,
		Up: `
			CREATE TABLE IF NOT EXISTS appeals (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				appellant_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content_type VARCHAR(50) NOT NULL,
				content_pk UUID NOT NULL,
				appeal_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				reason TEXT NOT NULL,
				evidence TEXT,
				priority_score INT NOT NULL DEFAULT 0,
				previous_appeals_count INT NOT NULL DEFAULT 0,
				submitted_at TIMESTAMP NOT NULL DEFAULT NOW(),
				reviewed_by UUID REFERENCES users(id),
				reviewed_at TIMESTAMP,
				review_notes TEXT,
				restoration_completed BOOLEAN NOT NULL DEFAULT false,
				restoration_completed_at TIMESTAMP,
				restoration_metadata JSONB,
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_appeals_appellant ON appeals(appellant_pk, content_pk);
			CREATE INDEX IF NOT EXISTS idx_appeals_status ON appeals(status, priority_score DESC, submitted_at);
			CREATE INDEX IF NOT EXISTS idx_appeals_reviewed ON appeals(reviewed_by, reviewed_at);
		`,
		Down: `
			DROP TABLE IF EXISTS appeals;
		`,
	},
	{
		Version: 6,
		Up: `
			CREATE TABLE IF NOT EXISTS content_versions (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				content_type VARCHAR(50) NOT NULL,
				content_pk UUID NOT NULL,
				appeal_pk UUID REFERENCES appeals(id) ON DELETE SET NULL,
				original_content JSONB NOT NULL,
				edited_content JSONB,
				edit_reason TEXT,
				edited_by UUID REFERENCES users(id),
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_content_versions_content ON content_versions(content_type, content_pk);
		`,
		Down: `
			DROP TABLE IF EXISTS content_versions;
		`,
	},
	{
		Version: 7,
		Up: `
			CREATE TABLE IF NOT EXISTS leaderboard_rankings (
				user_pk UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				username VARCHAR(255) NOT NULL,
				loyalty_score INT NOT NULL,
				rank INT NOT NULL,
				percentile_rank DOUBLE PRECISION NOT NULL,
				topics_created_count INT NOT NULL DEFAULT 0,
				topic_creation_enabled BOOLEAN NOT NULL DEFAULT false,
				user_created_at TIMESTAMP NOT NULL,
				calculated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard_rankings(rank, user_pk);
			CREATE INDEX IF NOT EXISTS idx_leaderboard_username_trgm ON leaderboard_rankings USING gin (username gin_trgm_ops);
		`,
		Down: `
			DROP TABLE IF EXISTS leaderboard_rankings;
		`,
	},
	{
		Version: 8,
		Up: `
			CREATE TABLE IF NOT EXISTS badges (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				name VARCHAR(255) UNIQUE NOT NULL,
				description TEXT,
				image_url TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS user_badges (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				user_pk UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				badge_pk UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
				awarded_at TIMESTAMP NOT NULL DEFAULT NOW(),
				UNIQUE(user_pk, badge_pk)
			);

			CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_pk);
		`,
		Down: `
			DROP TABLE IF EXISTS user_badges;
			DROP TABLE IF EXISTS badges;
		`,
	},
	{
		Version: 9,
		Up: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS schema_migrations;
		`,
	},
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return err
	}

	// Run pending migrations in ascending order by version
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, migration := range sorted {
		if migration.Version <= currentVersion {
			continue
		}

		fmt.Printf("Running migration %d...\n", migration.Version)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		fmt.Printf("Migration %d completed\n", migration.Version)
	}

	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
