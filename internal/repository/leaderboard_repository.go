package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/robotoverlord/backend/internal/database"
	"github.com/robotoverlord/backend/internal/models"
)

type LeaderboardRepository struct {
	db *database.DB
}

func NewLeaderboardRepository(db *database.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// advisory lock key for serializing leaderboard rebuilds
const leaderboardRefreshLockKey = 874421

// Refresh rebuilds the whole ranking projection from the users table.
// Concurrent refreshes serialize on a transaction-scoped advisory lock;
// readers see either the old projection or the new one, never a mix.
// Equal scores share a rank (dense ranking), ties ordered by seniority.
func (r *LeaderboardRepository) Refresh() (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1)`, leaderboardRefreshLockKey); err != nil {
		return 0, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM leaderboard_rankings`); err != nil {
		return 0, fmt.Errorf("failed to clear rankings: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO leaderboard_rankings
			(user_pk, username, loyalty_score, rank, percentile_rank,
			 topics_created_count, topic_creation_enabled, user_created_at, calculated_at)
		SELECT id,
		       username,
		       loyalty_score,
		       DENSE_RANK() OVER (ORDER BY loyalty_score DESC),
		       PERCENT_RANK() OVER (ORDER BY loyalty_score DESC),
		       topics_created_count,
		       topic_creation_enabled,
		       created_at,
		       NOW()
		FROM users
		WHERE is_banned = false
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild rankings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit refresh: %w", err)
	}

	return int(rows), nil
}

const leaderboardColumns = `
	user_pk, username, loyalty_score, rank, percentile_rank,
	topics_created_count, topic_creation_enabled, user_created_at
`

func scanLeaderboardRows(rows *sql.Rows) ([]models.LeaderboardEntry, error) {
	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		err := rows.Scan(
			&e.UserPK,
			&e.Username,
			&e.LoyaltyScore,
			&e.Rank,
			&e.PercentileRank,
			&e.TopicsCreatedCount,
			&e.TopicCreationEnabled,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Page returns up to limit+1 entries after the cursor, in (rank, user_pk)
// order. The caller trims the extra entry and uses it as the has-next signal.
func (r *LeaderboardRepository) Page(cursor *models.LeaderboardCursor, filters models.LeaderboardFilters, limit int) ([]models.LeaderboardEntry, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if cursor != nil {
		args = append(args, cursor.Rank, cursor.UserPK)
		where += fmt.Sprintf(" AND (rank, user_pk) > ($%d, $%d)", len(args)-1, len(args))
	}
	if filters.MinLoyaltyScore != nil {
		args = append(args, *filters.MinLoyaltyScore)
		where += fmt.Sprintf(" AND loyalty_score >= $%d", len(args))
	}
	if filters.MaxLoyaltyScore != nil {
		args = append(args, *filters.MaxLoyaltyScore)
		where += fmt.Sprintf(" AND loyalty_score <= $%d", len(args))
	}
	if filters.MinRank != nil {
		args = append(args, *filters.MinRank)
		where += fmt.Sprintf(" AND rank >= $%d", len(args))
	}
	if filters.MaxRank != nil {
		args = append(args, *filters.MaxRank)
		where += fmt.Sprintf(" AND rank <= $%d", len(args))
	}
	if filters.TopicCreatorsOnly {
		where += " AND topic_creation_enabled = true"
	}
	if filters.UsernameSearch != "" {
		args = append(args, filters.UsernameSearch)
		where += fmt.Sprintf(" AND username ILIKE '%%' || $%d || '%%'", len(args))
	}
	if filters.BadgeName != "" {
		args = append(args, filters.BadgeName)
		where += fmt.Sprintf(` AND user_pk IN (
			SELECT ub.user_pk FROM user_badges ub
			JOIN badges b ON b.id = ub.badge_pk
			WHERE b.name = $%d)`, len(args))
	}

	args = append(args, limit+1)
	query := fmt.Sprintf(`
		SELECT %s FROM leaderboard_rankings
		%s
		ORDER BY rank ASC, user_pk ASC
		LIMIT $%d
	`, leaderboardColumns, where, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard page: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardRows(rows)
}

// Count returns how many entries match the filters
func (r *LeaderboardRepository) Count(filters models.LeaderboardFilters) (int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filters.MinLoyaltyScore != nil {
		args = append(args, *filters.MinLoyaltyScore)
		where += fmt.Sprintf(" AND loyalty_score >= $%d", len(args))
	}
	if filters.MaxLoyaltyScore != nil {
		args = append(args, *filters.MaxLoyaltyScore)
		where += fmt.Sprintf(" AND loyalty_score <= $%d", len(args))
	}
	if filters.TopicCreatorsOnly {
		where += " AND topic_creation_enabled = true"
	}

	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM leaderboard_rankings "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	return count, nil
}

// GetUserRank looks up one user's position
func (r *LeaderboardRepository) GetUserRank(userPK uuid.UUID) (*models.UserRankLookup, error) {
	lookup := &models.UserRankLookup{UserPK: userPK}
	err := r.db.QueryRow(`
		SELECT username, rank, loyalty_score, percentile_rank
		FROM leaderboard_rankings
		WHERE user_pk = $1
	`, userPK).Scan(&lookup.Username, &lookup.Rank, &lookup.LoyaltyScore, &lookup.PercentileRank)

	if err == sql.ErrNoRows {
		return lookup, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user rank: %w", err)
	}

	lookup.Found = true
	return lookup, nil
}

// Nearby returns the window of entries around a user's rank
func (r *LeaderboardRepository) Nearby(userPK uuid.UUID, window int) ([]models.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leaderboard_rankings
		WHERE rank BETWEEN
			(SELECT rank - $2 FROM leaderboard_rankings WHERE user_pk = $1)
			AND
			(SELECT rank + $2 FROM leaderboard_rankings WHERE user_pk = $1)
		ORDER BY rank ASC, user_pk ASC
	`, leaderboardColumns)

	rows, err := r.db.Query(query, userPK, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get nearby entries: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardRows(rows)
}

// TopUsers returns the first n entries of the leaderboard
func (r *LeaderboardRepository) TopUsers(n int) ([]models.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leaderboard_rankings
		ORDER BY rank ASC, user_pk ASC
		LIMIT $1
	`, leaderboardColumns)

	rows, err := r.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardRows(rows)
}

// PercentileRange returns entries inside [minPercentile, maxPercentile)
func (r *LeaderboardRepository) PercentileRange(minPercentile, maxPercentile float64, limit int) ([]models.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leaderboard_rankings
		WHERE percentile_rank >= $1 AND percentile_rank < $2
		ORDER BY rank ASC, user_pk ASC
		LIMIT $3
	`, leaderboardColumns)

	rows, err := r.db.Query(query, minPercentile, maxPercentile, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get percentile range: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardRows(rows)
}

// RankRange returns entries with rank in [minRank, maxRank]
func (r *LeaderboardRepository) RankRange(minRank, maxRank int) ([]models.LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM leaderboard_rankings
		WHERE rank >= $1 AND rank <= $2
		ORDER BY rank ASC, user_pk ASC
	`, leaderboardColumns)

	rows, err := r.db.Query(query, minRank, maxRank)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank range: %w", err)
	}
	defer rows.Close()

	return scanLeaderboardRows(rows)
}

// Search finds users by fuzzy username match using trigram similarity
func (r *LeaderboardRepository) Search(username string, limit int) ([]models.LeaderboardSearchResult, error) {
	query := `
		SELECT user_pk, username, rank, loyalty_score, similarity(username, $1) AS match_score
		FROM leaderboard_rankings
		WHERE username % $1 OR username ILIKE '%' || $1 || '%'
		ORDER BY match_score DESC, rank ASC
		LIMIT $2
	`

	rows, err := r.db.Query(query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search leaderboard: %w", err)
	}
	defer rows.Close()

	results := []models.LeaderboardSearchResult{}
	for rows.Next() {
		var res models.LeaderboardSearchResult
		if err := rows.Scan(&res.UserPK, &res.Username, &res.Rank, &res.LoyaltyScore, &res.MatchScore); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, res)
	}

	return results, nil
}

// Stats summarizes the projection
func (r *LeaderboardRepository) Stats() (*models.LeaderboardStats, error) {
	stats := &models.LeaderboardStats{
		ScoreDistribution: map[string]int{},
	}

	var lastUpdated sql.NullTime
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(loyalty_score), 0),
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY loyalty_score), 0)::int,
		       COALESCE(PERCENTILE_CONT(0.9) WITHIN GROUP (ORDER BY loyalty_score), 0)::int,
		       MAX(calculated_at)
		FROM leaderboard_rankings
	`).Scan(
		&stats.TotalUsers,
		&stats.AverageLoyaltyScore,
		&stats.MedianLoyaltyScore,
		&stats.Top10PercentThreshold,
		&lastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard stats: %w", err)
	}
	if lastUpdated.Valid {
		stats.LastUpdated = lastUpdated.Time
	} else {
		stats.LastUpdated = time.Now().UTC()
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
		FROM leaderboard_rankings
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

// LastRefreshedAt returns when the projection was last rebuilt
func (r *LeaderboardRepository) LastRefreshedAt() (time.Time, error) {
	var calculated sql.NullTime
	err := r.db.QueryRow(`SELECT MAX(calculated_at) FROM leaderboard_rankings`).Scan(&calculated)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get refresh time: %w", err)
	}
	if !calculated.Valid {
		return time.Time{}, nil
	}
	return calculated.Time, nil
}

// BadgesFor loads badge summaries for a set of users
func (r *LeaderboardRepository) BadgesFor(userPKs []uuid.UUID) (map[uuid.UUID][]models.BadgeSummary, error) {
	if len(userPKs) == 0 {
		return map[uuid.UUID][]models.BadgeSummary{}, nil
	}

	ids := make([]string, len(userPKs))
	for i, id := range userPKs {
		ids[i] = id.String()
	}

	rows, err := r.db.Query(pqBadgesQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	defer rows.Close()

	badges := map[uuid.UUID][]models.BadgeSummary{}
	for rows.Next() {
		var userPK uuid.UUID
		var b models.BadgeSummary
		if err := rows.Scan(&userPK, &b.ID, &b.Name, &b.Description, &b.ImageURL, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge row: %w", err)
		}
		badges[userPK] = append(badges[userPK], b)
	}

	return badges, nil
}

const pqBadgesQuery = `
	SELECT ub.user_pk, b.id, b.name, b.description, b.image_url, ub.awarded_at
	FROM user_badges ub
	JOIN badges b ON b.id = ub.badge_pk
	WHERE ub.user_pk = ANY($1::uuid[])
	ORDER BY ub.awarded_at ASC
`
