package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry is one row of the derived ranking projection
type LeaderboardEntry struct {
	UserPK               uuid.UUID      `json:"user_pk" db:"user_pk"`
	Username             string         `json:"username" db:"username"`
	LoyaltyScore         int            `json:"loyalty_score" db:"loyalty_score"`
	Rank                 int            `json:"rank" db:"rank"`
	PercentileRank       float64        `json:"percentile_rank" db:"percentile_rank"`
	Badges               []BadgeSummary `json:"badges,omitempty"`
	TopicsCreatedCount   int            `json:"topics_created_count" db:"topics_created_count"`
	TopicCreationEnabled bool           `json:"topic_creation_enabled" db:"topic_creation_enabled"`
	IsCurrentUser        bool           `json:"is_current_user"`
	CreatedAt            time.Time      `json:"created_at" db:"user_created_at"`
}

type BadgeSummary struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	AwardedAt   time.Time `json:"awarded_at" db:"awarded_at"`
}

// LeaderboardCursor resumes a scan strictly after (Rank, UserPK). It is
// never persisted; a refresh between pages invalidates it silently.
type LeaderboardCursor struct {
	Rank         int
	UserPK       uuid.UUID
	LoyaltyScore int
}

// Encode serializes the cursor for API responses
func (c LeaderboardCursor) Encode() string {
	return fmt.Sprintf("%d:%s:%d", c.Rank, c.UserPK, c.LoyaltyScore)
}

// DecodeCursor parses a cursor produced by Encode
func DecodeCursor(s string) (LeaderboardCursor, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return LeaderboardCursor{}, fmt.Errorf("invalid cursor format")
	}

	rank, err := strconv.Atoi(parts[0])
	if err != nil {
		return LeaderboardCursor{}, fmt.Errorf("invalid cursor rank: %w", err)
	}
	userPK, err := uuid.Parse(parts[1])
	if err != nil {
		return LeaderboardCursor{}, fmt.Errorf("invalid cursor user: %w", err)
	}
	score, err := strconv.Atoi(parts[2])
	if err != nil {
		return LeaderboardCursor{}, fmt.Errorf("invalid cursor score: %w", err)
	}

	return LeaderboardCursor{Rank: rank, UserPK: userPK, LoyaltyScore: score}, nil
}

// After reports whether the entry sorts strictly after the cursor under the
// (rank asc, user_pk asc) page order.
func (c LeaderboardCursor) After(e LeaderboardEntry) bool {
	if e.Rank != c.Rank {
		return e.Rank > c.Rank
	}
	return e.UserPK.String() > c.UserPK.String()
}

// LeaderboardFilters narrows leaderboard pages
type LeaderboardFilters struct {
	BadgeName         string `json:"badge_name,omitempty" form:"badge_name"`
	MinLoyaltyScore   *int   `json:"min_loyalty_score,omitempty" form:"min_loyalty_score"`
	MaxLoyaltyScore   *int   `json:"max_loyalty_score,omitempty" form:"max_loyalty_score"`
	MinRank           *int   `json:"min_rank,omitempty" form:"min_rank"`
	MaxRank           *int   `json:"max_rank,omitempty" form:"max_rank"`
	UsernameSearch    string `json:"username_search,omitempty" form:"username_search"`
	TopicCreatorsOnly bool   `json:"topic_creators_only,omitempty" form:"topic_creators_only"`
}

// PaginationInfo is page metadata for leaderboard responses
type PaginationInfo struct {
	Limit       int     `json:"limit"`
	HasNext     bool    `json:"has_next"`
	HasPrevious bool    `json:"has_previous"`
	NextCursor  *string `json:"next_cursor,omitempty"`
	TotalCount  int     `json:"total_count"`
}

// LeaderboardPage is a single page of the ranking
type LeaderboardPage struct {
	Entries     []LeaderboardEntry `json:"entries"`
	Pagination  PaginationInfo     `json:"pagination"`
	TotalUsers  int                `json:"total_users"`
	LastUpdated time.Time          `json:"last_updated"`
}

// UserRankLookup is a single user's position in the ranking
type UserRankLookup struct {
	UserPK         uuid.UUID `json:"user_pk"`
	Username       string    `json:"username"`
	Rank           int       `json:"rank"`
	LoyaltyScore   int       `json:"loyalty_score"`
	PercentileRank float64   `json:"percentile_rank"`
	Found          bool      `json:"found"`
}

// LeaderboardSearchResult is a fuzzy username match
type LeaderboardSearchResult struct {
	UserPK       uuid.UUID `json:"user_pk"`
	Username     string    `json:"username"`
	Rank         int       `json:"rank"`
	LoyaltyScore int       `json:"loyalty_score"`
	MatchScore   float64   `json:"match_score"`
}

// LeaderboardStats summarizes the whole projection
type LeaderboardStats struct {
	TotalUsers            int            `json:"total_users"`
	AverageLoyaltyScore   float64        `json:"average_loyalty_score"`
	MedianLoyaltyScore    int            `json:"median_loyalty_score"`
	Top10PercentThreshold int            `json:"top_10_percent_threshold"`
	ScoreDistribution     map[string]int `json:"score_distribution"`
	LastUpdated           time.Time      `json:"last_updated"`
}
