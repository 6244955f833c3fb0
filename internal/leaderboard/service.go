package leaderboard

import (
	"log"

	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/models"
	"github.com/robotoverlord/backend/internal/repository"
)

const defaultPageSize = 50

type Service struct {
	repo *repository.LeaderboardRepository
}

func NewService(repo *repository.LeaderboardRepository) *Service {
	return &Service{repo: repo}
}

// Refresh rebuilds the ranking projection from the users table
func (s *Service) Refresh() (int, error) {
	rebuilt, err := s.repo.Refresh()
	if err != nil {
		return 0, err
	}
	log.Printf("Leaderboard refreshed with %d entries", rebuilt)
	return rebuilt, nil
}

// TrimPage drops the probe entry used for has-next detection and derives the
// next cursor from the last entry kept.
func TrimPage(entries []models.LeaderboardEntry, limit int) ([]models.LeaderboardEntry, bool, *models.LeaderboardCursor) {
	hasNext := len(entries) > limit
	if hasNext {
		entries = entries[:limit]
	}

	var next *models.LeaderboardCursor
	if hasNext && len(entries) > 0 {
		last := entries[len(entries)-1]
		next = &models.LeaderboardCursor{
			Rank:         last.Rank,
			UserPK:       last.UserPK,
			LoyaltyScore: last.LoyaltyScore,
		}
	}

	return entries, hasNext, next
}

// GetPage returns one cursor-paginated page. A cursor issued before a
// refresh may skip or repeat entries; pages are snapshots, not a serialized
// scan of a frozen ranking.
func (s *Service) GetPage(cursorStr string, filters models.LeaderboardFilters, limit int, currentUser *uuid.UUID) (*models.LeaderboardPage, error) {
	if limit < 1 || limit > 200 {
		limit = defaultPageSize
	}

	var cursor *models.LeaderboardCursor
	if cursorStr != "" {
		decoded, err := models.DecodeCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		cursor = &decoded
	}

	entries, err := s.repo.Page(cursor, filters, limit)
	if err != nil {
		return nil, err
	}

	entries, hasNext, next := TrimPage(entries, limit)

	total, err := s.repo.Count(filters)
	if err != nil {
		return nil, err
	}

	if err := s.attachBadges(entries); err != nil {
		log.Printf("Failed to load leaderboard badges: %v", err)
	}

	if currentUser != nil {
		for i := range entries {
			if entries[i].UserPK == *currentUser {
				entries[i].IsCurrentUser = true
			}
		}
	}

	lastUpdated, err := s.repo.LastRefreshedAt()
	if err != nil {
		return nil, err
	}

	page := &models.LeaderboardPage{
		Entries:     entries,
		TotalUsers:  total,
		LastUpdated: lastUpdated,
		Pagination: models.PaginationInfo{
			Limit:       limit,
			HasNext:     hasNext,
			HasPrevious: cursor != nil,
			TotalCount:  total,
		},
	}
	if next != nil {
		encoded := next.Encode()
		page.Pagination.NextCursor = &encoded
	}

	return page, nil
}

// GetUserRank looks up a single user's position
func (s *Service) GetUserRank(userPK uuid.UUID) (*models.UserRankLookup, error) {
	return s.repo.GetUserRank(userPK)
}

// GetNearby returns the entries surrounding a user's rank
func (s *Service) GetNearby(userPK uuid.UUID, window int) ([]models.LeaderboardEntry, error) {
	if window < 1 || window > 50 {
		window = 5
	}
	entries, err := s.repo.Nearby(userPK, window)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].UserPK == userPK {
			entries[i].IsCurrentUser = true
		}
	}
	return entries, nil
}

// GetTop returns the first n entries
func (s *Service) GetTop(n int) ([]models.LeaderboardEntry, error) {
	if n < 1 || n > 100 {
		n = 10
	}
	return s.repo.TopUsers(n)
}

// GetPercentileRange returns entries inside a percentile band
func (s *Service) GetPercentileRange(min, max float64, limit int) ([]models.LeaderboardEntry, error) {
	if min < 0 || max > 1 || min >= max {
		return nil, models.ErrInvalidState
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.PercentileRange(min, max, limit)
}

// GetRankRange returns the entries holding ranks minRank through maxRank
func (s *Service) GetRankRange(minRank, maxRank int) ([]models.LeaderboardEntry, error) {
	if minRank < 1 || maxRank < minRank || maxRank-minRank >= 500 {
		return nil, models.ErrInvalidState
	}
	return s.repo.RankRange(minRank, maxRank)
}

// Search finds users by fuzzy username match
func (s *Service) Search(username string, limit int) ([]models.LeaderboardSearchResult, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	return s.repo.Search(username, limit)
}

// Stats summarizes the projection
func (s *Service) Stats() (*models.LeaderboardStats, error) {
	return s.repo.Stats()
}

func (s *Service) attachBadges(entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pks := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		pks[i] = e.UserPK
	}

	badges, err := s.repo.BadgesFor(pks)
	if err != nil {
		return err
	}

	for i := range entries {
		entries[i].Badges = badges[entries[i].UserPK]
	}
	return nil
}
