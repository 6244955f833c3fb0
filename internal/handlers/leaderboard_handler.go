package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/leaderboard"
	"github.com/robotoverlord/backend/internal/models"
)

type LeaderboardHandler struct {
	service *leaderboard.Service
}

func NewLeaderboardHandler(service *leaderboard.Service) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// GetPage returns one cursor-paginated leaderboard page
func (h *LeaderboardHandler) GetPage(c *gin.Context) {
	var filters models.LeaderboardFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	cursor := c.Query("cursor")

	var current *uuid.UUID
	if id, ok := currentUser(c); ok {
		current = &id
	}

	page, err := h.service.GetPage(cursor, filters, limit, current)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetUserRank returns one user's position
func (h *LeaderboardHandler) GetUserRank(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	lookup, err := h.service.GetUserRank(userPK)
	if err != nil {
		repoError(c, err, "Failed to get user rank")
		return
	}
	if !lookup.Found {
		ErrorResponse(c, http.StatusNotFound, "User not ranked")
		return
	}

	c.JSON(http.StatusOK, lookup)
}

// GetNearby returns entries surrounding a user's rank
func (h *LeaderboardHandler) GetNearby(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	window, _ := strconv.Atoi(c.DefaultQuery("window", "5"))

	entries, err := h.service.GetNearby(userPK, window)
	if err != nil {
		repoError(c, err, "Failed to get nearby entries")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetTop returns the head of the leaderboard
func (h *LeaderboardHandler) GetTop(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("count", "10"))

	entries, err := h.service.GetTop(n)
	if err != nil {
		repoError(c, err, "Failed to get top users")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetPercentileRange returns entries within a percentile band
func (h *LeaderboardHandler) GetPercentileRange(c *gin.Context) {
	min, err := strconv.ParseFloat(c.DefaultQuery("min", "0"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid min")
		return
	}
	max, err := strconv.ParseFloat(c.DefaultQuery("max", "1"), 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid max")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.GetPercentileRange(min, max, limit)
	if err != nil {
		repoError(c, err, "Failed to get percentile range")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetRankRange returns the entries holding a contiguous span of ranks
func (h *LeaderboardHandler) GetRankRange(c *gin.Context) {
	minRank, err := strconv.Atoi(c.DefaultQuery("min", "1"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid min")
		return
	}
	maxRank, err := strconv.Atoi(c.DefaultQuery("max", "50"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid max")
		return
	}

	entries, err := h.service.GetRankRange(minRank, maxRank)
	if err != nil {
		repoError(c, err, "Failed to get rank range")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// Search finds users by fuzzy username match
func (h *LeaderboardHandler) Search(c *gin.Context) {
	username := c.Query("q")
	if username == "" {
		ErrorResponse(c, http.StatusBadRequest, "Query parameter q required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	results, err := h.service.Search(username, limit)
	if err != nil {
		repoError(c, err, "Failed to search leaderboard")
		return
	}

	c.JSON(http.StatusOK, results)
}

// Stats summarizes the ranking projection
func (h *LeaderboardHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats()
	if err != nil {
		repoError(c, err, "Failed to get leaderboard stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Refresh rebuilds the projection on demand
func (h *LeaderboardHandler) Refresh(c *gin.Context) {
	rebuilt, err := h.service.Refresh()
	if err != nil {
		repoError(c, err, "Failed to refresh leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": rebuilt})
}
