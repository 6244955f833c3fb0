package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/robotoverlord/backend/internal/loyalty"
	"github.com/robotoverlord/backend/internal/models"
)

type LoyaltyHandler struct {
	service *loyalty.Service
}

func NewLoyaltyHandler(service *loyalty.Service) *LoyaltyHandler {
	return &LoyaltyHandler{service: service}
}

// RecordOutcome ingests a moderation outcome from the moderation pipeline
func (h *LoyaltyHandler) RecordOutcome(c *gin.Context) {
	var req models.RecordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.RecordOutcome(&req)
	if err != nil {
		repoError(c, err, "Failed to record outcome")
		return
	}

	c.JSON(http.StatusCreated, event)
}

// AdjustScore applies an admin manual adjustment
func (h *LoyaltyHandler) AdjustScore(c *gin.Context) {
	var req models.AdjustScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	adminID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	event, err := h.service.AdjustScore(&req, adminID)
	if err != nil {
		repoError(c, err, "Failed to adjust score")
		return
	}

	c.JSON(http.StatusCreated, event)
}

// GetProfile returns a user's loyalty profile
func (h *LoyaltyHandler) GetProfile(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(userPK)
	if err != nil {
		repoError(c, err, "Failed to get profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetBreakdown returns a user's score breakdown
func (h *LoyaltyHandler) GetBreakdown(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	breakdown, err := h.service.GetBreakdown(userPK)
	if err != nil {
		repoError(c, err, "Failed to get breakdown")
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// GetEvents returns a filtered page of a user's ledger
func (h *LoyaltyHandler) GetEvents(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	var filters models.EventFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	events, err := h.service.GetEvents(userPK, filters, page, pageSize)
	if err != nil {
		repoError(c, err, "Failed to get events")
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetHistory returns recent score snapshots for a user
func (h *LoyaltyHandler) GetHistory(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	history, err := h.service.GetHistory(userPK, limit)
	if err != nil {
		repoError(c, err, "Failed to get history")
		return
	}

	c.JSON(http.StatusOK, history)
}

// GetSystemStats returns system-wide score statistics
func (h *LoyaltyHandler) GetSystemStats(c *gin.Context) {
	stats, err := h.service.GetSystemStats()
	if err != nil {
		repoError(c, err, "Failed to get system stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Recalculate replays a user's ledger and repairs the cached score
func (h *LoyaltyHandler) Recalculate(c *gin.Context) {
	userPK, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	score, err := h.service.Recalculate(userPK)
	if err != nil {
		repoError(c, err, "Failed to recalculate score")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_pk": userPK, "loyalty_score": score})
}

// GetThresholds returns the privilege thresholds in force
func (h *LoyaltyHandler) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Thresholds())
}

// ListUsersByScore returns users inside a score band, paginated
func (h *LoyaltyHandler) ListUsersByScore(c *gin.Context) {
	min, _ := strconv.Atoi(c.DefaultQuery("min", "0"))
	max, _ := strconv.Atoi(c.DefaultQuery("max", "1000000"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.service.ListUsersByScore(min, max, limit, offset)
	if err != nil {
		repoError(c, err, "Failed to list users by score")
		return
	}

	c.JSON(http.StatusOK, users)
}
