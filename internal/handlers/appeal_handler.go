package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/appeal"
	"github.com/robotoverlord/backend/internal/models"
)

type AppealHandler struct {
	service *appeal.Service
}

func NewAppealHandler(service *appeal.Service) *AppealHandler {
	return &AppealHandler{service: service}
}

// Submit creates a new appeal. Ineligible submissions come back 422 with
// the structured eligibility result so clients can show the exact reason.
func (h *AppealHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.AppealCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	created, eligibility, err := h.service.Submit(userID, &req)
	if err != nil {
		repoError(c, err, "Failed to submit appeal")
		return
	}
	if created == nil {
		c.JSON(http.StatusUnprocessableEntity, eligibility)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// CheckEligibility reports whether the caller may appeal a piece of content
func (h *AppealHandler) CheckEligibility(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	contentType := models.ContentType(c.Query("content_type"))
	contentPK, err := uuid.Parse(c.Query("content_pk"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid content_pk")
		return
	}

	eligibility, err := h.service.CheckEligibility(userID, contentType, contentPK)
	if err != nil {
		repoError(c, err, "Failed to check eligibility")
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// Get returns one appeal; only the appellant or a moderator may read it
func (h *AppealHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(id)
	if err != nil {
		repoError(c, err, "Failed to get appeal")
		return
	}

	c.JSON(http.StatusOK, a)
}

// Restoration returns the content snapshot taken when a sustained appeal
// restored its content
func (h *AppealHandler) Restoration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	version, err := h.service.RestorationVersion(id)
	if err != nil {
		repoError(c, err, "Failed to get restoration version")
		return
	}

	c.JSON(http.StatusOK, version)
}

// ListMine returns the caller's appeals
func (h *AppealHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	status := models.AppealStatus(c.Query("status"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	appeals, err := h.service.ListByUser(userID, status, page, pageSize)
	if err != nil {
		repoError(c, err, "Failed to list appeals")
		return
	}

	c.JSON(http.StatusOK, appeals)
}

// Withdraw lets the appellant retract an open appeal
func (h *AppealHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Withdraw(id, userID); err != nil {
		repoError(c, err, "Failed to withdraw appeal")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "denied", "withdrawn": true})
}

// ListQueue returns the moderator review queue, highest priority first
func (h *AppealHandler) ListQueue(c *gin.Context) {
	status := models.AppealStatus(c.Query("status"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	appeals, err := h.service.ListQueue(status, page, pageSize)
	if err != nil {
		repoError(c, err, "Failed to list appeal queue")
		return
	}

	c.JSON(http.StatusOK, appeals)
}

// Assign moves a pending appeal to under_review for the calling moderator
func (h *AppealHandler) Assign(c *gin.Context) {
	reviewerID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Assign(id, reviewerID)
	if err != nil {
		repoError(c, err, "Failed to assign appeal")
		return
	}

	c.JSON(http.StatusOK, a)
}

// Release returns an under_review appeal to pending
func (h *AppealHandler) Release(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Release(id); err != nil {
		repoError(c, err, "Failed to release appeal")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}

// Decide resolves an under_review appeal
func (h *AppealHandler) Decide(c *gin.Context) {
	reviewerID, ok := currentUser(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var decision models.AppealDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.service.Decide(id, reviewerID, &decision)
	if err != nil {
		repoError(c, err, "Failed to decide appeal")
		return
	}

	c.JSON(http.StatusOK, a)
}

// Stats returns appeal system statistics
func (h *AppealHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats()
	if err != nil {
		repoError(c, err, "Failed to get appeal stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ContentHistory returns the version trail for a piece of content
func (h *AppealHandler) ContentHistory(c *gin.Context) {
	contentType := models.ContentType(c.Param("content_type"))
	contentPK, ok := pathUUID(c, "content_id")
	if !ok {
		return
	}

	versions, err := h.service.History(contentType, contentPK)
	if err != nil {
		repoError(c, err, "Failed to get content history")
		return
	}

	c.JSON(http.StatusOK, versions)
}
