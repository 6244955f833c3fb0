package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robotoverlord/backend/internal/models"
	"github.com/robotoverlord/backend/internal/queue"
)

type QueueHandler struct {
	scheduler *queue.Scheduler
}

func NewQueueHandler(scheduler *queue.Scheduler) *QueueHandler {
	return &QueueHandler{scheduler: scheduler}
}

func parseScope(c *gin.Context) (models.QueueScope, bool) {
	scope := models.QueueScope(c.Param("scope"))
	switch scope {
	case models.ScopeTopicCreation, models.ScopePostModeration, models.ScopeMessageModeration:
		return scope, true
	}
	ErrorResponse(c, http.StatusBadRequest, "Unknown queue scope")
	return "", false
}

type enqueueRequest struct {
	ContentPK   uuid.UUID  `json:"content_pk" binding:"required"`
	TopicPK     *uuid.UUID `json:"topic_pk,omitempty"`
	SenderPK    *uuid.UUID `json:"sender_pk,omitempty"`
	RecipientPK *uuid.UUID `json:"recipient_pk,omitempty"`
	AuthorPK    uuid.UUID  `json:"author_pk" binding:"required"`
}

// Enqueue admits content into a moderation queue
func (h *QueueHandler) Enqueue(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}

	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var item *models.QueueItem
	var err error
	switch scope {
	case models.ScopeTopicCreation:
		item, err = h.scheduler.EnqueueTopic(req.ContentPK, req.AuthorPK)
	case models.ScopePostModeration:
		if req.TopicPK == nil {
			ErrorResponse(c, http.StatusBadRequest, "topic_pk required for post queue")
			return
		}
		item, err = h.scheduler.EnqueuePost(req.ContentPK, *req.TopicPK, req.AuthorPK)
	case models.ScopeMessageModeration:
		if req.SenderPK == nil || req.RecipientPK == nil {
			ErrorResponse(c, http.StatusBadRequest, "sender_pk and recipient_pk required for message queue")
			return
		}
		item, err = h.scheduler.EnqueueMessage(req.ContentPK, *req.SenderPK, *req.RecipientPK)
	}
	if err != nil {
		repoError(c, err, "Failed to enqueue")
		return
	}

	c.JSON(http.StatusCreated, item)
}

type claimRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	ScopeKey string `json:"scope_key,omitempty"`
}

// Claim atomically hands the next pending item to a worker
func (h *QueueHandler) Claim(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.scheduler.ClaimNext(scope, req.ScopeKey, req.WorkerID)
	if err != nil {
		repoError(c, err, "Failed to claim item")
		return
	}

	c.JSON(http.StatusOK, claimBody(item))
}

// claimBody shapes the claim response. An empty queue yields a null item
// with a 200, distinct from the 404 a missing resource gets.
func claimBody(item *models.QueueItem) gin.H {
	if item == nil {
		return gin.H{"item": nil}
	}
	return gin.H{"item": item}
}

type completeRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

// Complete finishes a claimed item
func (h *QueueHandler) Complete(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.scheduler.Complete(scope, id, req.WorkerID); err != nil {
		repoError(c, err, "Failed to complete item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// Release returns a claimed item to pending
func (h *QueueHandler) Release(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduler.Release(scope, id); err != nil {
		repoError(c, err, "Failed to release item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}

// Position returns an item's live position in its partition
func (h *QueueHandler) Position(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	position, err := h.scheduler.Position(scope, id)
	if err != nil {
		repoError(c, err, "Failed to get position")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "position": position})
}

// Status returns the live queue entry for a piece of content
func (h *QueueHandler) Status(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}
	contentPK, ok := pathUUID(c, "content_id")
	if !ok {
		return
	}

	item, err := h.scheduler.Status(scope, contentPK)
	if err != nil {
		repoError(c, err, "Failed to get queue status")
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListPending returns the head of a queue in serving order
func (h *QueueHandler) ListPending(c *gin.Context) {
	scope, ok := parseScope(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	scopeKey := c.Query("scope_key")

	items, err := h.scheduler.ListPending(scope, scopeKey, limit)
	if err != nil {
		repoError(c, err, "Failed to list pending items")
		return
	}

	c.JSON(http.StatusOK, items)
}

// Overview summarizes every queue scope for moderator tooling
func (h *QueueHandler) Overview(c *gin.Context) {
	overviews, err := h.scheduler.OverviewAll()
	if err != nil {
		repoError(c, err, "Failed to get queue overview")
		return
	}

	c.JSON(http.StatusOK, overviews)
}

// Recompute refreshes position bookkeeping across all scopes on demand.
// The worker runs the same recompute on a timer.
func (h *QueueHandler) Recompute(c *gin.Context) {
	h.scheduler.RecomputePositions()
	c.JSON(http.StatusOK, gin.H{"message": "Queue positions recomputed"})
}
