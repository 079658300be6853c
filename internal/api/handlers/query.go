package handlers

import (
	"errors"
	"strconv"

	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type QueryHandler struct {
	queryService *services.QueryService
	auditService *services.AuditService
}

func NewQueryHandler(db *gorm.DB) *QueryHandler {
	return &QueryHandler{
		queryService: services.NewQueryService(db),
		auditService: services.NewAuditService(db),
	}
}

type SaveQueryRequest struct {
	Name        string `json:"name" binding:"required"`
	QueryText   string `json:"query_text" binding:"required"`
	Description string `json:"description"`
}

type RecordQueryRequest struct {
	QueryText    string `json:"query_text" binding:"required"`
	RowsAffected int    `json:"rows_affected"`
	DurationMs   int    `json:"duration_ms"`
	Status       string `json:"status" binding:"required,oneof=success error"`
}

// RecordEvent appends a query-history event. These rows are what the
// database analytics domain aggregates.
func (h *QueryHandler) RecordEvent(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	var req RecordQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.queryService.Record(&user.ID, req.QueryText, req.RowsAffected, req.DurationMs, req.Status); err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to record query"})
		return
	}

	c.JSON(201, gin.H{"success": true, "message": "Query recorded"})
}

// GetHistory returns recent query-history events
func (h *QueryHandler) GetHistory(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.queryService.History(limit)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get query history"})
		return
	}

	c.JSON(200, gin.H{"success": true, "history": entries})
}

// ListSaved returns the current user's saved queries
func (h *QueryHandler) ListSaved(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	// Admins see everything, users only their own
	var scope *uint
	if user.Role != models.RoleAdmin {
		scope = &user.ID
	}

	saved, err := h.queryService.List(scope)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get saved queries"})
		return
	}

	c.JSON(200, gin.H{"success": true, "queries": saved})
}

// Save stores a named query for the report builder
func (h *QueryHandler) Save(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	var req SaveQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	saved, err := h.queryService.Save(user.ID, req.Name, req.QueryText, req.Description)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to save query"})
		return
	}

	h.auditService.Record(user.ID, models.AuditQuerySaved, strconv.FormatUint(uint64(saved.ID), 10), saved.Name, c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(201, gin.H{"success": true, "query": saved})
}

// Delete removes a saved query; only the owner or an admin may delete
func (h *QueryHandler) Delete(c *gin.Context) {
	user := c.MustGet("user").(*models.User)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid query ID"})
		return
	}

	saved, err := h.queryService.Get(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrQueryNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "Saved query not found"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to get saved query"})
		return
	}

	if saved.UserID != user.ID && user.Role != models.RoleAdmin {
		c.JSON(403, gin.H{"success": false, "error": "Forbidden: insufficient permissions"})
		return
	}

	if err := h.queryService.Delete(uint(id)); err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to delete saved query"})
		return
	}

	h.auditService.Record(user.ID, models.AuditQueryDeleted, strconv.FormatUint(id, 10), saved.Name, c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(200, gin.H{"success": true, "message": "Saved query deleted"})
}
