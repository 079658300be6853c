package handlers

import (
	"strconv"

	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{
		auditService: services.NewAuditService(db),
	}
}

// List returns recent audit entries, newest first
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	entries, err := h.auditService.List(limit)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get audit log"})
		return
	}

	c.JSON(200, gin.H{"success": true, "entries": entries})
}
