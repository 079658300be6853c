package handlers

import (
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MonitoringHandler struct {
	systemService *services.SystemService
}

func NewMonitoringHandler(db *gorm.DB) *MonitoringHandler {
	return &MonitoringHandler{
		systemService: services.NewSystemService(db),
	}
}

// GetStats returns current system statistics
func (h *MonitoringHandler) GetStats(c *gin.Context) {
	stats, err := h.systemService.GetStats()
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get system stats"})
		return
	}

	c.JSON(200, gin.H{"success": true, "stats": stats})
}

// Snapshot records current stats as a system metric event
func (h *MonitoringHandler) Snapshot(c *gin.Context) {
	if err := h.systemService.Snapshot(); err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to record snapshot"})
		return
	}

	c.JSON(201, gin.H{"success": true, "message": "Snapshot recorded"})
}
