package handlers

import (
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AnalyticsHandler struct {
	analyticsService *services.AnalyticsService
}

func NewAnalyticsHandler(db *gorm.DB) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: services.NewAnalyticsService(db),
	}
}

// GetSeries returns the bucketed time series for a domain. A store
// failure degrades to a flagged synthetic payload so the dashboard keeps
// rendering; clients must check the synthetic flag.
func (h *AnalyticsHandler) GetSeries(c *gin.Context) {
	domain := c.Param("domain")
	timeRange := c.DefaultQuery("timeRange", "1h")

	buckets, synthetic, err := h.analyticsService.Aggregate(domain, timeRange)
	if err != nil {
		c.JSON(404, gin.H{"success": false, "error": err.Error()})
		return
	}

	if buckets == nil {
		buckets = []services.Bucket{}
	}

	c.JSON(200, gin.H{
		"success":   true,
		"synthetic": synthetic,
		"data":      buckets,
	})
}

// GetSummary returns period-over-period counts for a domain.
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	domain := c.Param("domain")
	timeRange := c.DefaultQuery("timeRange", "1h")

	summary, synthetic, err := h.analyticsService.Summarize(domain, timeRange)
	if err != nil {
		c.JSON(404, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"success":   true,
		"synthetic": synthetic,
		"data":      summary,
	})
}
