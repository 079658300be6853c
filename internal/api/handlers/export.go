package handlers

import (
	"errors"
	"fmt"

	"llmdash/internal/config"
	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ExportHandler struct {
	exportService *services.ExportService
	auditService  *services.AuditService
}

func NewExportHandler(db *gorm.DB, cfg *config.Config) *ExportHandler {
	return &ExportHandler{
		exportService: services.NewExportService(db, cfg),
		auditService:  services.NewAuditService(db),
	}
}

// Issue mints a short-lived download token for an export domain
func (h *ExportHandler) Issue(c *gin.Context) {
	domain := c.Param("domain")

	token, err := h.exportService.IssueToken(domain)
	if err != nil {
		if errors.Is(err, services.ErrUnknownExport) {
			c.JSON(404, gin.H{"success": false, "error": "Unknown export domain"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to issue export token"})
		return
	}

	if user, exists := c.Get("user"); exists {
		u := user.(*models.User)
		h.auditService.Record(u.ID, models.AuditDataExported, domain, "", c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(200, gin.H{
		"success": true,
		"token":   token,
		"url":     fmt.Sprintf("/api/exports/download?token=%s", token),
	})
}

// Download streams the CSV for a previously issued token. The token is
// the only credential; the link works without a session cookie.
func (h *ExportHandler) Download(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(401, gin.H{"success": false, "error": "Export token required"})
		return
	}

	domain, err := h.exportService.VerifyToken(tokenString)
	if err != nil {
		c.JSON(401, gin.H{"success": false, "error": "Invalid or expired export token"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", domain))

	if err := h.exportService.WriteCSV(domain, c.Writer); err != nil {
		// Headers are already out; nothing sensible left to send
		c.Status(500)
	}
}
