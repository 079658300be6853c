package services

import (
	"llmdash/internal/models"

	"gorm.io/gorm"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends an audit entry. Audit rows are append-only; failures are
// returned but mutations that triggered them are already committed.
func (s *AuditService) Record(userID uint, action, targetID, details, ipAddress, userAgent string) error {
	entry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		TargetID:  targetID,
		Details:   details,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	return s.db.Create(entry).Error
}

// List returns the most recent audit entries, newest first.
func (s *AuditService) List(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []models.AuditLog
	if err := s.db.Order("created_at DESC").Limit(limit).Preload("User").Find(&entries).Error; err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].User.PasswordHash = ""
	}

	return entries, nil
}
