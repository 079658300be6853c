package services

import (
	"errors"

	"llmdash/internal/models"

	"gorm.io/gorm"
)

var ErrQueryNotFound = errors.New("saved query not found")

type QueryService struct {
	db *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

// Record appends a query-history event. These rows feed the database
// analytics domain.
func (s *QueryService) Record(userID *uint, queryText string, rowsAffected, durationMs int, status string) error {
	entry := &models.DatabaseQuery{
		UserID:       userID,
		QueryText:    queryText,
		RowsAffected: rowsAffected,
		DurationMs:   durationMs,
		Status:       status,
	}
	return s.db.Create(entry).Error
}

// History returns the most recent query events, newest first.
func (s *QueryService) History(limit int) ([]models.DatabaseQuery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []models.DatabaseQuery
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Save stores a named query for the report builder.
func (s *QueryService) Save(userID uint, name, queryText, description string) (*models.SavedQuery, error) {
	saved := &models.SavedQuery{
		UserID:      userID,
		Name:        name,
		QueryText:   queryText,
		Description: description,
	}
	if err := s.db.Create(saved).Error; err != nil {
		return nil, err
	}
	return saved, nil
}

// List returns saved queries, optionally scoped to one user.
func (s *QueryService) List(userID *uint) ([]models.SavedQuery, error) {
	query := s.db.Order("created_at DESC")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var saved []models.SavedQuery
	if err := query.Find(&saved).Error; err != nil {
		return nil, err
	}
	return saved, nil
}

// Get returns a single saved query.
func (s *QueryService) Get(id uint) (*models.SavedQuery, error) {
	var saved models.SavedQuery
	if err := s.db.First(&saved, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueryNotFound
		}
		return nil, err
	}
	return &saved, nil
}

// Delete removes a saved query. Ownership is enforced by the handler.
func (s *QueryService) Delete(id uint) error {
	result := s.db.Delete(&models.SavedQuery{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQueryNotFound
	}
	return nil
}
