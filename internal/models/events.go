package models

import (
	"time"
)

// Event rows are immutable once written and consumed only by the
// analytics aggregator and the history endpoints.

type LLMRequest struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           *uint     `json:"user_id" gorm:"index"` // nil for system-generated traffic
	Model            string    `json:"model" gorm:"type:varchar(255)"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	DurationMs       int       `json:"duration_ms"`
	Status           string    `json:"status" gorm:"type:varchar(50)"` // success, error, timeout
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

type DatabaseQuery struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       *uint     `json:"user_id" gorm:"index"`
	QueryText    string    `json:"query_text" gorm:"type:text"`
	RowsAffected int       `json:"rows_affected"`
	DurationMs   int       `json:"duration_ms"`
	Status       string    `json:"status" gorm:"type:varchar(50)"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

type SystemMetric struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryPercent   float64   `json:"memory_percent"`
	MemoryUsedBytes uint64    `json:"memory_used_bytes"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}

type SavedQuery struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	QueryText   string    `json:"query_text" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
