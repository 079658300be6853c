package models

import (
	"time"
)

// Roles are a closed two-value set; there is no wider permission system.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	Role         string     `json:"role" gorm:"type:varchar(50);default:'user'"` // admin, user
	Active       bool       `json:"active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session is valid while the row exists and ExpiresAt is in the future.
// Logout and user deletion hard-delete rows; expiry is checked lazily at
// lookup time, never by a background sweep.
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"type:varchar(128);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	IPAddress string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Audit action types.
const (
	AuditUserCreated     = "USER_CREATED"
	AuditUserUpdated     = "USER_UPDATED"
	AuditUserDeleted     = "USER_DELETED"
	AuditUserLogin       = "USER_LOGIN"
	AuditUserLogout      = "USER_LOGOUT"
	AuditUserRegistered  = "USER_REGISTERED"
	AuditPasswordChanged = "PASSWORD_CHANGED"
	AuditQuerySaved      = "QUERY_SAVED"
	AuditQueryDeleted    = "QUERY_DELETED"
	AuditDataExported    = "DATA_EXPORTED"
)

type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Action    string    `json:"action" gorm:"type:varchar(50);not null"`
	TargetID  string    `json:"target_id" gorm:"type:varchar(255)"`
	Details   string    `json:"details" gorm:"type:text"`
	IPAddress string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
