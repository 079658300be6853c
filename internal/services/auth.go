package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"llmdash/internal/config"
	"llmdash/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username or email already taken")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// SessionTTL returns the configured session lifetime, defaulting to 7 days.
func (s *AuthService) SessionTTL() time.Duration {
	ttl, err := time.ParseDuration(s.cfg.Session.ExpiresIn)
	if err != nil || ttl <= 0 {
		return 7 * 24 * time.Hour
	}
	return ttl
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Security.BcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// newSessionToken returns 256 bits of hex-encoded randomness. The token
// value is the only credential a session has.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Login verifies credentials against the stored user and, on success,
// creates a session row and returns its token. The identity may be a
// username or an email address.
func (s *AuthService) Login(usernameOrEmail, password, ipAddress, userAgent string) (*models.User, string, error) {
	var user models.User
	err := s.db.Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", ErrStoreUnavailable
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	if !user.Active {
		return nil, "", ErrAccountInactive
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, "", err
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.SessionTTL()),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, "", ErrStoreUnavailable
	}

	// A failed timestamp update must not fail an otherwise valid login
	now := time.Now()
	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("Warning: failed to update last login for user %d: %v", user.ID, err)
	}
	user.LastLoginAt = &now

	return &user, token, nil
}

// ResolveSession maps a token to its user. A missing, unknown or expired
// session resolves to (nil, nil) so callers can answer 401; only store
// connectivity failures surface as ErrStoreUnavailable.
func (s *AuthService) ResolveSession(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	var session models.Session
	err := s.db.Where("token = ? AND expires_at > ?", token, time.Now()).Preload("User").First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, ErrStoreUnavailable
	}

	return &session.User, nil
}

// Logout deletes the session row. Idempotent: reports whether a row was
// removed, never errors on an unknown token.
func (s *AuthService) Logout(token string) bool {
	result := s.db.Where("token = ?", token).Delete(&models.Session{})
	return result.Error == nil && result.RowsAffected > 0
}

// Register creates a regular active user with the given credentials.
func (s *AuthService) Register(username, email, password string) (*models.User, error) {
	var existing models.User
	if err := s.db.Where("username = ? OR email = ?", username, email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		Active:       true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// CreateUser creates a new user with an explicit role (admin path).
func (s *AuthService) CreateUser(username, email, password, role string) (*models.User, error) {
	var existing models.User
	if err := s.db.Where("username = ? OR email = ?", username, email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
		Active:       true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// CreateDefaultUser creates the default admin user if the table is empty
func (s *AuthService) CreateDefaultUser() error {
	var count int64
	s.db.Model(&models.User{}).Count(&count)

	if count == 0 {
		_, err := s.CreateUser(
			s.cfg.DefaultUser.Username,
			s.cfg.DefaultUser.Email,
			s.cfg.DefaultUser.Password,
			s.cfg.DefaultUser.Role,
		)
		return err
	}

	return nil
}

// GetSessions returns active sessions for a user.
func (s *AuthService) GetSessions(userID uint) ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Where("user_id = ? AND expires_at > ?", userID, time.Now()).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteExpiredSessions removes expired sessions. Expiry is otherwise
// lazy; this exists for manual housekeeping only.
func (s *AuthService) DeleteExpiredSessions() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}
