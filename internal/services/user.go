package services

import (
	"errors"

	"llmdash/internal/config"
	"llmdash/internal/models"

	"gorm.io/gorm"
)

var ErrLastAdmin = errors.New("cannot delete the last admin user")

type UserService struct {
	db          *gorm.DB
	authService *AuthService
}

func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{
		db:          db,
		authService: NewAuthService(db, cfg),
	}
}

// GetUsers returns all users
func (s *UserService) GetUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}

	// Clear password hashes
	for i := range users {
		users[i].PasswordHash = ""
	}

	return users, nil
}

// GetUser returns a specific user by ID
func (s *UserService) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.PasswordHash = ""
	return &user, nil
}

// GetUserWithHash returns a user with the password hash intact, for
// current-password verification only.
func (s *UserService) GetUserWithHash(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (s *UserService) CreateUser(username, email, password, role string) (*models.User, error) {
	user, err := s.authService.CreateUser(username, email, password, role)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// UpdateUser updates user information (except password)
func (s *UserService) UpdateUser(id uint, username, email, role string, active bool) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Check if username or email is taken by another user
	if username != user.Username || email != user.Email {
		var existing models.User
		if err := s.db.Where("(username = ? OR email = ?) AND id != ?", username, email, id).First(&existing).Error; err == nil {
			return nil, ErrUserExists
		}
	}

	user.Username = username
	user.Email = email
	user.Role = role
	user.Active = active

	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}

	// Deactivating a user revokes their sessions immediately
	if !active {
		if err := s.db.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return nil, err
		}
	}

	user.PasswordHash = ""
	return &user, nil
}

// UpdatePassword updates user password
func (s *UserService) UpdatePassword(id uint, newPassword string) error {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	hashedPassword, err := s.authService.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashedPassword
	return s.db.Save(&user).Error
}

// DeleteUser deletes a user and cascades to their sessions, so any
// outstanding tokens stop resolving.
func (s *UserService) DeleteUser(id uint) error {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	// Don't allow deleting the last admin user
	var adminCount int64
	s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount)
	if user.Role == models.RoleAdmin && adminCount <= 1 {
		return ErrLastAdmin
	}

	if err := s.db.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
		return err
	}

	return s.db.Delete(&user).Error
}
