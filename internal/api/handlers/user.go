package handlers

import (
	"errors"
	"strconv"

	"llmdash/internal/config"
	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	userService  *services.UserService
	auditService *services.AuditService
}

func NewUserHandler(db *gorm.DB, cfg *config.Config) *UserHandler {
	return &UserHandler{
		userService:  services.NewUserService(db, cfg),
		auditService: services.NewAuditService(db),
	}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin user"`
}

type UpdateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role" binding:"required,oneof=admin user"`
	Active   *bool  `json:"active" binding:"required"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

func actorID(c *gin.Context) uint {
	if user, exists := c.Get("user"); exists {
		return user.(*models.User).ID
	}
	return 0
}

// GetUsers returns all users
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.userService.GetUsers()
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get users"})
		return
	}

	c.JSON(200, gin.H{"success": true, "users": users})
}

// GetUser returns a specific user
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	user, err := h.userService.GetUser(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "User not found"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to get user"})
		return
	}

	c.JSON(200, gin.H{"success": true, "user": user})
}

// CreateUser creates a new user
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.userService.CreateUser(req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(400, gin.H{"success": false, "error": "Username or email already taken"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to create user"})
		return
	}

	h.auditService.Record(actorID(c), models.AuditUserCreated, strconv.FormatUint(uint64(user.ID), 10), user.Username, c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(201, gin.H{"success": true, "user": user})
}

// UpdateUser updates a user
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.userService.UpdateUser(uint(id), req.Username, req.Email, req.Role, *req.Active)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "User not found"})
			return
		}
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(400, gin.H{"success": false, "error": "Username or email already taken"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to update user"})
		return
	}

	h.auditService.Record(actorID(c), models.AuditUserUpdated, strconv.FormatUint(uint64(user.ID), 10), user.Username, c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(200, gin.H{"success": true, "user": user})
}

// UpdatePassword updates a user's password (admin path)
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.userService.UpdatePassword(uint(id), req.Password); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "User not found"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to update password"})
		return
	}

	h.auditService.Record(actorID(c), models.AuditPasswordChanged, strconv.FormatUint(id, 10), "", c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(200, gin.H{"success": true, "message": "Password updated successfully"})
}

// DeleteUser deletes a user and their sessions
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	if err := h.userService.DeleteUser(uint(id)); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(404, gin.H{"success": false, "error": "User not found"})
			return
		}
		if errors.Is(err, services.ErrLastAdmin) {
			c.JSON(400, gin.H{"success": false, "error": "Cannot delete the last admin user"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to delete user"})
		return
	}

	h.auditService.Record(actorID(c), models.AuditUserDeleted, strconv.FormatUint(id, 10), "", c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(200, gin.H{"success": true, "message": "User deleted successfully"})
}
