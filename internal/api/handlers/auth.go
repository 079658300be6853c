package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"llmdash/internal/config"
	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService  *services.AuthService
	userService  *services.UserService
	auditService *services.AuditService
	cfg          *config.Config
}

func NewAuthHandler(authService *services.AuthService, userService *services.UserService, auditService *services.AuditService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		userService:  userService,
		auditService: auditService,
		cfg:          cfg,
	}
}

type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// setSessionCookie attaches the opaque session token as an HTTP-only
// strict-same-site cookie. The token never appears in a response body.
func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cfg.Session.CookieName, token, maxAge, "/", "", h.cfg.Session.CookieSecure, true)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	user, token, err := h.authService.Login(req.UsernameOrEmail, req.Password, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountInactive):
			c.JSON(401, gin.H{"success": false, "error": "Account is inactive"})
		case errors.Is(err, services.ErrStoreUnavailable):
			c.JSON(503, gin.H{"success": false, "error": "Service unavailable"})
		default:
			c.JSON(401, gin.H{"success": false, "error": "Invalid credentials"})
		}
		return
	}

	h.setSessionCookie(c, token, int(h.authService.SessionTTL().Seconds()))
	h.auditService.Record(user.ID, models.AuditUserLogin, "", "", c.ClientIP(), c.GetHeader("User-Agent"))

	user.PasswordHash = ""
	c.JSON(200, gin.H{"success": true, "user": user})
}

// Register handles self-registration; new accounts always get the user role
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.authService.Register(req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(400, gin.H{"success": false, "error": "Username or email already taken"})
			return
		}
		c.JSON(500, gin.H{"success": false, "error": "Failed to register"})
		return
	}

	h.auditService.Record(user.ID, models.AuditUserRegistered, strconv.FormatUint(uint64(user.ID), 10), user.Username, c.ClientIP(), c.GetHeader("User-Agent"))

	user.PasswordHash = ""
	c.JSON(201, gin.H{"success": true, "user": user})
}

// Logout handles user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString("session_token")
	h.authService.Logout(token)
	h.setSessionCookie(c, "", -1)

	if user, exists := c.Get("user"); exists {
		u := user.(*models.User)
		h.auditService.Record(u.ID, models.AuditUserLogout, "", "", c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(200, gin.H{"success": true, "message": "Logged out successfully"})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	u := user.(*models.User)
	u.PasswordHash = ""
	c.JSON(200, gin.H{"success": true, "user": u})
}

// ChangePassword updates the current user's own password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}
	u := user.(*models.User)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	fresh, err := h.userService.GetUserWithHash(u.ID)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to load user"})
		return
	}

	if !h.authService.VerifyPassword(fresh.PasswordHash, req.CurrentPassword) {
		c.JSON(401, gin.H{"success": false, "error": "Current password is incorrect"})
		return
	}

	if err := h.userService.UpdatePassword(u.ID, req.NewPassword); err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to update password"})
		return
	}

	h.auditService.Record(u.ID, models.AuditPasswordChanged, strconv.FormatUint(uint64(u.ID), 10), "", c.ClientIP(), c.GetHeader("User-Agent"))

	c.JSON(200, gin.H{"success": true, "message": "Password updated successfully"})
}

// GetSessions returns active sessions for current user
func (h *AuthHandler) GetSessions(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	u := user.(*models.User)
	sessions, err := h.authService.GetSessions(u.ID)
	if err != nil {
		c.JSON(500, gin.H{"success": false, "error": "Failed to get sessions"})
		return
	}

	c.JSON(200, gin.H{"success": true, "sessions": sessions})
}
