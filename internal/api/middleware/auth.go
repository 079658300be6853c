package middleware

import (
	"errors"

	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the session cookie to a user. Unauthenticated
// requests get 401; only a store failure gets 503, so clients can tell
// "not logged in" from "cannot check".
func AuthMiddleware(authService *services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.JSON(401, gin.H{"success": false, "error": "Authentication required"})
			c.Abort()
			return
		}

		user, err := authService.ResolveSession(token)
		if err != nil {
			if errors.Is(err, services.ErrStoreUnavailable) {
				c.JSON(503, gin.H{"success": false, "error": "Service unavailable"})
			} else {
				c.JSON(500, gin.H{"success": false, "error": "Failed to resolve session"})
			}
			c.Abort()
			return
		}
		if user == nil {
			c.JSON(401, gin.H{"success": false, "error": "Invalid or expired session"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("session_token", token)

		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.JSON(401, gin.H{"success": false, "error": "Unauthorized"})
			c.Abort()
			return
		}

		userRole := user.(*models.User).Role
		hasRole := false
		for _, role := range roles {
			if userRole == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			c.JSON(403, gin.H{"success": false, "error": "Forbidden: insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
