package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"llmdash/internal/config"
	"llmdash/internal/models"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB initializes a test database
func setupTestDB(t *testing.T) (*gorm.DB, *config.Config) {
	t.Helper()

	testDBPath := fmt.Sprintf("%s/llmdash_routes_test_%d.db", os.TempDir(), time.Now().UnixNano())

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: testDBPath,
			},
		},
		Session: config.SessionConfig{
			ExpiresIn:  "168h",
			CookieName: "session_id",
		},
		Security: config.SecurityConfig{
			BcryptCost: 4,
		},
		Export: config.ExportConfig{
			Secret:    "test-export-secret",
			ExpiresIn: "5m",
			Issuer:    "llmdash-test",
		},
	}

	db, err := models.Open(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		os.Remove(testDBPath)
	})

	return db, cfg
}

// createTestUser creates a test user and returns it
func createTestUser(t *testing.T, authService *services.AuthService, username, email, password, role string) *models.User {
	t.Helper()
	user, err := authService.CreateUser(username, email, password, role)
	require.NoError(t, err)
	return user
}

// sessionCookie logs a user in through the service and returns the cookie
func sessionCookie(t *testing.T, cfg *config.Config, authService *services.AuthService, username, password string) *http.Cookie {
	t.Helper()
	_, token, err := authService.Login(username, password, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	return &http.Cookie{Name: cfg.Session.CookieName, Value: token}
}

// setupTestRouter creates a test router with routes
func setupTestRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, db, cfg)
	return r
}

func doJSON(router *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRoutes(t *testing.T) {
	db, cfg := setupTestDB(t)
	authService := services.NewAuthService(db, cfg)
	router := setupTestRouter(db, cfg)

	createTestUser(t, authService, "admin", "admin@example.com", "adminpass1", "admin")

	t.Run("GET /api/health", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/health", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("POST /api/auth/login - Success sets cookie, no token in body", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", map[string]string{
			"username_or_email": "admin",
			"password":          "adminpass1",
		}, nil)

		assert.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		var sessionValue string
		for _, c := range cookies {
			if c.Name == cfg.Session.CookieName {
				sessionValue = c.Value
				assert.True(t, c.HttpOnly)
			}
		}
		require.NotEmpty(t, sessionValue)
		assert.NotContains(t, w.Body.String(), sessionValue)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, true, response["success"])
		assert.Contains(t, response, "user")
	})

	t.Run("POST /api/auth/login - Wrong password", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", map[string]string{
			"username_or_email": "admin",
			"password":          "wrongpass",
		}, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/auth/login - Login by email", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login", map[string]string{
			"username_or_email": "admin@example.com",
			"password":          "adminpass1",
		}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("GET /api/auth/me - Unauthorized without cookie", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/auth/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/auth/me - Success with cookie", func(t *testing.T) {
		cookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")
		w := doJSON(router, "GET", "/api/auth/me", nil, cookie)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		user := response["user"].(map[string]interface{})
		assert.Equal(t, "admin", user["username"])
	})

	t.Run("POST /api/auth/logout - Session stops resolving", func(t *testing.T) {
		cookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")

		w := doJSON(router, "POST", "/api/auth/logout", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "GET", "/api/auth/me", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/auth/register - Success and duplicate", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/register", map[string]string{
			"username": "newbie",
			"email":    "newbie@example.com",
			"password": "newbiepass1",
		}, nil)
		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		user := response["user"].(map[string]interface{})
		assert.Equal(t, "user", user["role"])

		w = doJSON(router, "POST", "/api/auth/register", map[string]string{
			"username": "newbie",
			"email":    "other@example.com",
			"password": "newbiepass1",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GET /api/auth/me - Service unavailable when store is down", func(t *testing.T) {
		downDB, downCfg := setupTestDB(t)
		downAuth := services.NewAuthService(downDB, downCfg)
		downRouter := setupTestRouter(downDB, downCfg)

		createTestUser(t, downAuth, "offline", "offline@example.com", "offlinepass1", "user")
		cookie := sessionCookie(t, downCfg, downAuth, "offline", "offlinepass1")

		sqlDB, err := downDB.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		// Store failure is 503, never 401: the client must be able to
		// tell "not logged in" from "cannot check"
		w := doJSON(downRouter, "GET", "/api/auth/me", nil, cookie)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("POST /api/auth/password - Wrong current password", func(t *testing.T) {
		cookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")
		w := doJSON(router, "POST", "/api/auth/password", map[string]string{
			"current_password": "nope",
			"new_password":     "whatever123",
		}, cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestUserRoutes(t *testing.T) {
	db, cfg := setupTestDB(t)
	authService := services.NewAuthService(db, cfg)
	router := setupTestRouter(db, cfg)

	createTestUser(t, authService, "admin", "admin@example.com", "adminpass1", "admin")
	createTestUser(t, authService, "user", "user@example.com", "userpass1", "user")

	adminCookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")
	userCookie := sessionCookie(t, cfg, authService, "user", "userpass1")

	t.Run("GET /api/users - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/users", nil, userCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("GET /api/users - Unauthorized without cookie", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/users", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/users - Success with admin", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/users", nil, adminCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response, "users")
		assert.NotContains(t, w.Body.String(), "password_hash")
	})

	t.Run("POST /api/users - Create and duplicate", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/users", map[string]string{
			"username": "analyst",
			"email":    "analyst@example.com",
			"password": "analystpass1",
			"role":     "user",
		}, adminCookie)
		assert.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "POST", "/api/users", map[string]string{
			"username": "analyst",
			"email":    "analyst2@example.com",
			"password": "analystpass1",
			"role":     "user",
		}, adminCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("POST /api/users - Invalid role rejected", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/users", map[string]string{
			"username": "superuser",
			"email":    "super@example.com",
			"password": "superpass1",
			"role":     "superadmin",
		}, adminCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GET /api/users/:id - Not found", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/users/99999", nil, adminCookie)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/users/:id - Invalid ID", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/users/invalid", nil, adminCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DELETE /api/users/:id - Cascades to sessions", func(t *testing.T) {
		victim := createTestUser(t, authService, "victim", "victim@example.com", "victimpass1", "user")
		victimCookie := sessionCookie(t, cfg, authService, "victim", "victimpass1")

		w := doJSON(router, "DELETE", fmt.Sprintf("/api/users/%d", victim.ID), nil, adminCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		// Prior session token no longer resolves
		w = doJSON(router, "GET", "/api/auth/me", nil, victimCookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("DELETE /api/users/:id - Last admin refused with clean message", func(t *testing.T) {
		var admin models.User
		require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)

		w := doJSON(router, "DELETE", fmt.Sprintf("/api/users/%d", admin.ID), nil, adminCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Cannot delete the last admin user", response["error"])
	})

	t.Run("DELETE /api/users/:id - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "DELETE", "/api/users/1", nil, userCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Mutations appear in audit log", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/audit", nil, adminCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Entries []models.AuditLog `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

		actions := map[string]bool{}
		for _, e := range response.Entries {
			actions[e.Action] = true
		}
		assert.True(t, actions[models.AuditUserCreated])
		assert.True(t, actions[models.AuditUserDeleted])
	})

	t.Run("GET /api/audit - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/audit", nil, userCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAnalyticsRoutes(t *testing.T) {
	db, cfg := setupTestDB(t)
	authService := services.NewAuthService(db, cfg)
	router := setupTestRouter(db, cfg)

	createTestUser(t, authService, "viewer", "viewer@example.com", "viewerpass1", "user")
	cookie := sessionCookie(t, cfg, authService, "viewer", "viewerpass1")

	t.Run("GET /api/analytics/llm - Empty window is empty, not synthetic", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/analytics/llm?timeRange=1h", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success   bool              `json:"success"`
			Synthetic bool              `json:"synthetic"`
			Data      []services.Bucket `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.False(t, response.Synthetic)
		assert.Empty(t, response.Data)
	})

	t.Run("GET /api/analytics/llm - Series with data", func(t *testing.T) {
		require.NoError(t, db.Create(&models.LLMRequest{
			Model: "llama3", PromptTokens: 10, CompletionTokens: 20, DurationMs: 150,
			Status: "success", CreatedAt: time.Now().Add(-5 * time.Minute),
		}).Error)

		w := doJSON(router, "GET", "/api/analytics/llm?timeRange=1h", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Synthetic bool              `json:"synthetic"`
			Data      []services.Bucket `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Synthetic)
		require.Len(t, response.Data, 1)
		assert.Equal(t, int64(1), response.Data[0].Count)
	})

	t.Run("GET /api/analytics/llm/summary", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/analytics/llm/summary?timeRange=1h", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data services.Summary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "llm", response.Data.Domain)
	})

	t.Run("GET /api/analytics/:domain - Unknown domain", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/analytics/bogus?timeRange=1h", nil, cookie)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/analytics/llm - Unauthorized without cookie", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/analytics/llm", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/analytics/llm - Unknown timeRange uses 1h fallback", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/analytics/llm?timeRange=whatever", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestQueryRoutes(t *testing.T) {
	db, cfg := setupTestDB(t)
	authService := services.NewAuthService(db, cfg)
	router := setupTestRouter(db, cfg)

	createTestUser(t, authService, "admin", "admin@example.com", "adminpass1", "admin")
	createTestUser(t, authService, "owner", "owner@example.com", "ownerpass1", "user")
	createTestUser(t, authService, "other", "other@example.com", "otherpass1", "user")

	adminCookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")
	ownerCookie := sessionCookie(t, cfg, authService, "owner", "ownerpass1")
	otherCookie := sessionCookie(t, cfg, authService, "other", "otherpass1")

	var savedID float64

	t.Run("POST /api/queries - Save", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/queries", map[string]string{
			"name":       "slow queries",
			"query_text": "SELECT * FROM database_queries WHERE duration_ms > 1000",
		}, ownerCookie)
		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		savedID = response["query"].(map[string]interface{})["id"].(float64)
	})

	t.Run("GET /api/queries - Scoped to owner", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/queries", nil, otherCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Queries []models.SavedQuery `json:"queries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Empty(t, response.Queries)

		w = doJSON(router, "GET", "/api/queries", nil, ownerCookie)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Queries, 1)
	})

	t.Run("DELETE /api/queries/:id - Forbidden for non-owner", func(t *testing.T) {
		w := doJSON(router, "DELETE", fmt.Sprintf("/api/queries/%.0f", savedID), nil, otherCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("DELETE /api/queries/:id - Admin may delete", func(t *testing.T) {
		w := doJSON(router, "DELETE", fmt.Sprintf("/api/queries/%.0f", savedID), nil, adminCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "DELETE", fmt.Sprintf("/api/queries/%.0f", savedID), nil, adminCookie)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("POST then GET /api/queries/history", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/queries/history", map[string]interface{}{
			"query_text":    "SELECT 1",
			"rows_affected": 1,
			"duration_ms":   3,
			"status":        "success",
		}, ownerCookie)
		assert.Equal(t, http.StatusCreated, w.Code)

		w = doJSON(router, "GET", "/api/queries/history", nil, ownerCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			History []models.DatabaseQuery `json:"history"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.History, 1)
		assert.Equal(t, "SELECT 1", response.History[0].QueryText)
	})

	t.Run("POST /api/queries/history - Invalid status rejected", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/queries/history", map[string]interface{}{
			"query_text": "SELECT 1",
			"status":     "maybe",
		}, ownerCookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportRoutes(t *testing.T) {
	db, cfg := setupTestDB(t)
	authService := services.NewAuthService(db, cfg)
	router := setupTestRouter(db, cfg)

	createTestUser(t, authService, "admin", "admin@example.com", "adminpass1", "admin")
	createTestUser(t, authService, "user", "user@example.com", "userpass1", "user")

	adminCookie := sessionCookie(t, cfg, authService, "admin", "adminpass1")
	userCookie := sessionCookie(t, cfg, authService, "user", "userpass1")

	t.Run("POST /api/exports/users - Forbidden for regular user", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/exports/users", nil, userCookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("POST /api/exports/users then download", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/exports/users", nil, adminCookie)
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		token := response["token"].(string)
		require.NotEmpty(t, token)

		w = doJSON(router, "GET", "/api/exports/download?token="+token, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, w.Body.String(), "admin@example.com")
	})

	t.Run("POST /api/exports/bogus - Unknown domain", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/exports/bogus", nil, adminCookie)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/exports/download - Bad token", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/exports/download?token=garbage", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
