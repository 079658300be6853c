package services

import (
	"fmt"
	"os"
	"testing"
	"time"

	"llmdash/internal/config"
	"llmdash/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway sqlite database for one test.
func newTestDB(t *testing.T) (*gorm.DB, *config.Config) {
	t.Helper()

	testDBPath := fmt.Sprintf("%s/llmdash_test_%d.db", os.TempDir(), time.Now().UnixNano())

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
			BcryptCost: 4, // fast hashing for tests
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
