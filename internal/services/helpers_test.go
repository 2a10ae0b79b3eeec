package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JvSe/deep-logs/internal/database"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	PasswordHashCost = bcrypt.MinCost
}

// openTestDB creates a fresh SQLite database in a temp directory
func openTestDB() (*gorm.DB, func(), error) {
	tempDir, err := os.MkdirTemp("", "deep_logs_test_*")
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(database.Options{
		Driver:   database.DriverSQLite,
		Path:     filepath.Join(tempDir, "test.db"),
		LogLevel: "SILENT",
	})
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, nil, err
	}

	cleanup := func() {
		database.Close(db)
		os.RemoveAll(tempDir)
	}
	return db, cleanup, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, cleanup, err := openTestDB()
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(cleanup)
	return db
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
