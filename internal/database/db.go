package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/database/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver indicates an unknown database driver name
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Options describes how to open the database
type Options struct {
	Driver   string
	Path     string // SQLite file
	DSN      string // Postgres connection string
	LogLevel string
}

// Open connects to the configured database and runs migrations
func Open(opts Options) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		db, err = openSQLite(opts.Path, gormConfig)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(opts.DSN), gormConfig)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

func openSQLite(dbPath string, gormConfig *gorm.Config) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// WAL plus a busy timeout lets concurrent requests queue instead of
	// failing with "database is locked".
	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// gormLogLevel maps the application log level to gorm's SQL logging
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logger.Info
	case "INFO":
		return logger.Warn
	case "WARN", "WARNING", "ERROR":
		return logger.Error
	case "SILENT":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Log{},
		&models.LogDaily{},
		&models.DeviceKey{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Older databases stored events without a device id
	if res := db.Model(&models.Log{}).
		Where("device_id = '' OR device_id IS NULL").
		Update("device_id", models.UnknownDeviceID); res.Error != nil {
		return res.Error
	} else if res.RowsAffected > 0 {
		log.Printf("[Migration] Backfilled device_id on %d logs", res.RowsAffected)
	}

	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
