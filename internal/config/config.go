package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabaseDriver    string        `json:"database_driver"` // sqlite or postgres
	DatabasePath      string        `json:"database_path"`
	DatabaseDSN       string        `json:"database_dsn"` // used when DatabaseDriver is postgres
	APIPort           string        `json:"api_port"`
	LogLevel          string        `json:"log_level"`
	DataDir           string        `json:"data_dir"`
	JWTSecret         string        `json:"jwt_secret"`
	CORSOrigins       string        `json:"cors_origins"` // comma separated, * allows all
	SecureCookies     bool          `json:"secure_cookies"`
	SessionTTL        time.Duration `json:"session_ttl"`
	ReconcileInterval time.Duration `json:"reconcile_interval"` // 0 disables the job
	IngestRateLimit   float64       `json:"ingest_rate_limit"`  // events per second per client, 0 disables
	IngestBurst       int           `json:"ingest_burst"`
}

// Default configuration values
const (
	DefaultDatabaseDriver    = "sqlite"
	DefaultDatabasePath      = "data/deep_logs.db"
	DefaultAPIPort           = "8080"
	DefaultLogLevel          = "INFO"
	DefaultDataDir           = "data"
	DefaultJWTSecret         = "deep-logs-default-secret-change-in-production"
	DefaultCORSOrigins       = "*"
	DefaultSessionTTL        = 30 * 24 * time.Hour
	DefaultReconcileInterval = time.Hour
	DefaultIngestRateLimit   = 50
	DefaultIngestBurst       = 100
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DEEP_LOGS_"

// Load loads configuration from defaults, config file, .env file and
// environment variables.
// Priority: Environment variables > .env > Config file > Default values
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	// .env is optional and never overrides variables already set
	_ = godotenv.Load()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		DatabaseDriver:    DefaultDatabaseDriver,
		DatabasePath:      DefaultDatabasePath,
		APIPort:           DefaultAPIPort,
		LogLevel:          DefaultLogLevel,
		DataDir:           DefaultDataDir,
		JWTSecret:         DefaultJWTSecret,
		CORSOrigins:       DefaultCORSOrigins,
		SessionTTL:        DefaultSessionTTL,
		ReconcileInterval: DefaultReconcileInterval,
		IngestRateLimit:   DefaultIngestRateLimit,
		IngestBurst:       DefaultIngestBurst,
	}
}

// fileConfig mirrors Config with durations written as strings ("1h", "30s")
type fileConfig struct {
	*Config
	SessionTTL        string `json:"session_ttl"`
	ReconcileInterval string `json:"reconcile_interval"`
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return c.parseJSON(data)
	}

	return nil
}

func (c *Config) parseJSON(data []byte) error {
	fc := fileConfig{Config: c}
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.SessionTTL != "" {
		d, err := time.ParseDuration(fc.SessionTTL)
		if err != nil {
			return err
		}
		c.SessionTTL = d
	}
	if fc.ReconcileInterval != "" {
		d, err := time.ParseDuration(fc.ReconcileInterval)
		if err != nil {
			return err
		}
		c.ReconcileInterval = d
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	if val := os.Getenv(EnvPrefix + "DATABASE_DRIVER"); val != "" {
		c.DatabaseDriver = val
	}
	if val := os.Getenv(EnvPrefix + "DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv(EnvPrefix + "DATABASE_DSN"); val != "" {
		c.DatabaseDSN = val
	}
	if val := os.Getenv(EnvPrefix + "API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv(EnvPrefix + "DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv(EnvPrefix + "JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv(EnvPrefix + "CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv(EnvPrefix + "SECURE_COOKIES"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		c.SecureCookies = b
	}
	if val := os.Getenv(EnvPrefix + "SESSION_TTL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		c.SessionTTL = d
	}
	if val := os.Getenv(EnvPrefix + "RECONCILE_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		c.ReconcileInterval = d
	}
	if val := os.Getenv(EnvPrefix + "INGEST_RATE_LIMIT"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		c.IngestRateLimit = f
	}
	if val := os.Getenv(EnvPrefix + "INGEST_BURST"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.IngestBurst = n
	}
	return nil
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	fc := fileConfig{
		Config:            c,
		SessionTTL:        c.SessionTTL.String(),
		ReconcileInterval: c.ReconcileInterval.String(),
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
