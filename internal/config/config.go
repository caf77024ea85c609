// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for journal.db and local backups (always absolute)
	LogLevel string
	Port     int
	DevMode  bool // Enables the X-User-ID header verifier and pretty logs

	// Timezone names the location used for calendar-day boundaries.
	Timezone string
	location *time.Location

	JWTSecret    string
	TxMaxRetries int
	PolicyFile   string
	Policy       *RiskPolicy

	Backup BackupConfig
	R2     R2Config
}

// BackupConfig controls local snapshots and their schedule.
type BackupConfig struct {
	Dir                 string
	Schedule            string // cron spec with seconds
	MaintenanceSchedule string
	Retention           int // local archives kept
}

// R2Config holds credentials for offsite backups to Cloudflare R2.
type R2Config struct {
	Enabled         bool
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Retention       int // remote archives kept
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("JOURNAL_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      dataDir,
		Port:         getEnvAsInt("PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Timezone:     getEnv("JOURNAL_TZ", "Local"),
		JWTSecret:    getEnv("JOURNAL_JWT_SECRET", ""),
		TxMaxRetries: getEnvAsInt("JOURNAL_TX_MAX_RETRIES", 5),
		PolicyFile:   getEnv("JOURNAL_POLICY_FILE", ""),
		Backup: BackupConfig{
			Dir:                 getEnv("JOURNAL_BACKUP_DIR", filepath.Join(dataDir, "backups")),
			Schedule:            getEnv("JOURNAL_BACKUP_SCHEDULE", "0 0 3 * * *"),
			MaintenanceSchedule: getEnv("JOURNAL_MAINTENANCE_SCHEDULE", "0 30 4 * * *"),
			Retention:           getEnvAsInt("JOURNAL_BACKUP_RETENTION", 7),
		},
		R2: R2Config{
			Enabled:         getEnvAsBool("R2_BACKUP_ENABLED", false),
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Retention:       getEnvAsInt("R2_BACKUP_RETENTION", 30),
		},
	}

	policy := DefaultRiskPolicy()
	if cfg.PolicyFile != "" {
		policy, err = LoadRiskPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
	}
	cfg.Policy = policy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.TxMaxRetries <= 0 {
		return fmt.Errorf("JOURNAL_TX_MAX_RETRIES must be positive, got %d", c.TxMaxRetries)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("unknown JOURNAL_TZ %q: %w", c.Timezone, err)
	}
	c.location = loc

	if !c.DevMode && c.JWTSecret == "" {
		return fmt.Errorf("JOURNAL_JWT_SECRET is required unless DEV_MODE is set")
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("JOURNAL_BACKUP_RETENTION must be at least 1")
	}
	if c.R2.Enabled {
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.BucketName == "" {
			return fmt.Errorf("R2 backups enabled but R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY or R2_BUCKET_NAME is missing")
		}
	}
	if c.Policy == nil {
		c.Policy = DefaultRiskPolicy()
	}
	return c.Policy.Validate()
}

// Location returns the timezone used for day boundaries.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// JournalDBPath returns the path of the journal database.
func (c *Config) JournalDBPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
