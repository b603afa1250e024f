// Package config provides configuration loading for the fleet service.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
type Config struct {
	// Listen address (default ":8728" is the device port, so we stay off it)
	ListenAddr string `json:"listen_addr"`
	// Data directory for SQLite databases (default "/var/lib/rosfleet")
	DataDir string `json:"data_dir"`

	// Hex-encoded 32-byte key for device secret encryption (64 hex chars)
	CredentialKey string `json:"credential_key,omitempty"`

	// Blob storage for backup payloads
	Blob BlobConfig `json:"blob,omitempty"`

	// Cron expression for scheduled backups; empty disables the scheduler
	BackupSchedule string `json:"backup_schedule,omitempty"`

	// Retention window in days for scheduled backups; 0 keeps them forever
	RetentionDays int `json:"retention_days,omitempty"`

	// Device command retry behavior
	Retry RetryConfig `json:"retry,omitempty"`

	// Transport timeouts
	DialTimeout    string `json:"dial_timeout,omitempty"`
	CommandTimeout string `json:"command_timeout,omitempty"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// BlobConfig selects and configures the backup payload store.
type BlobConfig struct {
	// Backend is "local" or "s3".
	Backend string `json:"backend"`
	// LocalDir is the root for the local backend (default <data_dir>/blobs).
	LocalDir string `json:"local_dir,omitempty"`

	// S3-compatible settings (MinIO, S3, ...)
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

// RetryConfig configures the command executor's backoff.
type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts,omitempty"`
	BaseDelay   string  `json:"base_delay,omitempty"`
	Multiplier  float64 `json:"multiplier,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr: ":8730",
		DataDir:    "/var/lib/rosfleet",
		LogLevel:   "info",
		Blob:       BlobConfig{Backend: "local"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "1s",
			Multiplier:  2,
		},
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("ROSFLEET_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ROSFLEET_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROSFLEET_CREDENTIAL_KEY"); v != "" {
		cfg.CredentialKey = v
	}
	if v := os.Getenv("ROSFLEET_BACKUP_SCHEDULE"); v != "" {
		cfg.BackupSchedule = v
	}
	if v := os.Getenv("ROSFLEET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_BACKEND"); v != "" {
		cfg.Blob.Backend = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_ENDPOINT"); v != "" {
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_ACCESS_KEY"); v != "" {
		cfg.Blob.AccessKey = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_SECRET_KEY"); v != "" {
		cfg.Blob.SecretKey = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_BUCKET"); v != "" {
		cfg.Blob.Bucket = v
	}
	if v := os.Getenv("ROSFLEET_BLOB_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Blob.UseSSL = b
		}
	}
	if v := os.Getenv("ROSFLEET_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("ROSFLEET_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.Retry.MaxAttempts = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.CredentialKey != "" {
		key, err := hex.DecodeString(c.CredentialKey)
		if err != nil {
			return fmt.Errorf("credential_key must be hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("credential_key must decode to 32 bytes, got %d", len(key))
		}
	}
	switch c.Blob.Backend {
	case "", "local":
	case "s3":
		if c.Blob.Endpoint == "" || c.Blob.Bucket == "" {
			return fmt.Errorf("s3 blob backend requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	for _, d := range []string{c.Retry.BaseDelay, c.DialTimeout, c.CommandTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration %q: %w", d, err)
		}
	}
	return nil
}

// Duration parses a duration field, falling back when empty or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
