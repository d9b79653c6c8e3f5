// Package config handles configuration loading from environment variables and
// an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Google   GoogleConfig
	Sync     SyncConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds the externally visible URLs.
type ServerConfig struct {
	BaseURL    string
	WebhookURL string // endpoint registered with Google watch channels
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string
}

// GoogleConfig holds Google OAuth settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// SyncConfig holds sync scheduling settings.
type SyncConfig struct {
	PollInterval    time.Duration // incremental sync tick
	RenewalInterval time.Duration // watch channel renewal sweep
}

// SecurityConfig holds secrets.
type SecurityConfig struct {
	EncryptionSecret string
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load reads configuration from the environment, applying an optional YAML
// file (DAYKEEPER_CONFIG_FILE) underneath environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BaseURL:    getEnv("BASE_URL", DefaultBaseURL),
			WebhookURL: os.Getenv("WEBHOOK_URL"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", DefaultDatabasePath),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
			Scopes:       splitList(getEnv("GOOGLE_SCOPES", DefaultGoogleScopes)),
		},
		Sync: SyncConfig{
			PollInterval:    getEnvDuration("SYNC_POLL_INTERVAL", DefaultSyncPollInterval),
			RenewalInterval: getEnvDuration("WATCH_RENEWAL_INTERVAL", DefaultRenewalInterval),
		},
		Security: SecurityConfig{
			EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", DefaultLogLevel),
			Format: getEnv("LOG_FORMAT", DefaultLogFormat),
		},
	}

	if path := os.Getenv("DAYKEEPER_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks for required settings.
func (c *Config) Validate() error {
	var missing []string

	if c.Google.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.Google.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.Security.EncryptionSecret == "" {
		missing = append(missing, "ENCRYPTION_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Sync.PollInterval < time.Minute {
		return fmt.Errorf("sync poll interval must be at least 1m, got %s", c.Sync.PollInterval)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are treated as seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
