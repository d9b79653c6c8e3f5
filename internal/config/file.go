package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML parsing. Pointer fields distinguish
// "absent" from zero values so the file only overrides what it sets.
type fileConfig struct {
	Server struct {
		BaseURL    *string `yaml:"base_url"`
		WebhookURL *string `yaml:"webhook_url"`
	} `yaml:"server"`
	Database struct {
		Path *string `yaml:"path"`
	} `yaml:"database"`
	Google struct {
		ClientID     *string  `yaml:"client_id"`
		ClientSecret *string  `yaml:"client_secret"`
		RedirectURI  *string  `yaml:"redirect_uri"`
		Scopes       []string `yaml:"scopes"`
	} `yaml:"google"`
	Sync struct {
		PollInterval    *string `yaml:"poll_interval"`
		RenewalInterval *string `yaml:"renewal_interval"`
	} `yaml:"sync"`
	Security struct {
		EncryptionSecret *string `yaml:"encryption_secret"`
	} `yaml:"security"`
	Logging struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"logging"`
}

// applyFile overlays settings from a YAML file onto cfg. Values already set
// by environment variables win over the file.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	setIfUnset := func(target *string, envKey string, value *string) {
		if value != nil && os.Getenv(envKey) == "" {
			*target = *value
		}
	}

	setIfUnset(&cfg.Server.BaseURL, "BASE_URL", fc.Server.BaseURL)
	setIfUnset(&cfg.Server.WebhookURL, "WEBHOOK_URL", fc.Server.WebhookURL)
	setIfUnset(&cfg.Database.Path, "DATABASE_PATH", fc.Database.Path)
	setIfUnset(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID", fc.Google.ClientID)
	setIfUnset(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET", fc.Google.ClientSecret)
	setIfUnset(&cfg.Google.RedirectURI, "GOOGLE_REDIRECT_URI", fc.Google.RedirectURI)
	setIfUnset(&cfg.Security.EncryptionSecret, "ENCRYPTION_SECRET", fc.Security.EncryptionSecret)
	setIfUnset(&cfg.Logging.Level, "LOG_LEVEL", fc.Logging.Level)
	setIfUnset(&cfg.Logging.Format, "LOG_FORMAT", fc.Logging.Format)

	if len(fc.Google.Scopes) > 0 && os.Getenv("GOOGLE_SCOPES") == "" {
		cfg.Google.Scopes = fc.Google.Scopes
	}

	if fc.Sync.PollInterval != nil && os.Getenv("SYNC_POLL_INTERVAL") == "" {
		d, err := time.ParseDuration(*fc.Sync.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid sync.poll_interval: %w", err)
		}
		cfg.Sync.PollInterval = d
	}
	if fc.Sync.RenewalInterval != nil && os.Getenv("WATCH_RENEWAL_INTERVAL") == "" {
		d, err := time.ParseDuration(*fc.Sync.RenewalInterval)
		if err != nil {
			return fmt.Errorf("invalid sync.renewal_interval: %w", err)
		}
		cfg.Sync.RenewalInterval = d
	}

	return nil
}
