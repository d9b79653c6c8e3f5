package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("ENCRYPTION_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, DefaultDatabasePath)
	}
	if cfg.Sync.PollInterval != DefaultSyncPollInterval {
		t.Errorf("PollInterval = %s, want %s", cfg.Sync.PollInterval, DefaultSyncPollInterval)
	}
	if len(cfg.Google.Scopes) != 1 || cfg.Google.Scopes[0] != DefaultGoogleScopes {
		t.Errorf("Scopes = %v, want [%s]", cfg.Google.Scopes, DefaultGoogleScopes)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("ENCRYPTION_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required configuration")
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
database:
  path: /tmp/test.db
sync:
  poll_interval: 10m
logging:
  level: debug
`)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("DAYKEEPER_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want /tmp/test.db", cfg.Database.Path)
	}
	if cfg.Sync.PollInterval != 10*time.Minute {
		t.Errorf("PollInterval = %s, want 10m", cfg.Sync.PollInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_PATH", "/env/wins.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: /file/loses.db\n"), 0600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("DAYKEEPER_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/env/wins.db" {
		t.Errorf("Database.Path = %q, want /env/wins.db", cfg.Database.Path)
	}
}

func TestLoad_PollIntervalTooShort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_POLL_INTERVAL", "10s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for sub-minute poll interval")
	}
}
