// Package database handles database migrations.
package database

import (
	"fmt"
)

// migrate runs all database migrations.
func (db *DB) migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, m := range getAllMigrations() {
		if m.version > currentVersion {
			if err := db.runMigration(m); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
	}

	return nil
}

type migration struct {
	version int
	sql     string
}

func (db *DB) runMigration(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

func getAllMigrations() []migration {
	return []migration{
		{
			version: 1,
			sql:     migration001InitialSchema,
		},
	}
}

const migration001InitialSchema = `
-- Local events table
-- The local side of the bidirectional calendar sync
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,                    -- "evt_" + uuid
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    start_at TEXT NOT NULL,                 -- UTC, ISO8601
    end_at TEXT NOT NULL,                   -- UTC, ISO8601
    links TEXT,                             -- JSON array of URLs
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_user_range ON events(user_id, start_at, end_at);


-- Synced event mappings table
-- Links one local event to one remote event within one remote calendar.
-- The UNIQUE constraints are the mapping invariant: they hold it against
-- racing sync triggers without any application-level locking.
CREATE TABLE IF NOT EXISTS synced_event_mappings (
    id TEXT PRIMARY KEY,                    -- "map_" + uuid
    user_id TEXT NOT NULL,
    local_event_id TEXT NOT NULL UNIQUE,
    remote_event_id TEXT NOT NULL,
    remote_calendar_id TEXT NOT NULL,
    sync_hash TEXT NOT NULL,                -- fingerprint at last successful sync
    last_synced_at TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (remote_event_id, remote_calendar_id)
);

CREATE INDEX IF NOT EXISTS idx_mappings_user ON synced_event_mappings(user_id);


-- Per-user sync settings and watch channel state
CREATE TABLE IF NOT EXISTS user_sync_settings (
    user_id TEXT PRIMARY KEY,
    sync_enabled INTEGER NOT NULL DEFAULT 0,
    calendar_id TEXT,                       -- remote calendar chosen for sync
    timezone TEXT NOT NULL DEFAULT 'UTC',
    sync_token TEXT,                        -- incremental change cursor
    last_sync_at TEXT,
    watch_channel_id TEXT,
    watch_resource_id TEXT,
    watch_expiration TEXT,
    updated_at TEXT DEFAULT (datetime('now'))
);


-- OAuth tokens table
-- Stores encrypted per-user Google refresh tokens
CREATE TABLE IF NOT EXISTS oauth_tokens (
    user_id TEXT PRIMARY KEY,
    refresh_token_enc BLOB NOT NULL,        -- AES-256-GCM encrypted
    scopes TEXT,                            -- Space-separated scope list
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);


-- Daily derived-data cache
-- Content-addressed: a row is valid only while its content_hash matches the
-- freshly computed hash of the day's inputs.
CREATE TABLE IF NOT EXISTS daily_cache (
    user_id TEXT NOT NULL,
    timezone TEXT NOT NULL,
    day_key TEXT NOT NULL,                  -- YYYY-MM-DD in the user timezone
    namespace TEXT NOT NULL CHECK (namespace IN ('summary', 'suggestions')),
    content_hash TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, timezone, day_key, namespace)
);


-- Planner tables: inputs to the daily cache hash
CREATE TABLE IF NOT EXISTS goals (
    id TEXT PRIMARY KEY,                    -- "goal_" + uuid
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    notes TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id);

CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,                    -- "rem_" + uuid
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    remind_at TEXT NOT NULL,                -- UTC, ISO8601
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reminders_user_time ON reminders(user_id, remind_at);

CREATE TABLE IF NOT EXISTS bulletins (
    id TEXT PRIMARY KEY,                    -- "bul_" + uuid
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bulletins_user ON bulletins(user_id);

CREATE TABLE IF NOT EXISTS todo_items (
    id TEXT PRIMARY KEY,                    -- "todo_" + uuid
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    checked INTEGER NOT NULL DEFAULT 0,
    due_date TEXT,                          -- YYYY-MM-DD, optional
    position INTEGER NOT NULL DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_todo_items_user ON todo_items(user_id);


-- User-level context feeding every day's cache hash
CREATE TABLE IF NOT EXISTS user_context (
    user_id TEXT PRIMARY KEY,
    profile_text TEXT,
    view_mode TEXT,
    updated_at TEXT DEFAULT (datetime('now'))
);


-- Habit profiles
-- Centroid and histogram are typed structs in memory, JSON only here
CREATE TABLE IF NOT EXISTS habit_profiles (
    user_id TEXT PRIMARY KEY,
    centroid TEXT NOT NULL,                 -- JSON Centroid
    histogram TEXT NOT NULL,                -- JSON TimeSlotHistogram
    sample_count INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);
`
