package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// SettingsRepository stores per-user sync configuration and watch channel
// state.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a user's sync settings. A user without a row gets defaults
// (sync disabled, UTC).
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*database.UserSyncSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, sync_enabled, calendar_id, timezone, sync_token, last_sync_at,
		       watch_channel_id, watch_resource_id, watch_expiration
		FROM user_sync_settings
		WHERE user_id = ?
	`, userID)

	var (
		s                               database.UserSyncSettings
		calendarID, syncToken           sql.NullString
		lastSyncAt, watchExpiration     sql.NullString
		watchChannelID, watchResourceID sql.NullString
	)

	err := row.Scan(&s.UserID, &s.SyncEnabled, &calendarID, &s.Timezone, &syncToken,
		&lastSyncAt, &watchChannelID, &watchResourceID, &watchExpiration)
	if err == sql.ErrNoRows {
		return &database.UserSyncSettings{UserID: userID, Timezone: "UTC"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync settings: %w", err)
	}

	s.CalendarID = calendarID.String
	s.SyncToken = syncToken.String
	s.WatchChannelID = watchChannelID.String
	s.WatchResourceID = watchResourceID.String

	if lastSyncAt.Valid {
		if t, err := util.ParseSQLiteTimestamp(lastSyncAt.String); err == nil {
			s.LastSyncAt = sql.NullTime{Time: t, Valid: true}
		}
	}
	if watchExpiration.Valid {
		if t, err := util.ParseSQLiteTimestamp(watchExpiration.String); err == nil {
			s.WatchExpiration = sql.NullTime{Time: t, Valid: true}
		}
	}

	return &s, nil
}

// Upsert stores a user's base sync configuration.
func (r *SettingsRepository) Upsert(ctx context.Context, userID string, enabled bool, calendarID, timezone string) error {
	if timezone == "" {
		timezone = "UTC"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sync_settings (user_id, sync_enabled, calendar_id, timezone, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			sync_enabled = excluded.sync_enabled,
			calendar_id = excluded.calendar_id,
			timezone = excluded.timezone,
			updated_at = datetime('now')
	`, userID, enabled, calendarID, timezone)
	if err != nil {
		return fmt.Errorf("failed to upsert sync settings: %w", err)
	}
	return nil
}

// UpdateSyncState persists the change token and last-sync instant after an
// incremental sync completes.
func (r *SettingsRepository) UpdateSyncState(ctx context.Context, userID, syncToken string, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sync_settings
		SET sync_token = ?, last_sync_at = ?, updated_at = datetime('now')
		WHERE user_id = ?
	`, syncToken, util.SQLiteTimestamp(syncedAt), userID)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

// UpdateWatch records a registered watch channel.
func (r *SettingsRepository) UpdateWatch(ctx context.Context, userID, channelID, resourceID string, expiration time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sync_settings
		SET watch_channel_id = ?, watch_resource_id = ?, watch_expiration = ?, updated_at = datetime('now')
		WHERE user_id = ?
	`, channelID, resourceID, util.SQLiteTimestamp(expiration), userID)
	if err != nil {
		return fmt.Errorf("failed to update watch channel: %w", err)
	}
	return nil
}

// ClearWatch removes the stored watch channel fields.
func (r *SettingsRepository) ClearWatch(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sync_settings
		SET watch_channel_id = NULL, watch_resource_id = NULL, watch_expiration = NULL,
		    updated_at = datetime('now')
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear watch channel: %w", err)
	}
	return nil
}

// ListSyncEnabled returns the ids of all users with sync turned on.
func (r *SettingsRepository) ListSyncEnabled(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM user_sync_settings WHERE sync_enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync-enabled users: %w", err)
	}
	defer rows.Close()

	return scanUserIDs(rows)
}

// ListWatchExpiringBefore returns sync-enabled users whose watch channel
// expires before the cutoff.
func (r *SettingsRepository) ListWatchExpiringBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM user_sync_settings
		WHERE sync_enabled = 1
		  AND watch_channel_id IS NOT NULL
		  AND watch_expiration IS NOT NULL
		  AND watch_expiration < ?
	`, util.SQLiteTimestamp(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring watch channels: %w", err)
	}
	defer rows.Close()

	return scanUserIDs(rows)
}

// TimezoneFor resolves the timezone a user's day keys are computed in.
func (r *SettingsRepository) TimezoneFor(ctx context.Context, userID string) (string, error) {
	s, err := r.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.Timezone, nil
}

func scanUserIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
