package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// MappingRepository stores local-to-remote event links. The uniqueness
// invariant (one mapping per local event, one per remote event within a
// calendar) lives in the table's UNIQUE constraints, so racing sync triggers
// fail at insert rather than silently duplicating.
type MappingRepository struct {
	db *database.DB
}

// NewMappingRepository creates a mapping repository.
func NewMappingRepository(db *database.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Create stores a new mapping.
func (r *MappingRepository) Create(ctx context.Context, m *database.SyncedEventMapping) error {
	if m.ID == "" {
		m.ID = "map_" + uuid.NewString()
	}
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = util.NowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO synced_event_mappings
			(id, user_id, local_event_id, remote_event_id, remote_calendar_id, sync_hash, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.LocalEventID, m.RemoteEventID, m.RemoteCalendarID,
		m.SyncHash, util.SQLiteTimestamp(m.LastSyncedAt))

	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}
	return nil
}

// GetByLocalEvent returns the mapping for a local event, or nil.
func (r *MappingRepository) GetByLocalEvent(ctx context.Context, localEventID string) (*database.SyncedEventMapping, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, local_event_id, remote_event_id, remote_calendar_id, sync_hash, last_synced_at
		FROM synced_event_mappings
		WHERE local_event_id = ?
	`, localEventID)

	return scanMapping(row)
}

// GetByRemoteEvent returns the mapping for a remote event within a calendar,
// or nil.
func (r *MappingRepository) GetByRemoteEvent(ctx context.Context, remoteEventID, remoteCalendarID string) (*database.SyncedEventMapping, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, local_event_id, remote_event_id, remote_calendar_id, sync_hash, last_synced_at
		FROM synced_event_mappings
		WHERE remote_event_id = ? AND remote_calendar_id = ?
	`, remoteEventID, remoteCalendarID)

	return scanMapping(row)
}

// UpdateSyncState records a fresh fingerprint after a successful re-sync.
func (r *MappingRepository) UpdateSyncState(ctx context.Context, id, syncHash string, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE synced_event_mappings
		SET sync_hash = ?, last_synced_at = ?
		WHERE id = ?
	`, syncHash, util.SQLiteTimestamp(syncedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	return nil
}

// Delete removes one mapping.
func (r *MappingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM synced_event_mappings WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}

// CountByUser returns the number of mappings a user holds.
func (r *MappingRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM synced_event_mappings WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

func scanMapping(row *sql.Row) (*database.SyncedEventMapping, error) {
	var m database.SyncedEventMapping
	var lastSynced string

	err := row.Scan(&m.ID, &m.UserID, &m.LocalEventID, &m.RemoteEventID,
		&m.RemoteCalendarID, &m.SyncHash, &lastSynced)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}

	if m.LastSyncedAt, err = util.ParseSQLiteTimestamp(lastSynced); err != nil {
		return nil, fmt.Errorf("invalid last_synced_at for mapping %s: %w", m.ID, err)
	}

	return &m, nil
}
