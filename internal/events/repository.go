// Package events provides the local event store.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// Repository handles local event storage and retrieval.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new event repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new event, assigning an ID when the caller did not.
func (r *Repository) Create(ctx context.Context, ev *database.Event) error {
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.NewString()
	}

	links, err := marshalLinks(ev.Links)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, user_id, title, start_at, end_at, links)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, ev.Title,
		util.SQLiteTimestamp(ev.StartAt), util.SQLiteTimestamp(ev.EndAt), links)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// GetByID retrieves one event for a user. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, userID, id string) (*database.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, start_at, end_at, links, created_at, updated_at
		FROM events
		WHERE id = ? AND user_id = ?
	`, id, userID)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// Update replaces an event's mutable fields. Updating a missing event is an
// error so sync failures surface instead of silently no-opping.
func (r *Repository) Update(ctx context.Context, ev *database.Event) error {
	links, err := marshalLinks(ev.Links)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, start_at = ?, end_at = ?, links = ?, updated_at = datetime('now')
		WHERE id = ? AND user_id = ?
	`, ev.Title, util.SQLiteTimestamp(ev.StartAt), util.SQLiteTimestamp(ev.EndAt), links,
		ev.ID, ev.UserID)

	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s not found", ev.ID)
	}
	return nil
}

// Delete removes one event.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM events WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ListByUser returns all events for a user ordered by start time.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]database.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, start_at, end_at, links, created_at, updated_at
		FROM events
		WHERE user_id = ?
		ORDER BY start_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListInRange returns events overlapping the [start, end) window.
func (r *Repository) ListInRange(ctx context.Context, userID string, start, end time.Time) ([]database.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, start_at, end_at, links, created_at, updated_at
		FROM events
		WHERE user_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC
	`, userID, util.SQLiteTimestamp(end), util.SQLiteTimestamp(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query events in range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*database.Event, error) {
	var (
		ev                   database.Event
		startAt, endAt       string
		links                sql.NullString
		createdAt, updatedAt sql.NullString
	)

	err := row.Scan(&ev.ID, &ev.UserID, &ev.Title, &startAt, &endAt, &links, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if ev.StartAt, err = util.ParseSQLiteTimestamp(startAt); err != nil {
		return nil, fmt.Errorf("invalid start_at for event %s: %w", ev.ID, err)
	}
	if ev.EndAt, err = util.ParseSQLiteTimestamp(endAt); err != nil {
		return nil, fmt.Errorf("invalid end_at for event %s: %w", ev.ID, err)
	}

	if links.Valid && links.String != "" {
		if err := json.Unmarshal([]byte(links.String), &ev.Links); err != nil {
			return nil, fmt.Errorf("invalid links for event %s: %w", ev.ID, err)
		}
	}

	if createdAt.Valid {
		ev.CreatedAt, _ = util.ParseSQLiteTimestamp(createdAt.String)
	}
	if updatedAt.Valid {
		ev.UpdatedAt, _ = util.ParseSQLiteTimestamp(updatedAt.String)
	}

	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]database.Event, error) {
	var events []database.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func marshalLinks(links []string) (string, error) {
	if len(links) == 0 {
		return "", nil
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("failed to marshal links: %w", err)
	}
	return string(data), nil
}
