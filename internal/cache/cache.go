package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// Store reads and writes daily cache rows. An entry is only ever served
// when its stored content hash matches the hash of the current inputs;
// stale entries are treated as misses and overwritten on the next Put.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Get returns the cached payload for the key if its content hash equals
// freshHash. Any other outcome, including no row at all, is a miss.
func (s *Store) Get(ctx context.Context, userID, timezone, dayKey, namespace, freshHash string) (*database.DailyCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, timezone, day_key, namespace, content_hash, payload
		FROM daily_cache
		WHERE user_id = ? AND timezone = ? AND day_key = ? AND namespace = ?
	`, userID, timezone, dayKey, namespace)

	var entry database.DailyCacheEntry
	err := row.Scan(&entry.UserID, &entry.Timezone, &entry.DayKey, &entry.Namespace, &entry.ContentHash, &entry.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if entry.ContentHash != freshHash {
		return nil, nil
	}
	return &entry, nil
}

// Put stores a payload under the key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, entry *database.DailyCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_cache (user_id, timezone, day_key, namespace, content_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id, timezone, day_key, namespace) DO UPDATE SET
			content_hash = excluded.content_hash,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, entry.UserID, entry.Timezone, entry.DayKey, entry.Namespace, entry.ContentHash, entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// InvalidateDay drops all namespaces for one user-day.
func (s *Store) InvalidateDay(ctx context.Context, userID, timezone, dayKey string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_cache WHERE user_id = ? AND timezone = ? AND day_key = ?
	`, userID, timezone, dayKey)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache day: %w", err)
	}
	return nil
}

// InvalidateAllForUser drops every cache entry the user owns, across all
// timezones and days. Used when user-level context changes, since that
// feeds every day's hash.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM daily_cache WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to invalidate user cache: %w", err)
	}
	return nil
}

// InvalidateForEventSpan drops cache entries for every local day the span
// touches in the user's timezone. A multi-day event invalidates each day
// it covers.
func (s *Store) InvalidateForEventSpan(ctx context.Context, userID, timezone string, start, end time.Time) error {
	loc, err := util.ResolveLocation(timezone)
	if err != nil {
		return err
	}
	for _, dayKey := range util.DayKeysInRange(start, end, loc) {
		if err := s.InvalidateDay(ctx, userID, timezone, dayKey); err != nil {
			return err
		}
	}
	return nil
}
