// Package planner stores the non-event inputs to derived daily data: goals,
// reminders, bulletins, to-do items and user-level context.
package planner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// Invalidator removes derived-cache rows. User-context changes feed every
// day's hash, so writes here invalidate the whole user.
type Invalidator interface {
	InvalidateAllForUser(ctx context.Context, userID string) error
}

// Repository handles planner storage.
type Repository struct {
	db    *database.DB
	cache Invalidator
}

// NewRepository creates a planner repository. cache may be nil in read-only
// contexts (derived-data loading).
func NewRepository(db *database.DB, cache Invalidator) *Repository {
	return &Repository{db: db, cache: cache}
}

// CreateGoal stores a new goal.
func (r *Repository) CreateGoal(ctx context.Context, g *database.Goal) error {
	if g.ID == "" {
		g.ID = "goal_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, title, notes, position)
		VALUES (?, ?, ?, ?, ?)
	`, g.ID, g.UserID, g.Title, g.Notes, g.Position)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// ListGoals returns a user's goals ordered by id for stable hashing.
func (r *Repository) ListGoals(ctx context.Context, userID string) ([]database.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, notes, position
		FROM goals
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []database.Goal
	for rows.Next() {
		var g database.Goal
		var notes sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &notes, &g.Position); err != nil {
			return nil, err
		}
		g.Notes = notes.String
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// CreateReminder stores a new reminder.
func (r *Repository) CreateReminder(ctx context.Context, rem *database.Reminder) error {
	if rem.ID == "" {
		rem.ID = "rem_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, title, remind_at)
		VALUES (?, ?, ?, ?)
	`, rem.ID, rem.UserID, rem.Title, util.SQLiteTimestamp(rem.RemindAt))
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// ListRemindersInRange returns reminders due inside [start, end).
func (r *Repository) ListRemindersInRange(ctx context.Context, userID string, start, end time.Time) ([]database.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, remind_at
		FROM reminders
		WHERE user_id = ? AND remind_at >= ? AND remind_at < ?
		ORDER BY remind_at ASC
	`, userID, util.SQLiteTimestamp(start), util.SQLiteTimestamp(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []database.Reminder
	for rows.Next() {
		var rem database.Reminder
		var remindAt string
		if err := rows.Scan(&rem.ID, &rem.UserID, &rem.Title, &remindAt); err != nil {
			return nil, err
		}
		if rem.RemindAt, err = util.ParseSQLiteTimestamp(remindAt); err != nil {
			return nil, fmt.Errorf("invalid remind_at for reminder %s: %w", rem.ID, err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

// ListBulletins returns a user's bulletins.
func (r *Repository) ListBulletins(ctx context.Context, userID string) ([]database.Bulletin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, content
		FROM bulletins
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bulletins: %w", err)
	}
	defer rows.Close()

	var bulletins []database.Bulletin
	for rows.Next() {
		var b database.Bulletin
		if err := rows.Scan(&b.ID, &b.UserID, &b.Content); err != nil {
			return nil, err
		}
		bulletins = append(bulletins, b)
	}
	return bulletins, rows.Err()
}

// CreateBulletin stores a bulletin.
func (r *Repository) CreateBulletin(ctx context.Context, b *database.Bulletin) error {
	if b.ID == "" {
		b.ID = "bul_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bulletins (id, user_id, content) VALUES (?, ?, ?)
	`, b.ID, b.UserID, b.Content)
	if err != nil {
		return fmt.Errorf("failed to insert bulletin: %w", err)
	}
	return nil
}

// CreateTodoItem stores a to-do item.
func (r *Repository) CreateTodoItem(ctx context.Context, item *database.TodoItem) error {
	if item.ID == "" {
		item.ID = "todo_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todo_items (id, user_id, text, checked, due_date, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.UserID, item.Text, item.Checked, nullable(item.DueDate), item.Position)
	if err != nil {
		return fmt.Errorf("failed to insert todo item: %w", err)
	}
	return nil
}

// SetTodoChecked toggles a to-do item's checked state.
func (r *Repository) SetTodoChecked(ctx context.Context, userID, id string, checked bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE todo_items SET checked = ? WHERE id = ? AND user_id = ?
	`, checked, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update todo item: %w", err)
	}
	return nil
}

// ListTodoItems returns a user's to-do items in list order.
func (r *Repository) ListTodoItems(ctx context.Context, userID string) ([]database.TodoItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, text, checked, due_date, position
		FROM todo_items
		WHERE user_id = ?
		ORDER BY position ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query todo items: %w", err)
	}
	defer rows.Close()

	var items []database.TodoItem
	for rows.Next() {
		var item database.TodoItem
		var due sql.NullString
		if err := rows.Scan(&item.ID, &item.UserID, &item.Text, &item.Checked, &due, &item.Position); err != nil {
			return nil, err
		}
		item.DueDate = due.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetUserContext returns the user's context row, or an empty context when
// none exists.
func (r *Repository) GetUserContext(ctx context.Context, userID string) (*database.UserContext, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, profile_text, view_mode
		FROM user_context
		WHERE user_id = ?
	`, userID)

	var uc database.UserContext
	var profile, viewMode sql.NullString
	err := row.Scan(&uc.UserID, &profile, &viewMode)
	if err == sql.ErrNoRows {
		return &database.UserContext{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user context: %w", err)
	}
	uc.ProfileText = profile.String
	uc.ViewMode = viewMode.String
	return &uc, nil
}

// SetUserContext upserts the user's context. The context feeds every day's
// derived hash, so the whole user's cache is invalidated (detached,
// best-effort).
func (r *Repository) SetUserContext(ctx context.Context, uc *database.UserContext) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_context (user_id, profile_text, view_mode, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			profile_text = excluded.profile_text,
			view_mode = excluded.view_mode,
			updated_at = datetime('now')
	`, uc.UserID, uc.ProfileText, uc.ViewMode)
	if err != nil {
		return fmt.Errorf("failed to set user context: %w", err)
	}

	if r.cache != nil {
		userID := uc.UserID
		util.Detach("user context cache invalidation", func() error {
			return r.cache.InvalidateAllForUser(context.Background(), userID)
		})
	}

	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
