// Package database provides shared model structs used across the application.
package database

import (
	"database/sql"
	"time"
)

// Event represents a locally stored calendar event.
type Event struct {
	ID        string
	UserID    string
	Title     string
	StartAt   time.Time
	EndAt     time.Time
	Links     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncedEventMapping links one local event to one remote event within one
// remote calendar. SyncHash is the event fingerprint captured at the last
// successful sync.
type SyncedEventMapping struct {
	ID               string
	UserID           string
	LocalEventID     string
	RemoteEventID    string
	RemoteCalendarID string
	SyncHash         string
	LastSyncedAt     time.Time
	CreatedAt        time.Time
}

// UserSyncSettings holds a user's sync configuration and watch channel state.
type UserSyncSettings struct {
	UserID          string
	SyncEnabled     bool
	CalendarID      string
	Timezone        string
	SyncToken       string
	LastSyncAt      sql.NullTime
	WatchChannelID  string
	WatchResourceID string
	WatchExpiration sql.NullTime
	UpdatedAt       time.Time
}

// OAuthToken represents stored per-user OAuth credentials.
type OAuthToken struct {
	UserID          string
	RefreshTokenEnc []byte
	Scopes          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cache namespaces. The two derived-data consumers normalize their inputs
// differently, so they hash and cache independently.
const (
	CacheNamespaceSummary     = "summary"
	CacheNamespaceSuggestions = "suggestions"
)

// DailyCacheEntry is one derived-data row keyed by user, timezone, day and
// namespace.
type DailyCacheEntry struct {
	UserID      string
	Timezone    string
	DayKey      string
	Namespace   string
	ContentHash string
	Payload     string
	CreatedAt   time.Time
}

// Goal is a user goal feeding the daily cache hash.
type Goal struct {
	ID        string
	UserID    string
	Title     string
	Notes     string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reminder is a timed reminder feeding the daily cache hash.
type Reminder struct {
	ID        string
	UserID    string
	Title     string
	RemindAt  time.Time
	CreatedAt time.Time
}

// Bulletin is a free-form note feeding the daily cache hash.
type Bulletin struct {
	ID        string
	UserID    string
	Content   string
	UpdatedAt time.Time
}

// TodoItem is a to-do list entry. Only unchecked items contribute to derived
// hashing.
type TodoItem struct {
	ID        string
	UserID    string
	Text      string
	Checked   bool
	DueDate   string // YYYY-MM-DD, empty when unset
	Position  int
	CreatedAt time.Time
}

// UserContext is user-level context that feeds every day's cache hash.
type UserContext struct {
	UserID      string
	ProfileText string
	ViewMode    string
	UpdatedAt   time.Time
}

// Event action types recorded against habit profiles.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionAccepted = "accepted"
	ActionRejected = "rejected"
)
