package google

import (
	"time"
)

// Calendar is one entry from the user's calendar list.
type Calendar struct {
	ID      string
	Name    string
	Primary bool
	Color   string
}

// EventTime is either an absolute instant with a timezone or a date-only
// value for all-day events.
type EventTime struct {
	DateTime time.Time // zero when Date is set
	Date     string    // YYYY-MM-DD for all-day events
	TimeZone string
}

// Resolve returns the instant this EventTime represents. Date-only values
// resolve to midnight in loc.
func (t *EventTime) Resolve(loc *time.Location) time.Time {
	if t == nil {
		return time.Time{}
	}
	if !t.DateTime.IsZero() {
		return t.DateTime
	}
	if t.Date != "" {
		if d, err := time.ParseInLocation("2006-01-02", t.Date, loc); err == nil {
			return d
		}
	}
	return time.Time{}
}

// Event is a remote calendar event as observed by the gateway.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Status      string // "confirmed", "tentative", "cancelled"
	Start       *EventTime
	End         *EventTime
	Updated     time.Time
}

// Cancelled reports whether the remote event was deleted. Incremental sync
// receives deletions as cancelled stubs.
func (e *Event) Cancelled() bool {
	return e.Status == "cancelled"
}

// ListOptions controls an event listing call. SyncToken and the time window
// are mutually exclusive; when SyncToken is set the provider returns only
// events changed since that token.
type ListOptions struct {
	TimeMin   time.Time
	TimeMax   time.Time
	SyncToken string
}

// EventListResult is the outcome of one listing call. NextSyncToken may be
// empty; callers must tolerate a missing token.
type EventListResult struct {
	Events        []Event
	NextSyncToken string
}

// EventInput is the local representation pushed to the provider.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// WatchRequest describes a change-notification channel to register.
type WatchRequest struct {
	ChannelID  string
	Address    string // webhook endpoint the provider will call
	Expiration time.Time
}

// WatchResult is the provider's view of a registered channel.
type WatchResult struct {
	ChannelID  string
	ResourceID string
	Expiration time.Time
}
