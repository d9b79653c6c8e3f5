package sync

import (
	"context"

	"github.com/dtorcivia/daykeeper/internal/google"
)

// CalendarAPI is the slice of the remote calendar gateway the sync engine
// consumes. google.CalendarClient is the production implementation.
type CalendarAPI interface {
	ListCalendars(ctx context.Context) ([]google.Calendar, error)
	ListEvents(ctx context.Context, calendarID string, opts google.ListOptions) (*google.EventListResult, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*google.Event, error)
	CreateEvent(ctx context.Context, calendarID string, in *google.EventInput) (*google.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, in *google.EventInput) (*google.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	Watch(ctx context.Context, calendarID string, req google.WatchRequest) (*google.WatchResult, error)
	StopWatch(ctx context.Context, channelID, resourceID string) error
}

// GatewayFactory builds a gateway bound to one user's credentials. One
// gateway per operation; no process-wide client singleton.
type GatewayFactory func(userID string) CalendarAPI

// NewGatewayFactory wires the production gateway to a credential source.
func NewGatewayFactory(creds google.CredentialSource) GatewayFactory {
	return func(userID string) CalendarAPI {
		return google.NewCalendarClient(creds, userID)
	}
}
