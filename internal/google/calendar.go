// Package google provides the Google Calendar API gateway.
package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dtorcivia/daykeeper/internal/util"
)

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// CredentialSource supplies per-user OAuth credentials to the gateway.
// OAuthManager is the production implementation.
type CredentialSource interface {
	ClientFor(ctx context.Context, userID string) (*http.Client, error)
	ForceRefresh(ctx context.Context, userID string) error
	EnsureCalendarAccess(ctx context.Context, userID string) error
}

// CalendarClient is a typed gateway over the Google Calendar API for one
// user. Construct one per operation; it holds no connection state beyond the
// credential source.
type CalendarClient struct {
	creds  CredentialSource
	userID string

	sleep func(time.Duration) // test seam for backoff
}

// NewCalendarClient creates a gateway bound to one user's credentials.
func NewCalendarClient(creds CredentialSource, userID string) *CalendarClient {
	return &CalendarClient{
		creds:  creds,
		userID: userID,
		sleep:  time.Sleep,
	}
}

// service returns a configured Calendar API service with fresh credentials.
func (c *CalendarClient) service(ctx context.Context) (*calendar.Service, error) {
	httpClient, err := c.creds.ClientFor(ctx, c.userID)
	if err != nil {
		return nil, err
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, &ProviderError{Op: "create service", Err: err}
	}

	return svc, nil
}

// withRetry runs one provider call with the gateway resilience policy: fresh
// credentials before each attempt, exponential backoff on rate limiting (2s,
// then 4s, three attempts total), and exactly one refresh-and-retry on an
// expired authorization. The attempt counter is the loop variable, so the
// retry budget is a visible invariant rather than recursion depth.
func (c *CalendarClient) withRetry(ctx context.Context, op string, fn func(svc *calendar.Service) error) error {
	if err := c.creds.EnsureCalendarAccess(ctx, c.userID); err != nil {
		return err
	}

	backoff := initialBackoff
	refreshed := false

	for attempt := 1; ; attempt++ {
		svc, err := c.service(ctx)
		if err != nil {
			return err
		}

		err = fn(svc)
		if err == nil {
			return nil
		}

		var gerr *googleapi.Error
		if !errors.As(err, &gerr) {
			return &ProviderError{Op: op, Err: err}
		}

		switch {
		case gerr.Code == http.StatusTooManyRequests:
			if attempt >= maxAttempts {
				return &RateLimitError{Attempts: attempt, Err: err}
			}
			util.Warn("Rate limited by provider, backing off",
				"op", op,
				"attempt", attempt,
				"backoff", backoff,
			)
			c.sleep(backoff)
			backoff *= 2

		case gerr.Code == http.StatusUnauthorized:
			if refreshed {
				return &AuthError{Reason: "authorization expired", Err: err}
			}
			refreshed = true
			if rerr := c.creds.ForceRefresh(ctx, c.userID); rerr != nil {
				return &AuthError{Reason: "credential refresh failed", Err: rerr}
			}

		case gerr.Code == http.StatusForbidden && hasReason(gerr, "insufficientPermissions"):
			return &PermissionError{MissingScope: calendarScope}

		default:
			return &ProviderError{Op: op, Err: err}
		}
	}
}

func hasReason(gerr *googleapi.Error, reason string) bool {
	for _, e := range gerr.Errors {
		if e.Reason == reason {
			return true
		}
	}
	return false
}

// ListCalendars returns all calendars accessible to the user.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var calendars []Calendar

	err := c.withRetry(ctx, "list calendars", func(svc *calendar.Service) error {
		list, err := svc.CalendarList.List().Context(ctx).Do()
		if err != nil {
			return err
		}

		calendars = calendars[:0]
		for _, item := range list.Items {
			calendars = append(calendars, Calendar{
				ID:      item.Id,
				Name:    item.Summary,
				Primary: item.Primary,
				Color:   item.BackgroundColor,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return calendars, nil
}

// ListEvents returns events from a calendar, following pagination. When
// opts.SyncToken is set the provider returns only events changed since that
// token; the time window is ignored in that mode (the provider forbids
// combining the two). Recurring-event instances and their parents are
// filtered out entirely.
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, opts ListOptions) (*EventListResult, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	result := &EventListResult{}

	err := c.withRetry(ctx, "list events", func(svc *calendar.Service) error {
		result.Events = result.Events[:0]
		result.NextSyncToken = ""
		pageToken := ""

		for {
			call := svc.Events.List(calendarID).Context(ctx).MaxResults(2500)

			if opts.SyncToken != "" {
				call = call.SyncToken(opts.SyncToken)
			} else {
				if !opts.TimeMin.IsZero() {
					call = call.TimeMin(opts.TimeMin.Format(time.RFC3339))
				}
				if !opts.TimeMax.IsZero() {
					call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
				}
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			page, err := call.Do()
			if err != nil {
				return err
			}

			for _, item := range page.Items {
				if isRecurring(item) {
					continue
				}
				result.Events = append(result.Events, convertEvent(item))
			}

			if page.NextSyncToken != "" {
				result.NextSyncToken = page.NextSyncToken
			}
			if page.NextPageToken == "" {
				return nil
			}
			pageToken = page.NextPageToken
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetEvent returns a single event by ID.
func (c *CalendarClient) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	var event Event
	err := c.withRetry(ctx, "get event", func(svc *calendar.Service) error {
		item, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return err
		}
		event = convertEvent(item)
		return nil
	})
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, &NotFoundError{Resource: "event", ID: eventID}
		}
		return nil, err
	}

	return &event, nil
}

// CreateEvent creates a new event.
func (c *CalendarClient) CreateEvent(ctx context.Context, calendarID string, in *EventInput) (*Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	gcalEvent := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start: &calendar.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: in.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: in.End.Format(time.RFC3339),
			TimeZone: in.TimeZone,
		},
	}

	var created Event
	err := c.withRetry(ctx, "create event", func(svc *calendar.Service) error {
		item, err := svc.Events.Insert(calendarID, gcalEvent).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = convertEvent(item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateEvent replaces an event's synced fields.
func (c *CalendarClient) UpdateEvent(ctx context.Context, calendarID, eventID string, in *EventInput) (*Event, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	var updated Event
	err := c.withRetry(ctx, "update event", func(svc *calendar.Service) error {
		existing, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return err
		}

		existing.Summary = in.Summary
		if in.Description != "" {
			existing.Description = in.Description
		}
		existing.Start = &calendar.EventDateTime{
			DateTime: in.Start.Format(time.RFC3339),
			TimeZone: in.TimeZone,
		}
		existing.End = &calendar.EventDateTime{
			DateTime: in.End.Format(time.RFC3339),
			TimeZone: in.TimeZone,
		}

		item, err := svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
		if err != nil {
			return err
		}
		updated = convertEvent(item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteEvent deletes an event.
func (c *CalendarClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = "primary"
	}

	return c.withRetry(ctx, "delete event", func(svc *calendar.Service) error {
		return svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
}

// Watch registers a change-notification channel for a calendar.
func (c *CalendarClient) Watch(ctx context.Context, calendarID string, req WatchRequest) (*WatchResult, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	channel := &calendar.Channel{
		Id:         req.ChannelID,
		Type:       "web_hook",
		Address:    req.Address,
		Expiration: req.Expiration.UnixMilli(),
	}

	var result WatchResult
	err := c.withRetry(ctx, "watch calendar", func(svc *calendar.Service) error {
		resp, err := svc.Events.Watch(calendarID, channel).Context(ctx).Do()
		if err != nil {
			return err
		}
		result = WatchResult{
			ChannelID:  resp.Id,
			ResourceID: resp.ResourceId,
			Expiration: time.UnixMilli(resp.Expiration),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// StopWatch tears down a change-notification channel.
func (c *CalendarClient) StopWatch(ctx context.Context, channelID, resourceID string) error {
	return c.withRetry(ctx, "stop watch", func(svc *calendar.Service) error {
		return svc.Channels.Stop(&calendar.Channel{
			Id:         channelID,
			ResourceId: resourceID,
		}).Context(ctx).Do()
	})
}

// isRecurring reports whether an item is a recurring master or an instance.
// The system does not model recurrence, so both are dropped.
func isRecurring(e *calendar.Event) bool {
	return len(e.Recurrence) > 0 || e.RecurringEventId != ""
}

func convertEvent(e *calendar.Event) Event {
	event := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Status:      e.Status,
	}

	if e.Start != nil {
		event.Start = &EventTime{
			Date:     e.Start.Date,
			TimeZone: e.Start.TimeZone,
		}
		if e.Start.DateTime != "" {
			event.Start.DateTime, _ = time.Parse(time.RFC3339, e.Start.DateTime)
		}
	}

	if e.End != nil {
		event.End = &EventTime{
			Date:     e.End.Date,
			TimeZone: e.End.TimeZone,
		}
		if e.End.DateTime != "" {
			event.End.DateTime, _ = time.Parse(time.RFC3339, e.End.DateTime)
		}
	}

	if e.Updated != "" {
		event.Updated, _ = time.Parse(time.RFC3339, e.Updated)
	}

	return event
}

// ExtractLinks pulls http(s) URLs out of an event description. URLs may sit
// anywhere in a line ("agenda: https://..."); surrounding text is dropped.
func ExtractLinks(description string) []string {
	var links []string
	for _, token := range strings.Fields(description) {
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			links = append(links, token)
		}
	}
	return links
}
