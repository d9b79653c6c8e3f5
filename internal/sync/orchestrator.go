package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/events"
	"github.com/dtorcivia/daykeeper/internal/google"
	"github.com/dtorcivia/daykeeper/internal/habits"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// CacheInvalidator drops derived-data entries after sync mutates events.
type CacheInvalidator interface {
	InvalidateForEventSpan(ctx context.Context, userID, timezone string, start, end time.Time) error
}

// HabitRecorder receives event actions for behavioral profiling.
type HabitRecorder interface {
	RecordEventAction(ctx context.Context, userID, action string, snap habits.EventSnapshot) error
}

// InitialSyncReport summarizes a first-time comparison of local and remote
// events. It is advisory: initial sync mutates nothing.
type InitialSyncReport struct {
	LocalCount     int
	RemoteCount    int
	ConflictCount  int
	MergeableCount int
	Conflicts      []Conflict
	Errors         []string
}

// IncrementalSyncResult reports one token-driven sync pass. Per-event
// failures land in Errors without flipping Success; only a failure to talk
// to the provider at all marks the pass unsuccessful.
type IncrementalSyncResult struct {
	Success bool
	Synced  int
	Errors  []string
}

// Resolution is the caller's verdict on a detected conflict.
type Resolution string

const (
	ResolutionUseLocal  Resolution = "use_local"
	ResolutionUseRemote Resolution = "use_remote"
	ResolutionSkip      Resolution = "skip"
)

// Orchestrator drives sync between the local event store and the remote
// calendar for one or more users.
type Orchestrator struct {
	events   *events.Repository
	mappings *MappingRepository
	settings *SettingsRepository
	gateway  GatewayFactory
	cache    CacheInvalidator
	habits   HabitRecorder

	// detach runs side effects off the request path. Swapped for a
	// synchronous runner in tests.
	detach func(task string, fn func() error)
}

func NewOrchestrator(ev *events.Repository, mappings *MappingRepository, settings *SettingsRepository, gateway GatewayFactory, cache CacheInvalidator, habits HabitRecorder) *Orchestrator {
	return &Orchestrator{
		events:   ev,
		mappings: mappings,
		settings: settings,
		gateway:  gateway,
		cache:    cache,
		habits:   habits,
		detach:   util.Detach,
	}
}

// PerformInitialSync fetches the remote event list for the next 90 days,
// compares it against local events, and reports overlaps. It never writes:
// the caller resolves conflicts and invokes push or pull per event.
func (o *Orchestrator) PerformInitialSync(ctx context.Context, userID, calendarID string) *InitialSyncReport {
	report := &InitialSyncReport{}

	loc, err := o.userLocation(ctx, userID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Failed to load sync settings: %v", err))
		return report
	}

	now := time.Now().In(loc)
	windowEnd := now.AddDate(0, 0, 90)

	api := o.gateway(userID)
	remote, err := api.ListEvents(ctx, calendarID, google.ListOptions{TimeMin: now, TimeMax: windowEnd})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Failed to list remote events: %v", err))
		return report
	}

	local, err := o.events.ListInRange(ctx, userID, now, windowEnd)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Failed to list local events: %v", err))
		return report
	}

	report.Conflicts = DetectConflicts(local, remote.Events, loc)
	report.LocalCount = len(local)
	report.RemoteCount = len(remote.Events)
	report.ConflictCount = len(report.Conflicts)
	report.MergeableCount = report.LocalCount + report.RemoteCount - report.ConflictCount
	return report
}

// PerformIncrementalSync pulls changes since the stored sync token and
// applies them locally. Users with sync disabled or no calendar selected
// are a successful no-op.
func (o *Orchestrator) PerformIncrementalSync(ctx context.Context, userID string) *IncrementalSyncResult {
	result := &IncrementalSyncResult{}

	settings, err := o.settings.Get(ctx, userID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to load sync settings: %v", err))
		return result
	}
	if !settings.SyncEnabled || settings.CalendarID == "" {
		result.Success = true
		return result
	}

	// A corrupt timezone row must not stall sync for the user; times fall
	// back to UTC and the bad value is logged.
	loc, err := util.ResolveLocation(settings.Timezone)
	if err != nil {
		util.Warn("Invalid timezone in sync settings, using UTC", "user_id", userID, "timezone", settings.Timezone, "error", err.Error())
		loc = time.UTC
	}

	api := o.gateway(userID)
	opts := google.ListOptions{SyncToken: settings.SyncToken}
	if settings.SyncToken == "" {
		now := time.Now().In(loc)
		opts.TimeMin = now
		opts.TimeMax = now.AddDate(0, 0, 90)
	}
	remote, err := api.ListEvents(ctx, settings.CalendarID, opts)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to list remote events: %v", err))
		return result
	}

	var spanMin, spanMax time.Time
	for i := range remote.Events {
		rev := &remote.Events[i]
		span, changed, err := o.applyRemoteEvent(ctx, userID, settings.CalendarID, loc, rev)
		if err != nil {
			title := rev.Summary
			if title == "" {
				title = rev.ID
			}
			util.Warn("Failed to sync event", "user_id", userID, "event_id", rev.ID, "error", err.Error())
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to sync event: %s", title))
			continue
		}
		if !changed {
			continue
		}
		result.Synced++
		if !span.start.IsZero() {
			if spanMin.IsZero() || span.start.Before(spanMin) {
				spanMin = span.start
			}
			if spanMax.IsZero() || span.end.After(spanMax) {
				spanMax = span.end
			}
		}
	}

	if remote.NextSyncToken != "" {
		if err := o.settings.UpdateSyncState(ctx, userID, remote.NextSyncToken, time.Now().UTC()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to persist sync token: %v", err))
		}
	}

	if o.cache != nil && !spanMin.IsZero() {
		tz := settings.Timezone
		start, end := spanMin, spanMax
		o.detach("invalidate synced span", func() error {
			return o.cache.InvalidateForEventSpan(context.Background(), userID, tz, start, end)
		})
	}

	result.Success = true
	return result
}

type eventSpan struct {
	start time.Time
	end   time.Time
}

// applyRemoteEvent reconciles one changed remote event into the local
// store: cancelled stubs delete, mapped events update, unmapped events
// create a local copy plus a mapping. changed is false when the stored
// sync hash shows nothing material moved.
func (o *Orchestrator) applyRemoteEvent(ctx context.Context, userID, calendarID string, loc *time.Location, rev *google.Event) (eventSpan, bool, error) {
	mapping, err := o.mappings.GetByRemoteEvent(ctx, rev.ID, calendarID)
	if err != nil {
		return eventSpan{}, false, err
	}

	if rev.Cancelled() {
		if mapping == nil {
			return eventSpan{}, false, nil
		}
		local, err := o.events.GetByID(ctx, userID, mapping.LocalEventID)
		if err != nil {
			return eventSpan{}, false, err
		}
		if local != nil {
			if err := o.events.Delete(ctx, userID, local.ID); err != nil {
				return eventSpan{}, false, err
			}
		}
		if err := o.mappings.Delete(ctx, mapping.ID); err != nil {
			return eventSpan{}, false, err
		}
		if local != nil {
			return eventSpan{local.StartAt, local.EndAt}, true, nil
		}
		return eventSpan{}, true, nil
	}

	start := rev.Start.Resolve(loc)
	end := rev.End.Resolve(loc)
	links := google.ExtractLinks(rev.Description)
	hash := Fingerprint(rev.Summary, start, end, links)

	if mapping != nil {
		if mapping.SyncHash == hash {
			return eventSpan{}, false, nil
		}
		local := &database.Event{
			ID:      mapping.LocalEventID,
			UserID:  userID,
			Title:   rev.Summary,
			StartAt: start,
			EndAt:   end,
			Links:   links,
		}
		if err := o.events.Update(ctx, local); err != nil {
			return eventSpan{}, false, err
		}
		if err := o.mappings.UpdateSyncState(ctx, mapping.ID, hash, time.Now().UTC()); err != nil {
			return eventSpan{}, false, err
		}
		o.recordHabit(userID, database.ActionUpdated, local)
		return eventSpan{start, end}, true, nil
	}

	local := &database.Event{
		UserID:  userID,
		Title:   rev.Summary,
		StartAt: start,
		EndAt:   end,
		Links:   links,
	}
	if err := o.events.Create(ctx, local); err != nil {
		return eventSpan{}, false, err
	}
	err = o.mappings.Create(ctx, &database.SyncedEventMapping{
		UserID:           userID,
		LocalEventID:     local.ID,
		RemoteEventID:    rev.ID,
		RemoteCalendarID: calendarID,
		SyncHash:         hash,
	})
	if err != nil {
		return eventSpan{}, false, err
	}
	o.recordHabit(userID, database.ActionCreated, local)
	return eventSpan{start, end}, true, nil
}

// PushEventToGoogle creates a remote copy of a local event and records the
// mapping. Returns (nil, nil) when sync is disabled for the user.
func (o *Orchestrator) PushEventToGoogle(ctx context.Context, userID, eventID string) (*database.SyncedEventMapping, error) {
	settings, err := o.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !settings.SyncEnabled || settings.CalendarID == "" {
		return nil, nil
	}

	local, err := o.events.GetByID(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if local == nil {
		return nil, &google.NotFoundError{Resource: "event", ID: eventID}
	}

	api := o.gateway(userID)
	remote, err := api.CreateEvent(ctx, settings.CalendarID, &google.EventInput{
		Summary:  local.Title,
		Start:    local.StartAt,
		End:      local.EndAt,
		TimeZone: settings.Timezone,
	})
	if err != nil {
		return nil, err
	}

	mapping := &database.SyncedEventMapping{
		UserID:           userID,
		LocalEventID:     local.ID,
		RemoteEventID:    remote.ID,
		RemoteCalendarID: settings.CalendarID,
		SyncHash:         Fingerprint(local.Title, local.StartAt, local.EndAt, local.Links),
	}
	if err := o.mappings.Create(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// PullEventFromGoogle fetches one remote event and materializes it locally
// with a mapping.
func (o *Orchestrator) PullEventFromGoogle(ctx context.Context, userID, calendarID, remoteEventID string) (*database.Event, error) {
	loc, err := o.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}

	api := o.gateway(userID)
	rev, err := api.GetEvent(ctx, calendarID, remoteEventID)
	if err != nil {
		return nil, err
	}

	start := rev.Start.Resolve(loc)
	end := rev.End.Resolve(loc)
	links := google.ExtractLinks(rev.Description)

	local := &database.Event{
		UserID:  userID,
		Title:   rev.Summary,
		StartAt: start,
		EndAt:   end,
		Links:   links,
	}
	if err := o.events.Create(ctx, local); err != nil {
		return nil, err
	}
	err = o.mappings.Create(ctx, &database.SyncedEventMapping{
		UserID:           userID,
		LocalEventID:     local.ID,
		RemoteEventID:    rev.ID,
		RemoteCalendarID: calendarID,
		SyncHash:         Fingerprint(rev.Summary, start, end, links),
	})
	if err != nil {
		return nil, err
	}

	o.recordHabit(userID, database.ActionCreated, local)
	if o.cache != nil {
		tz, start, end := loc.String(), local.StartAt, local.EndAt
		o.detach("invalidate pulled event span", func() error {
			return o.cache.InvalidateForEventSpan(context.Background(), userID, tz, start, end)
		})
	}
	return local, nil
}

// DeleteRemote removes the remote copy of a local event. The mapping row is
// left in place; the next incremental sync observes the cancelled remote
// event and reconciles it.
func (o *Orchestrator) DeleteRemote(ctx context.Context, userID, localEventID string) error {
	mapping, err := o.mappings.GetByLocalEvent(ctx, localEventID)
	if err != nil {
		return err
	}
	if mapping == nil {
		return &google.NotFoundError{Resource: "event mapping", ID: localEventID}
	}

	api := o.gateway(userID)
	return api.DeleteEvent(ctx, mapping.RemoteCalendarID, mapping.RemoteEventID)
}

// ResolveConflict applies the caller's verdict on one detected conflict.
// Use-local overwrites the remote event; use-remote overwrites the local
// one. Either way the pair ends up mapped with a fresh sync hash.
func (o *Orchestrator) ResolveConflict(ctx context.Context, userID, calendarID string, c Conflict, res Resolution) error {
	switch res {
	case ResolutionSkip:
		return nil

	case ResolutionUseLocal:
		api := o.gateway(userID)
		_, err := api.UpdateEvent(ctx, calendarID, c.Remote.ID, &google.EventInput{
			Summary: c.Local.Title,
			Start:   c.Local.StartAt,
			End:     c.Local.EndAt,
		})
		if err != nil {
			return err
		}
		hash := Fingerprint(c.Local.Title, c.Local.StartAt, c.Local.EndAt, c.Local.Links)
		return o.upsertMapping(ctx, userID, calendarID, c.Local.ID, c.Remote.ID, hash)

	case ResolutionUseRemote:
		loc, err := o.userLocation(ctx, userID)
		if err != nil {
			return err
		}
		start := c.Remote.Start.Resolve(loc)
		end := c.Remote.End.Resolve(loc)
		links := google.ExtractLinks(c.Remote.Description)
		local := &database.Event{
			ID:      c.Local.ID,
			UserID:  userID,
			Title:   c.Remote.Summary,
			StartAt: start,
			EndAt:   end,
			Links:   links,
		}
		if err := o.events.Update(ctx, local); err != nil {
			return err
		}
		hash := Fingerprint(c.Remote.Summary, start, end, links)
		return o.upsertMapping(ctx, userID, calendarID, c.Local.ID, c.Remote.ID, hash)

	default:
		return fmt.Errorf("unknown resolution %q", res)
	}
}

func (o *Orchestrator) upsertMapping(ctx context.Context, userID, calendarID, localEventID, remoteEventID, hash string) error {
	existing, err := o.mappings.GetByRemoteEvent(ctx, remoteEventID, calendarID)
	if err != nil {
		return err
	}
	if existing != nil {
		return o.mappings.UpdateSyncState(ctx, existing.ID, hash, time.Now().UTC())
	}
	return o.mappings.Create(ctx, &database.SyncedEventMapping{
		UserID:           userID,
		LocalEventID:     localEventID,
		RemoteEventID:    remoteEventID,
		RemoteCalendarID: calendarID,
		SyncHash:         hash,
	})
}

func (o *Orchestrator) userLocation(ctx context.Context, userID string) (*time.Location, error) {
	tz, err := o.settings.TimezoneFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return util.ResolveLocation(tz)
}

func (o *Orchestrator) recordHabit(userID, action string, ev *database.Event) {
	if o.habits == nil {
		return
	}
	o.detach("record event action", func() error {
		return o.habits.RecordEventAction(context.Background(), userID, action, habits.EventSnapshot{
			EventID: ev.ID,
			Title:   ev.Title,
			Start:   ev.StartAt,
			End:     ev.EndAt,
		})
	})
}
