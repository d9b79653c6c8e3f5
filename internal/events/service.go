package events

import (
	"context"
	"fmt"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/habits"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// Invalidator removes derived-cache rows whose inputs changed.
type Invalidator interface {
	InvalidateForEventSpan(ctx context.Context, userID, timezone string, start, end time.Time) error
	InvalidateAllForUser(ctx context.Context, userID string) error
}

// ActionRecorder records event actions against the user's habit profile.
type ActionRecorder interface {
	RecordEventAction(ctx context.Context, userID, action string, snap habits.EventSnapshot) error
}

// TimezoneSource resolves the timezone a user's day keys are computed in.
type TimezoneSource interface {
	TimezoneFor(ctx context.Context, userID string) (string, error)
}

// Service wraps the event repository with the side effects a user-driven
// write carries: derived-cache invalidation for the touched days and habit
// recording. Both run detached and never fail the write.
type Service struct {
	repo      *Repository
	cache     Invalidator
	habits    ActionRecorder
	timezones TimezoneSource
}

// NewService creates an event service.
func NewService(repo *Repository, cache Invalidator, recorder ActionRecorder, timezones TimezoneSource) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		habits:    recorder,
		timezones: timezones,
	}
}

// Create stores a new event and fires the write side effects.
func (s *Service) Create(ctx context.Context, ev *database.Event) (*database.Event, error) {
	if ev.EndAt.Before(ev.StartAt) {
		return nil, fmt.Errorf("event end precedes start")
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, err
	}

	s.fireSideEffects(ev.UserID, database.ActionCreated, ev, nil)
	return ev, nil
}

// Update replaces an event and invalidates both the old and new day spans.
func (s *Service) Update(ctx context.Context, ev *database.Event) error {
	if ev.EndAt.Before(ev.StartAt) {
		return fmt.Errorf("event end precedes start")
	}

	old, err := s.repo.GetByID(ctx, ev.UserID, ev.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("event %s not found", ev.ID)
	}

	if err := s.repo.Update(ctx, ev); err != nil {
		return err
	}

	s.fireSideEffects(ev.UserID, database.ActionUpdated, ev, old)
	return nil
}

// Delete removes an event and invalidates its day span.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	old, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if old == nil {
		return nil
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.fireSideEffects(userID, database.ActionDeleted, old, nil)
	return nil
}

// Repo exposes the underlying repository for read paths.
func (s *Service) Repo() *Repository {
	return s.repo
}

// fireSideEffects invalidates touched days and records the habit action.
// Detached: the caller's write has already succeeded and must not be failed
// or blocked by either hook.
func (s *Service) fireSideEffects(userID, action string, ev, previous *database.Event) {
	util.Detach("event cache invalidation", func() error {
		ctx := context.Background()
		tz, err := s.timezones.TimezoneFor(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.cache.InvalidateForEventSpan(ctx, userID, tz, ev.StartAt, ev.EndAt); err != nil {
			return err
		}
		if previous != nil {
			return s.cache.InvalidateForEventSpan(ctx, userID, tz, previous.StartAt, previous.EndAt)
		}
		return nil
	})

	util.Detach("habit recording", func() error {
		return s.habits.RecordEventAction(context.Background(), userID, action, habits.EventSnapshot{
			EventID: ev.ID,
			Title:   ev.Title,
			Start:   ev.StartAt,
			End:     ev.EndAt,
		})
	})
}
