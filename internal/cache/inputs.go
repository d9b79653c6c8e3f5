package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/events"
	"github.com/dtorcivia/daykeeper/internal/planner"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// Loader assembles the input snapshot for one user-day. The source queries
// are independent, so they run concurrently.
type Loader struct {
	events  *events.Repository
	planner *planner.Repository
}

func NewLoader(ev *events.Repository, pl *planner.Repository) *Loader {
	return &Loader{events: ev, planner: pl}
}

// LoadDay gathers the events, goals, reminders, bulletins, todos and user
// context that feed the hash for one local day.
func (l *Loader) LoadDay(ctx context.Context, userID, timezone, dayKey string) (*Snapshot, error) {
	loc, err := util.ResolveLocation(timezone)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(util.DayKeyLayout, dayKey, loc)
	if err != nil {
		return nil, err
	}
	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)

	snap := &Snapshot{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		evs, err := l.events.ListInRange(ctx, userID, dayStart, dayEnd)
		if err != nil {
			return err
		}
		snap.Events = evs
		return nil
	})
	g.Go(func() error {
		goals, err := l.planner.ListGoals(ctx, userID)
		if err != nil {
			return err
		}
		snap.Goals = goals
		return nil
	})
	g.Go(func() error {
		reminders, err := l.planner.ListRemindersInRange(ctx, userID, dayStart, dayEnd)
		if err != nil {
			return err
		}
		snap.Reminders = reminders
		return nil
	})
	g.Go(func() error {
		bulletins, err := l.planner.ListBulletins(ctx, userID)
		if err != nil {
			return err
		}
		snap.Bulletins = bulletins
		return nil
	})
	g.Go(func() error {
		todos, err := l.planner.ListTodoItems(ctx, userID)
		if err != nil {
			return err
		}
		snap.Todos = todos
		return nil
	})
	g.Go(func() error {
		uc, err := l.planner.GetUserContext(ctx, userID)
		if err != nil {
			return err
		}
		snap.Context = uc
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Service ties the loader, hasher and store together into the lookup the
// rest of the application uses: compute the fresh hash, serve the cached
// payload on a hash match, otherwise report a miss so the caller can
// rebuild and Put.
type Service struct {
	loader *Loader
	store  *Store
}

func NewService(loader *Loader, store *Store) *Service {
	return &Service{loader: loader, store: store}
}

// Lookup returns the cached payload and true on a hash hit, or the fresh
// hash and false on a miss. On a miss the caller derives the payload and
// stores it with Save.
func (s *Service) Lookup(ctx context.Context, userID, timezone, dayKey, namespace string) (string, string, bool, error) {
	snap, err := s.loader.LoadDay(ctx, userID, timezone, dayKey)
	if err != nil {
		return "", "", false, err
	}
	hash := HashFor(namespace, snap)

	entry, err := s.store.Get(ctx, userID, timezone, dayKey, namespace, hash)
	if err != nil {
		return "", hash, false, err
	}
	if entry == nil {
		return "", hash, false, nil
	}
	return entry.Payload, hash, true, nil
}

// Save stores a freshly derived payload under the hash Lookup reported.
func (s *Service) Save(ctx context.Context, userID, timezone, dayKey, namespace, hash, payload string) error {
	return s.store.Put(ctx, &database.DailyCacheEntry{
		UserID:      userID,
		Timezone:    timezone,
		DayKey:      dayKey,
		Namespace:   namespace,
		ContentHash: hash,
		Payload:     payload,
	})
}
