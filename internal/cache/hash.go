// Package cache stores derived daily data keyed by a content hash of its
// inputs. A cached payload is served only while the hash of the current
// inputs matches the hash recorded when the payload was stored.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
)

// Snapshot holds everything that feeds one day's derived data.
type Snapshot struct {
	Events    []database.Event
	Goals     []database.Goal
	Reminders []database.Reminder
	Bulletins []database.Bulletin
	Todos     []database.TodoItem
	Context   *database.UserContext
}

// SummaryHash fingerprints a snapshot for the summary consumer. Unchecked
// todos contribute in list order.
func SummaryHash(snap *Snapshot) string {
	todos := uncheckedTodos(snap.Todos)
	return hashSnapshot(snap, todos)
}

// SuggestionsHash fingerprints a snapshot for the suggestions consumer.
// Unchecked todos contribute sorted by due date, undated items last. The
// two consumers normalize todos differently, so identical snapshots can
// produce different hashes per namespace.
func SuggestionsHash(snap *Snapshot) string {
	todos := uncheckedTodos(snap.Todos)
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i].DueDate, todos[j].DueDate
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})
	return hashSnapshot(snap, todos)
}

// HashFor returns the fingerprint for the given namespace.
func HashFor(namespace string, snap *Snapshot) string {
	if namespace == database.CacheNamespaceSuggestions {
		return SuggestionsHash(snap)
	}
	return SummaryHash(snap)
}

func uncheckedTodos(todos []database.TodoItem) []database.TodoItem {
	out := make([]database.TodoItem, 0, len(todos))
	for _, item := range todos {
		if !item.Checked {
			out = append(out, item)
		}
	}
	return out
}

// hashSnapshot serializes the snapshot into a canonical byte stream and
// hashes it. Events and reminders are sorted by time so query order cannot
// change the hash; todos arrive pre-normalized by the caller.
func hashSnapshot(snap *Snapshot, todos []database.TodoItem) string {
	events := make([]database.Event, len(snap.Events))
	copy(events, snap.Events)
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartAt.Equal(events[j].StartAt) {
			return events[i].StartAt.Before(events[j].StartAt)
		}
		return events[i].ID < events[j].ID
	})

	goals := make([]database.Goal, len(snap.Goals))
	copy(goals, snap.Goals)
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })

	reminders := make([]database.Reminder, len(snap.Reminders))
	copy(reminders, snap.Reminders)
	sort.Slice(reminders, func(i, j int) bool {
		if !reminders[i].RemindAt.Equal(reminders[j].RemindAt) {
			return reminders[i].RemindAt.Before(reminders[j].RemindAt)
		}
		return reminders[i].ID < reminders[j].ID
	})

	bulletins := make([]database.Bulletin, len(snap.Bulletins))
	copy(bulletins, snap.Bulletins)
	sort.Slice(bulletins, func(i, j int) bool { return bulletins[i].Content < bulletins[j].Content })

	var b strings.Builder
	for _, ev := range events {
		writeField(&b, "event", ev.ID, ev.Title, ev.StartAt.UTC().Format(time.RFC3339), ev.EndAt.UTC().Format(time.RFC3339), strings.Join(ev.Links, ","))
	}
	for _, g := range goals {
		writeField(&b, "goal", g.ID, g.Title, g.Notes, strconv.Itoa(g.Position))
	}
	for _, rem := range reminders {
		writeField(&b, "reminder", rem.ID, rem.Title, rem.RemindAt.UTC().Format(time.RFC3339))
	}
	for _, bul := range bulletins {
		writeField(&b, "bulletin", bul.Content)
	}
	// Todos hash by content alone so deleting and recreating an identical
	// item cannot force a rebuild.
	for _, item := range todos {
		writeField(&b, "todo", item.Text, item.DueDate)
	}
	if snap.Context != nil {
		writeField(&b, "context", snap.Context.ProfileText, snap.Context.ViewMode)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeField(b *strings.Builder, kind string, parts ...string) {
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteString("|")
		b.WriteString(p)
	}
	b.WriteString("\n")
}
