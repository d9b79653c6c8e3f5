package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/google"
)

// Conflict detection thresholds.
const (
	bucketGranularity   = 15 * time.Minute
	timeTolerance       = 5 * time.Minute
	similarityThreshold = 0.70
)

// ConflictType tags which dimension a conflicting pair differs in.
type ConflictType string

const (
	ConflictTitle ConflictType = "title"
	ConflictTime  ConflictType = "time"
	ConflictBoth  ConflictType = "both"
)

// Conflict pairs one local and one remote event whose time windows overlap
// and which differ in title and/or time beyond tolerance. Conflicts are
// transient: produced by initial sync, resolved by the caller, never stored.
type Conflict struct {
	Local       database.Event
	Remote      google.Event
	Type        ConflictType
	Description string
}

// DetectConflicts compares a local and a remote event set. Events are
// bucketed by their 15-minute-rounded time window and only pairs sharing a
// bucket are compared.
//
// Known limitation, kept deliberately: pairs whose rounded windows differ
// (an event at 9:07 against one at 8:53) are never compared even when they
// materially overlap. The bucketing is an approximation, not a superset of
// all overlapping pairs.
func DetectConflicts(local []database.Event, remote []google.Event, loc *time.Location) []Conflict {
	if loc == nil {
		loc = time.UTC
	}

	remoteBuckets := make(map[string][]google.Event)
	for _, rev := range remote {
		start := rev.Start.Resolve(loc)
		end := rev.End.Resolve(loc)
		if start.IsZero() || end.IsZero() {
			continue
		}
		key := bucketKey(start, end)
		remoteBuckets[key] = append(remoteBuckets[key], rev)
	}

	var conflicts []Conflict
	for _, lev := range local {
		key := bucketKey(lev.StartAt, lev.EndAt)
		for _, rev := range remoteBuckets[key] {
			if c := compare(lev, rev, loc); c != nil {
				conflicts = append(conflicts, *c)
			}
		}
	}

	return conflicts
}

// compare evaluates one local/remote pair and returns its conflict, if any.
func compare(lev database.Event, rev google.Event, loc *time.Location) *Conflict {
	remoteStart := rev.Start.Resolve(loc)
	remoteEnd := rev.End.Resolve(loc)

	// Pairs that do not overlap in time are never conflicts
	if !lev.StartAt.Before(remoteEnd) || !lev.EndAt.After(remoteStart) {
		return nil
	}

	timeConflict := absDelta(lev.StartAt, remoteStart) > timeTolerance ||
		absDelta(lev.EndAt, remoteEnd) > timeTolerance
	titleConflict := titleSimilarity(lev.Title, rev.Summary) > similarityThreshold

	var ctype ConflictType
	switch {
	case timeConflict && titleConflict:
		ctype = ConflictBoth
	case timeConflict:
		ctype = ConflictTime
	case titleConflict:
		ctype = ConflictTitle
	default:
		// Overlapping but matching within tolerance: the same event, a
		// legitimate sync target rather than a conflict
		return nil
	}

	return &Conflict{
		Local:  lev,
		Remote: rev,
		Type:   ctype,
		Description: fmt.Sprintf("local %q (%s – %s) vs Google %q (%s – %s)",
			lev.Title,
			lev.StartAt.In(loc).Format("Jan 2 15:04"),
			lev.EndAt.In(loc).Format("15:04"),
			rev.Summary,
			remoteStart.In(loc).Format("Jan 2 15:04"),
			remoteEnd.In(loc).Format("15:04"),
		),
	}
}

// bucketKey rounds both endpoints down to the nearest 15-minute boundary.
func bucketKey(start, end time.Time) string {
	rs := start.Truncate(bucketGranularity)
	re := end.Truncate(bucketGranularity)
	return fmt.Sprintf("%d-%d", rs.Unix(), re.Unix())
}

// titleSimilarity returns normalized Levenshtein similarity between two
// lowercased titles: (longerLen - editDistance) / longerLen.
func titleSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	longer := len([]rune(a))
	if l := len([]rune(b)); l > longer {
		longer = l
	}
	if longer == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return float64(longer-dist) / float64(longer)
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
