// Package habits accumulates per-user scheduling behavior from event
// actions. The profile is deliberately small: a running centroid of when
// the user schedules things, and a weekday-hour histogram of activity.
package habits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
)

// EventSnapshot is the slice of an event the recorder cares about, captured
// at action time so later edits to the event do not rewrite history.
type EventSnapshot struct {
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
}

// Centroid is the running mean of event start times and durations.
type Centroid struct {
	AvgHour            float64 `json:"avg_hour"`
	AvgMinute          float64 `json:"avg_minute"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// TimeSlot identifies one weekday-hour bucket.
type TimeSlot struct {
	Weekday time.Weekday
	Hour    int
}

// TimeSlotHistogram counts event actions per weekday-hour slot. It
// marshals with "weekday-hour" string keys since JSON objects cannot key
// on structs.
type TimeSlotHistogram map[TimeSlot]int

func (h TimeSlotHistogram) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(h))
	for slot, count := range h {
		out[fmt.Sprintf("%d-%d", int(slot.Weekday), slot.Hour)] = count
	}
	return json.Marshal(out)
}

func (h *TimeSlotHistogram) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(TimeSlotHistogram, len(raw))
	for key, count := range raw {
		weekday, hour, err := parseSlotKey(key)
		if err != nil {
			return err
		}
		out[TimeSlot{Weekday: weekday, Hour: hour}] = count
	}
	*h = out
	return nil
}

func parseSlotKey(key string) (time.Weekday, int, error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed slot key %q", key)
	}
	weekday, err := strconv.Atoi(parts[0])
	if err != nil || weekday < 0 || weekday > 6 {
		return 0, 0, fmt.Errorf("malformed slot key %q", key)
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed slot key %q", key)
	}
	return time.Weekday(weekday), hour, nil
}

// Profile is one user's accumulated scheduling behavior.
type Profile struct {
	UserID      string
	Centroid    Centroid
	Histogram   TimeSlotHistogram
	SampleCount int
}

// Recorder persists behavioral profiles. Updates happen in memory and are
// written back as JSON in one upsert.
type Recorder struct {
	db *database.DB
}

func NewRecorder(db *database.DB) *Recorder {
	return &Recorder{db: db}
}

// RecordEventAction folds one event action into the user's profile. The
// centroid updates as an incremental mean over the sample count; the
// histogram slot for the event's start time increments by one.
func (r *Recorder) RecordEventAction(ctx context.Context, userID, action string, snap EventSnapshot) error {
	if snap.Start.IsZero() {
		return nil
	}

	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	n := float64(profile.SampleCount)
	hour := float64(snap.Start.Hour())
	minute := float64(snap.Start.Minute())
	duration := snap.End.Sub(snap.Start).Minutes()
	if duration < 0 {
		duration = 0
	}

	profile.Centroid.AvgHour = (profile.Centroid.AvgHour*n + hour) / (n + 1)
	profile.Centroid.AvgMinute = (profile.Centroid.AvgMinute*n + minute) / (n + 1)
	profile.Centroid.AvgDurationMinutes = (profile.Centroid.AvgDurationMinutes*n + duration) / (n + 1)
	profile.SampleCount++

	slot := TimeSlot{Weekday: snap.Start.Weekday(), Hour: snap.Start.Hour()}
	profile.Histogram[slot]++

	return r.saveProfile(ctx, profile)
}

// GetProfile loads a user's profile, returning an empty one for users with
// no recorded actions yet.
func (r *Recorder) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT centroid, histogram, sample_count
		FROM habit_profiles WHERE user_id = ?
	`, userID)

	var centroidJSON, histogramJSON string
	profile := &Profile{UserID: userID, Histogram: make(TimeSlotHistogram)}
	err := row.Scan(&centroidJSON, &histogramJSON, &profile.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load habit profile: %w", err)
	}

	if err := json.Unmarshal([]byte(centroidJSON), &profile.Centroid); err != nil {
		return nil, fmt.Errorf("failed to decode habit centroid: %w", err)
	}
	if err := json.Unmarshal([]byte(histogramJSON), &profile.Histogram); err != nil {
		return nil, fmt.Errorf("failed to decode habit histogram: %w", err)
	}
	return profile, nil
}

func (r *Recorder) saveProfile(ctx context.Context, profile *Profile) error {
	centroidJSON, err := json.Marshal(profile.Centroid)
	if err != nil {
		return err
	}
	histogramJSON, err := json.Marshal(profile.Histogram)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO habit_profiles (user_id, centroid, histogram, sample_count, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			centroid = excluded.centroid,
			histogram = excluded.histogram,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at
	`, profile.UserID, string(centroidJSON), string(histogramJSON), profile.SampleCount)
	if err != nil {
		return fmt.Errorf("failed to save habit profile: %w", err)
	}
	return nil
}
