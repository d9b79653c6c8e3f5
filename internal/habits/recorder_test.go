package habits

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
)

func setupTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRecorder(db)
}

func snapshotAt(start time.Time, durationMin int) EventSnapshot {
	return EventSnapshot{
		EventID: "evt_test",
		Title:   "Standup",
		Start:   start,
		End:     start.Add(time.Duration(durationMin) * time.Minute),
	}
}

func TestRecordEventAction_CentroidMean(t *testing.T) {
	r := setupTestRecorder(t)
	ctx := context.Background()

	// Monday 9:00 for 30 min, then Monday 11:00 for 60 min.
	mon := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if err := r.RecordEventAction(ctx, "user1", database.ActionCreated, snapshotAt(mon, 30)); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := r.RecordEventAction(ctx, "user1", database.ActionCreated, snapshotAt(mon.Add(2*time.Hour), 60)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	profile, err := r.GetProfile(ctx, "user1")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if profile.SampleCount != 2 {
		t.Errorf("expected 2 samples, got %d", profile.SampleCount)
	}
	if math.Abs(profile.Centroid.AvgHour-10.0) > 1e-9 {
		t.Errorf("expected avg hour 10.0, got %f", profile.Centroid.AvgHour)
	}
	if math.Abs(profile.Centroid.AvgDurationMinutes-45.0) > 1e-9 {
		t.Errorf("expected avg duration 45.0, got %f", profile.Centroid.AvgDurationMinutes)
	}
}

func TestRecordEventAction_Histogram(t *testing.T) {
	r := setupTestRecorder(t)
	ctx := context.Background()

	mon9 := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	tue14 := time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC)
	for _, start := range []time.Time{mon9, mon9.Add(10 * time.Minute), tue14} {
		if err := r.RecordEventAction(ctx, "user1", database.ActionCreated, snapshotAt(start, 30)); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	profile, err := r.GetProfile(ctx, "user1")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if got := profile.Histogram[TimeSlot{Weekday: time.Monday, Hour: 9}]; got != 2 {
		t.Errorf("expected 2 actions in Monday 9h slot, got %d", got)
	}
	if got := profile.Histogram[TimeSlot{Weekday: time.Tuesday, Hour: 14}]; got != 1 {
		t.Errorf("expected 1 action in Tuesday 14h slot, got %d", got)
	}
}

func TestRecordEventAction_ZeroStartIgnored(t *testing.T) {
	r := setupTestRecorder(t)
	ctx := context.Background()

	if err := r.RecordEventAction(ctx, "user1", database.ActionCreated, EventSnapshot{EventID: "evt_x"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	profile, err := r.GetProfile(ctx, "user1")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if profile.SampleCount != 0 {
		t.Errorf("expected zero-start snapshot to be ignored, got %d samples", profile.SampleCount)
	}
}

func TestTimeSlotHistogramJSONRoundtrip(t *testing.T) {
	h := TimeSlotHistogram{
		{Weekday: time.Monday, Hour: 9}:  3,
		{Weekday: time.Friday, Hour: 17}: 1,
	}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded TimeSlotHistogram
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(decoded))
	}
	if decoded[TimeSlot{Weekday: time.Monday, Hour: 9}] != 3 {
		t.Errorf("Monday 9h slot lost in roundtrip: %v", decoded)
	}

	var bad TimeSlotHistogram
	if err := json.Unmarshal([]byte(`{"9": 1}`), &bad); err == nil {
		t.Error("expected error for malformed slot key")
	}
}
