package events

import (
	"context"
	"testing"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
)

func setupTestRepo(t *testing.T) (*Repository, *database.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return NewRepository(db), db
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	ctx := context.Background()
	ev := &database.Event{
		UserID:  "user-1",
		Title:   "Dentist",
		StartAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Links:   []string{"https://example.com/b", "https://example.com/a"},
	}

	if err := repo.Create(ctx, ev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ev.ID == "" {
		t.Fatal("Create did not assign an ID")
	}

	got, err := repo.GetByID(ctx, "user-1", ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("event not found after create")
	}
	if got.Title != "Dentist" {
		t.Errorf("Title = %q, want %q", got.Title, "Dentist")
	}
	if !got.StartAt.Equal(ev.StartAt) {
		t.Errorf("StartAt = %v, want %v", got.StartAt, ev.StartAt)
	}
	if len(got.Links) != 2 || got.Links[0] != "https://example.com/b" {
		t.Errorf("Links = %v", got.Links)
	}
}

func TestRepository_GetByID_WrongUser(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	ctx := context.Background()
	ev := &database.Event{
		UserID:  "user-1",
		Title:   "Private",
		StartAt: time.Now().UTC(),
		EndAt:   time.Now().UTC().Add(time.Hour),
	}
	repo.Create(ctx, ev)

	got, err := repo.GetByID(ctx, "user-2", ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Error("event leaked across users")
	}
}

func TestRepository_Update(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	ctx := context.Background()
	ev := &database.Event{
		UserID:  "user-1",
		Title:   "Standup",
		StartAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	repo.Create(ctx, ev)

	ev.Title = "Standup (moved)"
	ev.StartAt = ev.StartAt.Add(time.Hour)
	ev.EndAt = ev.EndAt.Add(time.Hour)
	if err := repo.Update(ctx, ev); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "user-1", ev.ID)
	if got.Title != "Standup (moved)" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestRepository_Update_Missing(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	err := repo.Update(context.Background(), &database.Event{
		ID:      "evt_missing",
		UserID:  "user-1",
		Title:   "Ghost",
		StartAt: time.Now().UTC(),
		EndAt:   time.Now().UTC().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected error updating missing event")
	}
}

func TestRepository_ListInRange(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	ctx := context.Background()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	inside := &database.Event{
		UserID: "user-1", Title: "inside",
		StartAt: day.Add(9 * time.Hour), EndAt: day.Add(10 * time.Hour),
	}
	straddling := &database.Event{
		UserID: "user-1", Title: "straddling",
		StartAt: day.Add(-2 * time.Hour), EndAt: day.Add(2 * time.Hour),
	}
	outside := &database.Event{
		UserID: "user-1", Title: "outside",
		StartAt: day.Add(48 * time.Hour), EndAt: day.Add(49 * time.Hour),
	}
	for _, ev := range []*database.Event{inside, straddling, outside} {
		if err := repo.Create(ctx, ev); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListInRange(ctx, "user-1", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListInRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (inside + straddling)", len(got))
	}
	if got[0].Title != "straddling" || got[1].Title != "inside" {
		t.Errorf("unexpected order: %q, %q", got[0].Title, got[1].Title)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo, db := setupTestRepo(t)
	defer db.Close()

	ctx := context.Background()
	ev := &database.Event{
		UserID:  "user-1",
		Title:   "Gone",
		StartAt: time.Now().UTC(),
		EndAt:   time.Now().UTC().Add(time.Hour),
	}
	repo.Create(ctx, ev)

	if err := repo.Delete(ctx, "user-1", ev.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, "user-1", ev.ID)
	if got != nil {
		t.Error("event still present after delete")
	}
}
