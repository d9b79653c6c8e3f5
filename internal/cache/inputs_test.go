package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/events"
	"github.com/dtorcivia/daykeeper/internal/planner"
)

func setupTestService(t *testing.T) (*Service, *events.Repository, *planner.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	ev := events.NewRepository(db)
	pl := planner.NewRepository(db, store)
	return NewService(NewLoader(ev, pl), store), ev, pl
}

func TestService_MissThenHit(t *testing.T) {
	svc, ev, pl := setupTestService(t)
	ctx := context.Background()

	err := ev.Create(ctx, &database.Event{
		UserID:  "user1",
		Title:   "Standup",
		StartAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create event failed: %v", err)
	}
	if err := pl.CreateTodoItem(ctx, &database.TodoItem{UserID: "user1", Text: "Prep agenda", Position: 1}); err != nil {
		t.Fatalf("create todo failed: %v", err)
	}

	// Cold cache: miss with a usable hash.
	payload, hash, hit, err := svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if hit {
		t.Fatal("expected miss on cold cache")
	}
	if hash == "" {
		t.Fatal("expected fresh hash on miss")
	}

	if err := svc.Save(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary, hash, "derived summary"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	payload, _, hit, err = svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after save with unchanged inputs")
	}
	if payload != "derived summary" {
		t.Errorf("unexpected payload %q", payload)
	}
}

func TestService_BulletinChangeInvalidates(t *testing.T) {
	svc, _, pl := setupTestService(t)
	ctx := context.Background()

	_, hash, _, err := svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if err := svc.Save(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary, hash, "stale summary"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := pl.CreateBulletin(ctx, &database.Bulletin{UserID: "user1", Content: "Office closed Friday"}); err != nil {
		t.Fatalf("create bulletin failed: %v", err)
	}

	_, newHash, hit, err := svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if hit {
		t.Error("expected miss after a bulletin was posted")
	}
	if newHash == hash {
		t.Error("expected bulletin content to feed the input hash")
	}
}

func TestService_InvalidTimezoneRejected(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, _, _, err := svc.Lookup(context.Background(), "user1", "Not/AZone", "2025-06-02", database.CacheNamespaceSummary)
	if err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestService_InputChangeInvalidates(t *testing.T) {
	svc, ev, _ := setupTestService(t)
	ctx := context.Background()

	event := &database.Event{
		UserID:  "user1",
		Title:   "Standup",
		StartAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	}
	if err := ev.Create(ctx, event); err != nil {
		t.Fatalf("create event failed: %v", err)
	}

	_, hash, _, err := svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if err := svc.Save(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary, hash, "stale summary"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	event.Title = "Standup (moved)"
	if err := ev.Update(ctx, event); err != nil {
		t.Fatalf("update event failed: %v", err)
	}

	_, newHash, hit, err := svc.Lookup(ctx, "user1", "UTC", "2025-06-02", database.CacheNamespaceSummary)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if hit {
		t.Error("expected miss after input changed")
	}
	if newHash == hash {
		t.Error("expected hash to change with inputs")
	}
}
