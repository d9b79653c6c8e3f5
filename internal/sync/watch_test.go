package sync

import (
	"context"
	"testing"
	"time"

	"github.com/dtorcivia/daykeeper/internal/database"
)

func setupWatchManager(t *testing.T) (*WatchManager, *fakeGateway, *SettingsRepository) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	gateway := &fakeGateway{}
	settings := NewSettingsRepository(db)
	factory := func(userID string) CalendarAPI { return gateway }
	m := NewWatchManager(settings, factory, "https://daykeeper.example.com/webhooks/google")
	return m, gateway, settings
}

func TestWatchManager_SetupPersistsChannel(t *testing.T) {
	m, gateway, settings := setupWatchManager(t)
	ctx := context.Background()

	if err := settings.Upsert(ctx, "user1", true, "primary", "UTC"); err != nil {
		t.Fatalf("upsert settings failed: %v", err)
	}

	result, err := m.Setup(ctx, "user1", "primary")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if result.ChannelID == "" || result.ResourceID == "" {
		t.Fatalf("unexpected watch result %+v", result)
	}
	if len(gateway.watchReqs) != 1 {
		t.Fatalf("expected one watch registration, got %d", len(gateway.watchReqs))
	}
	req := gateway.watchReqs[0]
	if req.Address != "https://daykeeper.example.com/webhooks/google" {
		t.Errorf("unexpected webhook address %q", req.Address)
	}
	if until := time.Until(req.Expiration); until < 6*24*time.Hour || until > 8*24*time.Hour {
		t.Errorf("expected roughly one week of channel lifetime, got %v", until)
	}

	stored, err := settings.Get(ctx, "user1")
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if stored.WatchChannelID != result.ChannelID || stored.WatchResourceID != result.ResourceID {
		t.Errorf("expected channel persisted, got %+v", stored)
	}
	if !stored.WatchExpiration.Valid {
		t.Error("expected expiration persisted")
	}
}

func TestWatchManager_RenewSkipsHealthyChannel(t *testing.T) {
	m, gateway, settings := setupWatchManager(t)
	ctx := context.Background()

	if err := settings.Upsert(ctx, "user1", true, "primary", "UTC"); err != nil {
		t.Fatalf("upsert settings failed: %v", err)
	}
	// Channel with 48 hours of life left needs no renewal.
	expiration := time.Now().Add(48 * time.Hour)
	if err := settings.UpdateWatch(ctx, "user1", "chan-old", "res-old", expiration); err != nil {
		t.Fatalf("update watch failed: %v", err)
	}

	if err := m.Renew(ctx, "user1"); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if len(gateway.stopped) != 0 || len(gateway.watchReqs) != 0 {
		t.Error("expected no provider calls for a healthy channel")
	}
}

func TestWatchManager_RenewReplacesExpiringChannel(t *testing.T) {
	m, gateway, settings := setupWatchManager(t)
	ctx := context.Background()

	if err := settings.Upsert(ctx, "user1", true, "primary", "UTC"); err != nil {
		t.Fatalf("upsert settings failed: %v", err)
	}
	// 20 hours left: inside the renewal window.
	expiration := time.Now().Add(20 * time.Hour)
	if err := settings.UpdateWatch(ctx, "user1", "chan-old", "res-old", expiration); err != nil {
		t.Fatalf("update watch failed: %v", err)
	}

	if err := m.Renew(ctx, "user1"); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if len(gateway.stopped) != 1 || gateway.stopped[0] != "chan-old" {
		t.Errorf("expected old channel stopped, got %v", gateway.stopped)
	}
	if len(gateway.watchReqs) != 1 {
		t.Fatalf("expected replacement channel registered, got %d", len(gateway.watchReqs))
	}

	stored, err := settings.Get(ctx, "user1")
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if stored.WatchChannelID == "chan-old" || stored.WatchChannelID == "" {
		t.Errorf("expected new channel id persisted, got %q", stored.WatchChannelID)
	}
}

func TestWatchManager_RenewSkipsDisabledUser(t *testing.T) {
	m, gateway, settings := setupWatchManager(t)
	ctx := context.Background()

	if err := settings.Upsert(ctx, "user1", false, "primary", "UTC"); err != nil {
		t.Fatalf("upsert settings failed: %v", err)
	}
	if err := settings.UpdateWatch(ctx, "user1", "chan-old", "res-old", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("update watch failed: %v", err)
	}

	if err := m.Renew(ctx, "user1"); err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if len(gateway.watchReqs) != 0 {
		t.Error("expected no renewal for a sync-disabled user")
	}
}

func TestWatchManager_StopClearsState(t *testing.T) {
	m, gateway, settings := setupWatchManager(t)
	ctx := context.Background()

	if err := settings.Upsert(ctx, "user1", true, "primary", "UTC"); err != nil {
		t.Fatalf("upsert settings failed: %v", err)
	}
	if err := settings.UpdateWatch(ctx, "user1", "chan-1", "res-1", time.Now().Add(48*time.Hour)); err != nil {
		t.Fatalf("update watch failed: %v", err)
	}

	if err := m.Stop(ctx, "user1"); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(gateway.stopped) != 1 || gateway.stopped[0] != "chan-1" {
		t.Errorf("expected channel stopped, got %v", gateway.stopped)
	}

	stored, err := settings.Get(ctx, "user1")
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if stored.WatchChannelID != "" || stored.WatchExpiration.Valid {
		t.Errorf("expected watch state cleared, got %+v", stored)
	}

	// Stopping again is a no-op.
	if err := m.Stop(ctx, "user1"); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if len(gateway.stopped) != 1 {
		t.Error("expected no second provider call")
	}
}

func TestWatchManager_ListExpiringSoon(t *testing.T) {
	m, _, settings := setupWatchManager(t)
	ctx := context.Background()

	for user, hours := range map[string]int{"soon": 10, "later": 72} {
		if err := settings.Upsert(ctx, user, true, "primary", "UTC"); err != nil {
			t.Fatalf("upsert settings failed: %v", err)
		}
		if err := settings.UpdateWatch(ctx, user, "chan-"+user, "res-"+user, time.Now().Add(time.Duration(hours)*time.Hour)); err != nil {
			t.Fatalf("update watch failed: %v", err)
		}
	}

	users, err := m.ListExpiringSoon(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 || users[0] != "soon" {
		t.Errorf("expected only the soon-expiring user, got %v", users)
	}
}
