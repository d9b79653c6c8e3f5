package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtorcivia/daykeeper/internal/google"
	"github.com/dtorcivia/daykeeper/internal/util"
)

const (
	// watchLifetime is how far out new channels are asked to expire.
	// Google caps calendar channels at roughly a week.
	watchLifetime = 7 * 24 * time.Hour

	// renewalWindow is how close to expiration a channel must be before
	// renewal replaces it.
	renewalWindow = 24 * time.Hour
)

// WatchManager maintains push-notification channels so the provider can
// tell us when a calendar changes instead of us polling for it.
type WatchManager struct {
	settings   *SettingsRepository
	gateway    GatewayFactory
	webhookURL string

	now func() time.Time // test seam
}

func NewWatchManager(settings *SettingsRepository, gateway GatewayFactory, webhookURL string) *WatchManager {
	return &WatchManager{
		settings:   settings,
		gateway:    gateway,
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

// Setup registers a fresh watch channel for the user's calendar and
// persists its identifiers.
func (m *WatchManager) Setup(ctx context.Context, userID, calendarID string) (*google.WatchResult, error) {
	api := m.gateway(userID)
	req := google.WatchRequest{
		ChannelID:  uuid.NewString(),
		Address:    m.webhookURL,
		Expiration: m.now().Add(watchLifetime),
	}
	result, err := api.Watch(ctx, calendarID, req)
	if err != nil {
		return nil, fmt.Errorf("registering watch channel: %w", err)
	}
	if err := m.settings.UpdateWatch(ctx, userID, result.ChannelID, result.ResourceID, result.Expiration); err != nil {
		return nil, err
	}
	util.Info("Watch channel registered", "user_id", userID, "channel_id", result.ChannelID, "expires", result.Expiration)
	return result, nil
}

// Renew replaces the user's watch channel when it is close to expiring.
// Channels with more than a day of life left are left alone.
func (m *WatchManager) Renew(ctx context.Context, userID string) error {
	settings, err := m.settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !settings.SyncEnabled || settings.CalendarID == "" || settings.WatchChannelID == "" {
		return nil
	}
	if settings.WatchExpiration.Valid && settings.WatchExpiration.Time.After(m.now().Add(renewalWindow)) {
		return nil
	}

	// Stop the old channel first. A failure here is logged and ignored;
	// the channel is about to expire on its own anyway.
	api := m.gateway(userID)
	if err := api.StopWatch(ctx, settings.WatchChannelID, settings.WatchResourceID); err != nil {
		util.Warn("Failed to stop expiring watch channel", "user_id", userID, "channel_id", settings.WatchChannelID, "error", err.Error())
	}

	_, err = m.Setup(ctx, userID, settings.CalendarID)
	return err
}

// Stop tears down the user's watch channel and clears the stored state.
// No-op when the user has no channel.
func (m *WatchManager) Stop(ctx context.Context, userID string) error {
	settings, err := m.settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	if settings.WatchChannelID == "" {
		return nil
	}

	api := m.gateway(userID)
	if err := api.StopWatch(ctx, settings.WatchChannelID, settings.WatchResourceID); err != nil {
		return fmt.Errorf("stopping watch channel: %w", err)
	}
	return m.settings.ClearWatch(ctx, userID)
}

// ListExpiringSoon returns users whose watch channels expire within the
// renewal window.
func (m *WatchManager) ListExpiringSoon(ctx context.Context) ([]string, error) {
	return m.settings.ListWatchExpiringBefore(ctx, m.now().Add(renewalWindow))
}
