// Package main is the entry point for the DayKeeper sync daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dtorcivia/daykeeper/internal/cache"
	"github.com/dtorcivia/daykeeper/internal/config"
	"github.com/dtorcivia/daykeeper/internal/crypto"
	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/events"
	"github.com/dtorcivia/daykeeper/internal/google"
	"github.com/dtorcivia/daykeeper/internal/habits"
	"github.com/dtorcivia/daykeeper/internal/sync"
	"github.com/dtorcivia/daykeeper/internal/util"
	"github.com/dtorcivia/daykeeper/internal/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefaultLogger(logger)

	logger.Info("Starting DayKeeper",
		"poll_interval", cfg.Sync.PollInterval,
		"renewal_interval", cfg.Sync.RenewalInterval,
	)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger.Info("Database initialized", "path", cfg.Database.Path)

	encryptor, err := crypto.NewEncryptor(cfg.Security.EncryptionSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}

	// Storage and derived-data layers.
	cacheStore := cache.NewStore(db)
	eventRepo := events.NewRepository(db)
	recorder := habits.NewRecorder(db)

	// Remote calendar access.
	oauth := google.NewOAuthManager(cfg, db, encryptor)
	gateway := sync.NewGatewayFactory(oauth)

	// Sync engine.
	mappingRepo := sync.NewMappingRepository(db)
	settingsRepo := sync.NewSettingsRepository(db)
	orchestrator := sync.NewOrchestrator(eventRepo, mappingRepo, settingsRepo, gateway, cacheStore, recorder)
	watchManager := sync.NewWatchManager(settingsRepo, gateway, cfg.Server.WebhookURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background jobs.
	syncWorker := workers.NewSyncWorker(orchestrator, settingsRepo)
	renewalWorker := workers.NewRenewalWorker(watchManager)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.Sync.PollInterval), func() {
		syncWorker.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sync worker: %w", err)
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.Sync.RenewalInterval), func() {
		renewalWorker.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule renewal worker: %w", err)
	}
	scheduler.Start()

	// Run one sweep at startup so a restart does not wait a full interval.
	go syncWorker.RunOnce(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	logger.Info("Shutting down", "signal", sig.String())
	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn("Timed out waiting for running jobs")
	}

	return nil
}
