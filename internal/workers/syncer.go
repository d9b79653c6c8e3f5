// Package workers holds the periodic background jobs: the incremental sync
// sweep and watch channel renewal. Scheduling lives in the server entry
// point; each worker exposes a single RunOnce pass.
package workers

import (
	"context"
	"time"

	"github.com/dtorcivia/daykeeper/internal/sync"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// SyncWorker runs incremental sync for every sync-enabled user. It is the
// polling fallback for users whose watch channels are missing or broken.
type SyncWorker struct {
	orchestrator *sync.Orchestrator
	settings     *sync.SettingsRepository
}

func NewSyncWorker(orchestrator *sync.Orchestrator, settings *sync.SettingsRepository) *SyncWorker {
	return &SyncWorker{orchestrator: orchestrator, settings: settings}
}

// RunOnce performs one sweep. Per-user failures are logged and do not stop
// the sweep.
func (w *SyncWorker) RunOnce(ctx context.Context) {
	started := time.Now()
	users, err := w.settings.ListSyncEnabled(ctx)
	if err != nil {
		util.Error("Sync sweep failed to list users", "error", err.Error())
		return
	}
	if len(users) == 0 {
		return
	}

	util.Debug("Starting sync sweep", "users", len(users))

	var synced, failed int
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		result := w.orchestrator.PerformIncrementalSync(ctx, userID)
		if !result.Success {
			failed++
			util.Warn("Incremental sync failed", "user_id", userID, "errors", result.Errors)
			continue
		}
		synced += result.Synced
		if len(result.Errors) > 0 {
			util.Warn("Incremental sync completed with errors", "user_id", userID, "synced", result.Synced, "errors", result.Errors)
		}
	}

	util.Info("Sync sweep complete",
		"users", len(users),
		"events_synced", synced,
		"failed_users", failed,
		"duration", time.Since(started).Round(time.Millisecond),
	)
}
