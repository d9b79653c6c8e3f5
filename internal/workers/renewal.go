package workers

import (
	"context"

	"github.com/dtorcivia/daykeeper/internal/sync"
	"github.com/dtorcivia/daykeeper/internal/util"
)

// RenewalWorker replaces watch channels before they expire so change
// notifications keep flowing.
type RenewalWorker struct {
	watches *sync.WatchManager
}

func NewRenewalWorker(watches *sync.WatchManager) *RenewalWorker {
	return &RenewalWorker{watches: watches}
}

// RunOnce renews every channel inside the renewal window.
func (w *RenewalWorker) RunOnce(ctx context.Context) {
	users, err := w.watches.ListExpiringSoon(ctx)
	if err != nil {
		util.Error("Renewal sweep failed to list channels", "error", err.Error())
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if err := w.watches.Renew(ctx, userID); err != nil {
			util.Warn("Watch renewal failed", "user_id", userID, "error", err.Error())
			continue
		}
		util.Info("Watch channel renewed", "user_id", userID)
	}
}
