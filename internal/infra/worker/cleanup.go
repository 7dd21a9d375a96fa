package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/core/port"
	"github.com/arklim/social-platform-revocation/internal/infra/cache"
)

// Sweeper is the cleanup entry point exposed by the coordinator.
type Sweeper interface {
	Cleanup(ctx context.Context) (int, error)
}

// CleanupWorker periodically reclaims expired membership-tier entries and
// persists a denylist snapshot for warm starts. It runs on its own schedule
// and never blocks API calls.
type CleanupWorker struct {
	sweeper   Sweeper
	denylist  *cache.Denylist
	snapshots port.DenylistSnapshotStore // optional
	interval  time.Duration
	logger    *zap.Logger
}

// NewCleanupWorker constructs a worker sweeping on the supplied interval.
func NewCleanupWorker(sweeper Sweeper, denylist *cache.Denylist, snapshots port.DenylistSnapshotStore, interval time.Duration, logger *zap.Logger) *CleanupWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupWorker{
		sweeper:   sweeper,
		denylist:  denylist,
		snapshots: snapshots,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until the context is cancelled, sweeping on every tick.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cleanup worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep-and-snapshot pass. Exposed for operational
// tooling and tests.
func (w *CleanupWorker) RunOnce(ctx context.Context) {
	removed, err := w.sweeper.Cleanup(ctx)
	if err != nil {
		w.logger.Error("cleanup sweep failed", zap.Error(err))
		return
	}
	w.logger.Debug("cleanup sweep completed", zap.Int("removed", removed))

	if w.snapshots == nil || w.denylist == nil {
		return
	}

	snapshot, err := w.denylist.Snapshot(ctx)
	if err != nil {
		w.logger.Warn("denylist snapshot failed", zap.Error(err))
		return
	}
	if len(snapshot.Payload) == 0 {
		return
	}
	if err := w.snapshots.SaveSnapshot(ctx, *snapshot); err != nil {
		w.logger.Warn("denylist snapshot persist failed", zap.Error(err))
	}
}
