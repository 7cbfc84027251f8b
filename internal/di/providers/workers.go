package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/opensupplyhub/contribute/internal/config"
	"github.com/opensupplyhub/contribute/internal/features"
	"github.com/opensupplyhub/contribute/internal/logger"
	"github.com/opensupplyhub/contribute/internal/service"
)

// TrackerPollerHandle runs the pending submission poller.
type TrackerPollerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *TrackerPollerHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideTrackerPoller starts polling pending submissions for status changes.
func ProvideTrackerPoller(i do.Injector) (*TrackerPollerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracker := do.MustInvoke[*service.TrackerService](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		tracker.Run(ctx, cfg.Tracker.PollInterval)
	}()

	return &TrackerPollerHandle{cancel: cancel, done: done}, nil
}

// FlagsWatcherHandle reloads the feature flags file when it changes.
type FlagsWatcherHandle struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FlagsWatcherHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideFlagsWatcher starts watching the feature flags file, if one is configured.
func ProvideFlagsWatcher(i do.Injector) (*FlagsWatcherHandle, error) {
	flags := do.MustInvoke[*features.Source](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	if flags.Path() != "" {
		go func() {
			if err := flags.Watch(ctx, features.DefaultSettleDelay); err != nil {
				log.Error("Feature flags watcher error", "error", err)
			}
		}()
	}

	return &FlagsWatcherHandle{cancel: cancel}, nil
}

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job. Each run deletes
// expired sessions, releases idle workflows and compacts the Badger value log.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessions := do.MustInvoke[*SessionServiceHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	cleanup := func(initial bool) {
		count, err := sessions.Prune(ctx)
		switch {
		case err != nil && initial:
			log.Warn("Initial session cleanup failed", "error", err)
		case err != nil:
			log.Warn("Session cleanup failed", "error", err)
		case count > 0:
			log.Info("Session cleanup completed", "deleted", count)
		}
		if evicted := sessions.Evict(workflowIdle); evicted > 0 {
			log.Debug("Idle workflows released", "count", evicted)
		}
		if err := storeHandle.RunGC(); err != nil {
			log.Warn("Session store GC failed", "error", err)
		}
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		cleanup(true)

		for {
			select {
			case <-ticker.C:
				cleanup(false)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started")

	return &SessionCleanupJob{cancel: cancel}, nil
}
