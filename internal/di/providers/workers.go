package providers

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/samber/do/v2"

	"github.com/meshvault/meshvault-server/internal/config"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/jobs"
	"github.com/meshvault/meshvault-server/internal/logger"
	"github.com/meshvault/meshvault-server/internal/scanner"
	"github.com/meshvault/meshvault-server/internal/thumbs"
	"github.com/meshvault/meshvault-server/internal/watcher"
)

// CoordinatorHandle wraps the job coordinator with shutdown capability.
type CoordinatorHandle struct {
	*jobs.Coordinator
}

// Shutdown implements do.Shutdownable.
func (h *CoordinatorHandle) Shutdown() error {
	h.Coordinator.Close()
	return nil
}

// ProvideCoordinator provides the background job coordinator.
func ProvideCoordinator(i do.Injector) (*CoordinatorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sc := do.MustInvoke[*scanner.Scanner](i)
	pipeline := do.MustInvoke[*thumbs.Pipeline](i)

	mode, _ := domain.ParseRenderMode(cfg.Thumbnails.Mode)
	coordinator := jobs.NewCoordinator(storeHandle.Store, sc, pipeline, jobs.Options{
		Workers: cfg.Scanner.Workers,
		Mode:    mode,
		Quality: cfg.Thumbnails.Quality,
	}, log.Logger)

	log.Info("Job coordinator started", "workers", cfg.Scanner.Workers)

	return &CoordinatorHandle{Coordinator: coordinator}, nil
}

// FileWatcherHandle wraps the file watcher with shutdown capability.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the filesystem watcher. When watching is
// disabled in config the handle carries a nil watcher.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coordinatorHandle := do.MustInvoke[*CoordinatorHandle](i)

	if !cfg.Watcher.Enabled {
		log.Info("File watcher disabled")
		return &FileWatcherHandle{}, nil
	}

	backend, err := watcher.NewBackend(log.Logger, watcher.Options{
		SettleDelay:  cfg.Watcher.SettleDelay,
		IgnoreHidden: true,
	})
	if err != nil {
		return nil, err
	}

	coordinator := coordinatorHandle.Coordinator
	w := watcher.New(backend, func(libraryID string) {
		if _, _, err := coordinator.TriggerScan(libraryID); err != nil {
			log.Warn("Watcher-triggered scan failed", "library_id", libraryID, "error", err)
		}
	}, log.Logger)

	// Watch every enabled library.
	libraries, err := storeHandle.ListEnabledLibraries(context.Background())
	if err != nil {
		return nil, err
	}
	for _, lib := range libraries {
		if err := w.WatchLibrary(lib); err != nil {
			log.Warn("Failed to watch library", "library_id", lib.ID, "path", lib.Path, "error", err)
			continue
		}
		log.Info("Watching library", "library_id", lib.ID, "path", lib.Path)
	}

	// Run the event loop in the background.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	// Feed watcher health into the coordinator's snapshot.
	coordinator.SetWatcherStatus(func() (string, error) {
		state, lastErr := w.Status()
		return string(state), lastErr
	})

	log.Info("File watcher started", "libraries", len(libraries))

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// CronHandle wraps the periodic scan scheduler with shutdown capability.
type CronHandle struct {
	cron *cron.Cron
}

// Shutdown implements do.Shutdownable.
func (h *CronHandle) Shutdown() error {
	if h.cron == nil {
		return nil
	}
	<-h.cron.Stop().Done()
	return nil
}

// ProvideScanScheduler provides the periodic scan scheduler. Disabled when
// no schedule is configured.
func ProvideScanScheduler(i do.Injector) (*CronHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	coordinatorHandle := do.MustInvoke[*CoordinatorHandle](i)

	if cfg.Scanner.Schedule == "" {
		return &CronHandle{}, nil
	}

	coordinator := coordinatorHandle.Coordinator
	c := cron.New()
	if _, err := c.AddFunc(cfg.Scanner.Schedule, func() {
		handles, err := coordinator.TriggerScanAll()
		if err != nil {
			log.Warn("Scheduled scan failed to start", "error", err)
			return
		}
		log.Info("Scheduled scan started", "jobs", len(handles))
	}); err != nil {
		return nil, err
	}
	c.Start()

	log.Info("Scan scheduler started", "schedule", cfg.Scanner.Schedule)

	return &CronHandle{cron: c}, nil
}
