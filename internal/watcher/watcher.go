package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/meshvault/meshvault-server/internal/domain"
)

// RescanFunc requests a rescan of one library. Implemented by the job
// coordinator, which coalesces concurrent requests.
type RescanFunc func(libraryID string)

// State reports the watcher's health.
type State string

const (
	StateActive  State = "active"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// Watcher consumes settled filesystem events and maps them to library
// rescan requests.
type Watcher struct {
	backend Backend
	rescan  RescanFunc
	logger  *slog.Logger

	mu      sync.RWMutex
	roots   map[string]string // library root path -> library ID
	state   State
	lastErr error
}

// New creates a watcher over the given backend.
func New(backend Backend, rescan RescanFunc, logger *slog.Logger) *Watcher {
	return &Watcher{
		backend: backend,
		rescan:  rescan,
		logger:  logger,
		roots:   make(map[string]string),
		state:   StateStopped,
	}
}

// WatchLibrary adds a library root to the watch set.
func (w *Watcher) WatchLibrary(lib *domain.Library) error {
	root := filepath.Clean(lib.Path)
	if err := w.backend.Watch(root); err != nil {
		return err
	}

	w.mu.Lock()
	w.roots[root] = lib.ID
	w.mu.Unlock()

	w.logger.Info("watching library", "library_id", lib.ID, "root", root)
	return nil
}

// UnwatchLibrary removes a library root from the watch set.
func (w *Watcher) UnwatchLibrary(lib *domain.Library) error {
	root := filepath.Clean(lib.Path)

	w.mu.Lock()
	delete(w.roots, root)
	w.mu.Unlock()

	return w.backend.Unwatch(root)
}

// Run consumes events until the context is canceled. The watcher only ever
// requests rescans; catalog writes stay with the scanner.
func (w *Watcher) Run(ctx context.Context) error {
	w.setState(StateActive, nil)
	defer w.setState(StateStopped, nil)

	go func() {
		if err := w.backend.Start(ctx); err != nil {
			w.logger.Error("watcher backend failed", "error", err)
			w.setState(StateError, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.backend.Events():
			if !ok {
				return nil
			}
			w.dispatch(event)
		case err, ok := <-w.backend.Errors():
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
			w.setState(StateError, err)
		}
	}
}

// dispatch maps an event path to its library and requests a rescan.
func (w *Watcher) dispatch(event Event) {
	libraryID := w.libraryFor(event.Path)
	if libraryID == "" {
		w.logger.Debug("event outside watched roots", "path", event.Path)
		return
	}

	w.logger.Debug("filesystem event",
		"type", event.Type.String(), "path", event.Path, "library_id", libraryID)
	w.rescan(libraryID)
}

// libraryFor finds the library whose root contains the path, longest
// match first so nested roots resolve to the inner library.
func (w *Watcher) libraryFor(path string) string {
	path = filepath.Clean(path)

	w.mu.RLock()
	defer w.mu.RUnlock()

	best := ""
	bestLen := -1
	for root, id := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > bestLen {
				best = id
				bestLen = len(root)
			}
		}
	}
	return best
}

// Status returns the watcher state and last error, if any.
func (w *Watcher) Status() (State, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state, w.lastErr
}

func (w *Watcher) setState(state State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	w.lastErr = err
}

// Stop shuts down the backend.
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}
