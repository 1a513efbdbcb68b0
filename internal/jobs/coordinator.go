package jobs

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/scanner"
)

// Catalog is the slice of the store the coordinator reads and writes.
type Catalog interface {
	GetLibrary(ctx context.Context, id string) (*domain.Library, error)
	ListEnabledLibraries(ctx context.Context) ([]*domain.Library, error)
	ListActiveModels(ctx context.Context, libraryID string) ([]*domain.Model, error)
	ListThumbnailBacklog(ctx context.Context, mode domain.RenderMode, quality string, limit int) ([]*domain.Model, error)
	CountThumbnailBacklog(ctx context.Context, mode domain.RenderMode, quality string) (int64, error)
	EnsureTag(ctx context.Context, slug string) (*domain.Tag, error)
	AttachTag(ctx context.Context, modelID, tagID string) error
	Ping() error
}

// Scanner runs one scan pass over a library.
type Scanner interface {
	Scan(ctx context.Context, lib *domain.Library, tracker *scanner.ProgressTracker) (*scanner.ScanResult, error)
}

// Thumbnailer renders one model's thumbnail.
type Thumbnailer interface {
	Generate(ctx context.Context, model *domain.Model, libraryRoot string, mode domain.RenderMode, quality string) (*domain.ThumbnailInfo, error)
}

// WatcherStatus reports watcher health for the aggregated snapshot.
type WatcherStatus func() (state string, lastErr error)

// Options configures the coordinator.
type Options struct {
	// Workers bounds concurrent CPU-heavy units (scan passes, renders).
	Workers int
	// Mode and Quality are the global thumbnail settings.
	Mode    domain.RenderMode
	Quality string
}

func (o *Options) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Mode == "" {
		o.Mode = domain.RenderWireframe
	}
	if o.Quality == "" {
		o.Quality = "standard"
	}
}

// Coordinator owns background job state and the worker pool.
type Coordinator struct {
	catalog       Catalog
	scanner       Scanner
	thumbs        Thumbnailer
	watcherStatus WatcherStatus
	opts          Options
	logger        *slog.Logger

	// slots is the worker-pool semaphore. Every CPU-heavy unit holds a
	// slot for its duration.
	slots chan struct{}

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu         sync.Mutex
	jobs       map[string]*Job
	scansByLib map[string]*Job // at most one active scan per library
}

// NewCoordinator creates a coordinator. Call Close to cancel in-flight jobs
// on shutdown.
func NewCoordinator(catalog Catalog, sc Scanner, thumbs Thumbnailer, opts Options, logger *slog.Logger) *Coordinator {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		catalog:    catalog,
		scanner:    sc,
		thumbs:     thumbs,
		opts:       opts,
		logger:     logger,
		slots:      make(chan struct{}, opts.Workers),
		baseCtx:    ctx,
		stop:       cancel,
		jobs:       make(map[string]*Job),
		scansByLib: make(map[string]*Job),
	}
}

// SetWatcherStatus wires the watcher health source. Optional.
func (c *Coordinator) SetWatcherStatus(fn WatcherStatus) {
	c.watcherStatus = fn
}

// Close cancels all in-flight jobs and waits for them to stop.
func (c *Coordinator) Close() {
	c.stop()
	c.wg.Wait()
}

// TriggerScan starts a scan of one library and returns the job handle.
// A trigger for a library that already has a scan running is coalesced: the
// running job's handle comes back with coalesced=true and no new work
// starts. Coalescing is informational, not an error.
func (c *Coordinator) TriggerScan(libraryID string) (*Job, bool, error) {
	lib, err := c.catalog.GetLibrary(c.baseCtx, libraryID)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	if running, ok := c.scansByLib[libraryID]; ok {
		c.mu.Unlock()
		c.logger.Info("scan already running, coalescing trigger", "library_id", libraryID)
		return running, true, nil
	}

	job := c.newJob(KindScan, libraryID)
	c.scansByLib[libraryID] = job
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runScan(job, lib)
	return job, false, nil
}

// TriggerScanAll starts scans for every enabled library. Libraries with a
// scan already running are coalesced into the running handles.
func (c *Coordinator) TriggerScanAll() ([]*Job, error) {
	libs, err := c.catalog.ListEnabledLibraries(c.baseCtx)
	if err != nil {
		return nil, err
	}

	var handles []*Job
	for _, lib := range libs {
		job, _, err := c.TriggerScan(lib.ID)
		if err != nil {
			return nil, err
		}
		handles = append(handles, job)
	}
	return handles, nil
}

func (c *Coordinator) runScan(job *Job, lib *domain.Library) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.scansByLib, lib.ID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(c.baseCtx)
	defer cancel()
	job.setCancel(cancel)

	// Running scans are never preempted; this slot wait only delays the
	// start.
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		job.finish(StateCanceled, ctx.Err())
		return
	}

	job.start()
	tracker := scanner.NewProgressTracker(func(p *scanner.Progress) {
		job.mu.Lock()
		job.total = p.Total
		job.completed = p.Current
		job.errors = len(p.Errors)
		job.mu.Unlock()
	})

	result, err := c.scanner.Scan(ctx, lib, tracker)
	if err != nil {
		c.logger.Error("scan failed", "library_id", lib.ID, "error", err)
		job.finish(StateFailed, err)
		return
	}

	// The tracker resets its counters on phase changes; pin the final
	// numbers from the result so a completed job polls coherently.
	job.mu.Lock()
	job.total = result.Added + result.Updated + result.Unchanged + result.Reactivated + result.Errors
	job.completed = job.total
	job.errors = result.Errors
	job.mu.Unlock()
	job.finish(StateCompleted, nil)
}

// RegenerateThumbnails renders every model whose thumbnail is absent or
// stale under the given mode. The job checkpoints between models, so
// cancellation never leaves a model half-updated.
func (c *Coordinator) RegenerateThumbnails(mode domain.RenderMode) (*Job, error) {
	if _, ok := domain.ParseRenderMode(string(mode)); !ok {
		return nil, errors.Validation("invalid render mode")
	}

	c.mu.Lock()
	job := c.newJob(KindThumbnails, "")
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runRegenerate(job, mode)
	return job, nil
}

func (c *Coordinator) runRegenerate(job *Job, mode domain.RenderMode) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(c.baseCtx)
	defer cancel()
	job.setCancel(cancel)
	job.start()

	models, err := c.catalog.ListThumbnailBacklog(ctx, mode, c.opts.Quality, 0)
	if err != nil {
		job.finish(StateFailed, err)
		return
	}
	job.setTotal(len(models))

	roots, err := c.libraryRoots(ctx)
	if err != nil {
		job.finish(StateFailed, err)
		return
	}

	for _, model := range models {
		// Cooperative checkpoint between units.
		if ctx.Err() != nil {
			job.finish(StateCanceled, ctx.Err())
			return
		}

		root, ok := roots[model.LibraryID]
		if !ok {
			job.addError(errors.NotFoundf("library %s for model %s", model.LibraryID, model.ID))
			continue
		}

		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			job.finish(StateCanceled, ctx.Err())
			return
		}
		_, err := c.thumbs.Generate(ctx, model, root, mode, c.opts.Quality)
		<-c.slots

		if err != nil {
			c.logger.Error("thumbnail regeneration failed",
				"model_id", model.ID, "error", err)
			job.addError(err)
			continue
		}
		job.addCompleted()
	}

	job.finish(StateCompleted, nil)
}

// libraryRoots maps library IDs to their on-disk roots for render source
// resolution.
func (c *Coordinator) libraryRoots(ctx context.Context) (map[string]string, error) {
	libs, err := c.catalog.ListEnabledLibraries(ctx)
	if err != nil {
		return nil, err
	}
	roots := make(map[string]string, len(libs))
	for _, lib := range libs {
		roots[lib.ID] = lib.Path
	}
	return roots, nil
}

// AutoTag derives tags from model filename tokens across the whole catalog
// and attaches them. Idempotent; rerunning adds nothing new.
func (c *Coordinator) AutoTag() (*Job, error) {
	c.mu.Lock()
	job := c.newJob(KindAutoTag, "")
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runAutoTag(job)
	return job, nil
}

// autoTagTokens maps filename tokens to canonical tag slugs.
var autoTagTokens = map[string]string{
	"supported":    "supported",
	"presupported": "pre-supported",
	"unsupported":  "unsupported",
	"resin":        "resin",
	"fdm":          "fdm",
	"hollow":       "hollowed",
	"hollowed":     "hollowed",
}

func (c *Coordinator) runAutoTag(job *Job) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(c.baseCtx)
	defer cancel()
	job.setCancel(cancel)
	job.start()

	models, err := c.catalog.ListActiveModels(ctx, "")
	if err != nil {
		job.finish(StateFailed, err)
		return
	}
	job.setTotal(len(models))

	for _, model := range models {
		if ctx.Err() != nil {
			job.finish(StateCanceled, ctx.Err())
			return
		}
		if err := c.tagModel(ctx, model); err != nil {
			job.addError(err)
			continue
		}
		job.addCompleted()
	}

	job.finish(StateCompleted, nil)
}

func (c *Coordinator) tagModel(ctx context.Context, model *domain.Model) error {
	for _, token := range nameTokens(model.DisplayName()) {
		slug, ok := autoTagTokens[token]
		if !ok {
			continue
		}
		tag, err := c.catalog.EnsureTag(ctx, slug)
		if err != nil {
			return err
		}
		if err := c.catalog.AttachTag(ctx, model.ID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// nameTokens splits a display name into lowercase alphanumeric tokens.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// Status returns a job snapshot by handle.
func (c *Coordinator) Status(handle string) (Snapshot, error) {
	c.mu.Lock()
	job, ok := c.jobs[handle]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, errors.NotFoundf("unknown job handle %s", handle)
	}
	return job.Snapshot(), nil
}

// Cancel requests cooperative cancellation of a job. Scans are not
// preempted mid-pass; regeneration and tagging stop at the next checkpoint.
func (c *Coordinator) Cancel(handle string) error {
	c.mu.Lock()
	job, ok := c.jobs[handle]
	c.mu.Unlock()
	if !ok {
		return errors.NotFoundf("unknown job handle %s", handle)
	}
	job.requestCancel()
	return nil
}

// Health is the aggregated pipeline health snapshot.
type Health struct {
	Scans            map[string]Snapshot `json:"scans"` // library ID -> active scan
	WatcherState     string              `json:"watcher_state"`
	WatcherError     string              `json:"watcher_error,omitempty"`
	DatabaseOK       bool                `json:"database_ok"`
	ThumbnailBacklog int64               `json:"thumbnail_backlog"`
}

// HealthSnapshot reports scanner, watcher, database, and backlog state.
func (c *Coordinator) HealthSnapshot(ctx context.Context) Health {
	h := Health{
		Scans:        make(map[string]Snapshot),
		WatcherState: "disabled",
	}

	c.mu.Lock()
	for libID, job := range c.scansByLib {
		h.Scans[libID] = job.Snapshot()
	}
	c.mu.Unlock()

	if c.watcherStatus != nil {
		state, err := c.watcherStatus()
		h.WatcherState = state
		if err != nil {
			h.WatcherError = err.Error()
		}
	}

	h.DatabaseOK = c.catalog.Ping() == nil

	backlog, err := c.catalog.CountThumbnailBacklog(ctx, c.opts.Mode, c.opts.Quality)
	if err != nil {
		c.logger.Error("backlog count failed", "error", err)
	} else {
		h.ThumbnailBacklog = backlog
	}

	return h
}

// newJob registers a job; callers hold c.mu.
func (c *Coordinator) newJob(kind Kind, libraryID string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		LibraryID: libraryID,
		state:     StateQueued,
		done:      make(chan struct{}),
	}
	c.jobs[job.ID] = job
	return job
}
