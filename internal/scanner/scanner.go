// Package scanner reconciles library roots against the catalog: it walks
// the filesystem, hashes and extracts new or changed files, marks unseen
// models missing, and reactivates reappeared ones.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/hash"
	"github.com/meshvault/meshvault-server/internal/store"
)

// Catalog is the slice of the store the scanner drives.
type Catalog interface {
	ListModelPaths(ctx context.Context, libraryID string) (map[string]store.PathEntry, error)
	UpsertModel(ctx context.Context, obs *store.FileObservation) (*store.UpsertResult, error)
	ReactivateModel(ctx context.Context, modelID string) error
	MarkMissing(ctx context.Context, libraryID string, seen map[string]struct{}) (int64, error)
	EnsureCategoryPath(ctx context.Context, segments []string, autoDerived bool) ([]*domain.Category, error)
	AttachModelCategory(ctx context.Context, modelID, categoryID string) error
}

// extractWorkers bounds concurrent hash and extraction units in one pass.
const extractWorkers = 4

// Scanner runs diff-based scan passes over library roots.
type Scanner struct {
	catalog  Catalog
	registry *extract.Registry
	cache    *archive.Cache
	walker   *Walker
	logger   *slog.Logger
}

// New creates a scanner.
func New(catalog Catalog, registry *extract.Registry, cache *archive.Cache, logger *slog.Logger) *Scanner {
	return &Scanner{
		catalog:  catalog,
		registry: registry,
		cache:    cache,
		walker:   NewWalker(logger),
		logger:   logger,
	}
}

// Scan performs one full pass over a library. Per-file failures are logged
// and skipped; only an unreachable root aborts the pass. Mark-missing runs
// strictly after the walk completes, so a partial view never flags files
// missing.
func (s *Scanner) Scan(ctx context.Context, lib *domain.Library, tracker *ProgressTracker) (*ScanResult, error) {
	if tracker == nil {
		tracker = NewProgressTracker(nil)
	}

	result := &ScanResult{
		LibraryID: lib.ID,
		StartedAt: time.Now(),
	}

	if _, err := os.Stat(lib.Path); err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "library root unreachable: %s", lib.Path)
	}

	existing, err := s.catalog.ListModelPaths(ctx, lib.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scan started",
		"library_id", lib.ID, "root", lib.Path, "known_paths", len(existing))

	tracker.SetPhase(PhaseWalking)
	// The walk streams, so the true total is unknown until it finishes;
	// the previous pass's path count is the estimate polled mid-scan.
	tracker.SetTotal(len(existing))
	seen := make(map[string]struct{})

	// Hashing and extraction are the expensive stage; fan them out while
	// the walk streams. mu guards seen and the result counters.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)

	for r := range s.walker.Walk(ctx, lib.Path) {
		mu.Lock()
		seen[r.RelPath] = struct{}{}
		mu.Unlock()
		tracker.Increment(r.RelPath)

		r := r
		g.Go(func() error {
			s.reconcileFile(gctx, lib, r, existing, result, &mu, tracker)
			return nil
		})
	}
	_ = g.Wait()

	// A canceled walk produced a partial view; marking missing from it
	// would flag files that were never visited.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracker.SetPhase(PhaseReconciling)
	tracker.SetTotal(len(seen))
	missing, err := s.catalog.MarkMissing(ctx, lib.ID, seen)
	if err != nil {
		return nil, err
	}
	result.Missing = int(missing)

	tracker.SetPhase(PhaseComplete)
	result.CompletedAt = time.Now()
	result.Errors = len(tracker.Get().Errors)

	s.logger.Info("scan complete",
		"library_id", lib.ID,
		"added", result.Added,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"reactivated", result.Reactivated,
		"missing", result.Missing,
		"errors", result.Errors,
		"duration", result.CompletedAt.Sub(result.StartedAt))

	return result, nil
}

// reconcileFile decides what one observed file needs: nothing, a cheap
// reactivation, or the full hash-extract-upsert path. A full re-hash only
// happens when size or mtime differs from the stored value.
func (s *Scanner) reconcileFile(ctx context.Context, lib *domain.Library, r WalkResult, existing map[string]store.PathEntry, result *ScanResult, mu *sync.Mutex, tracker *ProgressTracker) {
	entry, known := existing[r.RelPath]

	if known && entry.Size == r.Size && entry.ModTime == r.ModTime {
		if entry.Status == domain.StatusMissing {
			if err := s.catalog.ReactivateModel(ctx, entry.ModelID); err != nil {
				s.fileError(tracker, r.RelPath, err)
				return
			}
			mu.Lock()
			result.Reactivated++
			mu.Unlock()
			return
		}
		mu.Lock()
		result.Unchanged++
		mu.Unlock()
		return
	}

	contentHash, err := s.hashFile(r)
	if err != nil {
		// Hash failures skip the file this pass; the next scan retries.
		s.fileError(tracker, r.RelPath, errors.Wrap(err, errors.CodeHashFailed, "hash file"))
		return
	}

	obs := &store.FileObservation{
		LibraryID:   lib.ID,
		RelPath:     r.RelPath,
		Name:        baseName(r.RelPath),
		Format:      extract.Format(r.RelPath),
		Size:        r.Size,
		ModTime:     r.ModTime,
		ContentHash: contentHash,
	}

	// An mtime-only touch re-hashes but short-circuits re-extraction:
	// identical content means geometry and thumbnails are still valid.
	if !known || entry.ContentHash != contentHash {
		obs.Geometry, obs.MetadataIncomplete = s.extractGeometry(r, contentHash)
	}

	res, err := s.catalog.UpsertModel(ctx, obs)
	if err != nil {
		s.fileError(tracker, r.RelPath, err)
		return
	}

	mu.Lock()
	switch {
	case res.IsNew:
		result.Added++
	case res.Reactivated:
		result.Reactivated++
	default:
		result.Updated++
	}
	mu.Unlock()

	if err := s.attachCategories(ctx, res.ModelID, r.RelPath); err != nil {
		s.logger.Warn("auto-category failed", "rel_path", r.RelPath, "error", err)
	}
}

// hashFile streams the file's content hash. Archive members hash the
// decompressed member stream, so a member and its extracted copy dedupe
// against each other.
func (s *Scanner) hashFile(r WalkResult) (string, error) {
	if r.Member == "" {
		return hash.File(r.AbsPath)
	}
	rc, err := archive.Open(r.AbsPath, r.Member)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return hash.Reader(rc)
}

// extractGeometry runs the format backend for the file. All extraction
// failures degrade to a cataloged-but-incomplete model.
func (s *Scanner) extractGeometry(r WalkResult, contentHash string) (*domain.GeometrySummary, bool) {
	sourcePath := r.AbsPath
	if r.Member != "" {
		var err error
		sourcePath, err = s.cache.Materialize(r.AbsPath, r.Member, contentHash)
		if err != nil {
			s.logger.Warn("archive member materialization failed",
				"archive", r.AbsPath, "member", r.Member, "error", err)
			return nil, true
		}
	}

	meta, err := s.registry.Extract(sourcePath)
	if err != nil {
		s.logger.Debug("metadata extraction degraded",
			"rel_path", r.RelPath, "error", err)
		return nil, true
	}
	return meta.Geometry, false
}

// attachCategories derives category nodes from the directory segments
// between the library root and the file, and attaches the leaf.
func (s *Scanner) attachCategories(ctx context.Context, modelID, relPath string) error {
	segments := dirSegments(relPath)
	if len(segments) == 0 {
		return nil
	}
	chain, err := s.catalog.EnsureCategoryPath(ctx, segments, true)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return nil
	}
	return s.catalog.AttachModelCategory(ctx, modelID, chain[len(chain)-1].ID)
}

func (s *Scanner) fileError(tracker *ProgressTracker, relPath string, err error) {
	s.logger.Error("scan file error", "rel_path", relPath, "error", err)
	tracker.AddError(ScanError{RelPath: relPath, Message: err.Error(), At: time.Now()})
}

// dirSegments returns the directory components of a catalog path. Archives
// count as a directory level, so members get the archive's category chain.
func dirSegments(relPath string) []string {
	flat := strings.ReplaceAll(relPath, domain.ArchiveSeparator, "/")
	dir := path.Dir(flat)
	if dir == "." || dir == "/" {
		return nil
	}
	return strings.Split(dir, "/")
}

// baseName derives the display name from the catalog path.
func baseName(relPath string) string {
	flat := strings.ReplaceAll(relPath, domain.ArchiveSeparator, "/")
	base := path.Base(flat)
	return strings.TrimSuffix(base, path.Ext(base))
}
