package store

import "github.com/meshvault/meshvault-server/internal/domain"

// FileObservation is one file seen during a scan pass, with whatever the
// hasher and extractor could determine about it. The scanner streams these
// to the catalog; the thumbnail pipeline consumes the resulting models.
type FileObservation struct {
	LibraryID string
	RelPath   string // forward slashes; archive members use "::"
	Name      string
	Format    string // lowercase extension without dot

	Size    int64
	ModTime int64 // unix millis

	ContentHash string
	Geometry    *domain.GeometrySummary

	// MetadataIncomplete marks files whose extraction failed or whose
	// format has no available backend; they are cataloged regardless.
	MetadataIncomplete bool
}

// UpsertResult reports what a per-file upsert did.
type UpsertResult struct {
	ModelID string
	IsNew   bool
	// HashChanged is true when an existing model's content hash differs
	// from the stored value; drives thumbnail invalidation.
	HashChanged bool
	// Reactivated is true when a previously-missing model was observed
	// again at its path and flipped back to active in place.
	Reactivated bool
}

// PathEntry is the differ's view of one cataloged path.
type PathEntry struct {
	ModelID     string
	Size        int64
	ModTime     int64
	ContentHash string
	Status      domain.ModelStatus
}
