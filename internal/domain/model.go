package domain

import (
	"path"
	"strings"
	"time"
)

// ModelStatus tracks whether the model's file was observed by the latest scan.
type ModelStatus string

const (
	// StatusActive means the file was present at its path on the last scan.
	StatusActive ModelStatus = "active"
	// StatusMissing means a scan failed to observe the file's path. The row
	// is kept so tags, categories, and favorites survive a reappearance.
	StatusMissing ModelStatus = "missing"
)

// ArchiveSeparator splits an archive path from a member path inside it.
// "kits/dragon.zip::parts/wing_left.stl" addresses wing_left.stl inside
// kits/dragon.zip. Archive members are cataloged like plain files; their
// bytes are materialized into a cache on demand.
const ArchiveSeparator = "::"

// Model is one 3D file discovered under a library root.
// (LibraryID, RelPath) is unique. ContentHash is not unique: equal hashes
// across active models form a duplicate group.
type Model struct {
	ID        string `json:"id"`
	LibraryID string `json:"library_id"`

	// RelPath is the path relative to the library root, using forward
	// slashes. Archive members use the ArchiveSeparator convention.
	RelPath string `json:"rel_path"`
	Name    string `json:"name"`

	ContentHash string      `json:"content_hash"`
	Size        int64       `json:"size"`
	ModTime     int64       `json:"mod_time"` // unix millis, change gate for re-hashing
	Format      string      `json:"format"`   // lowercase extension without dot: "stl"
	Status      ModelStatus `json:"status"`

	Description string `json:"description,omitempty"`

	Geometry  *GeometrySummary `json:"geometry,omitempty"`
	Thumbnail *ThumbnailInfo   `json:"thumbnail,omitempty"`

	// MetadataIncomplete is set when extraction failed (ParseFailed) or no
	// backend supports the format; the model stays cataloged with size and
	// hash only.
	MetadataIncomplete bool `json:"metadata_incomplete"`

	ScannedAt time.Time `json:"scanned_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GeometrySummary holds extracted mesh statistics.
type GeometrySummary struct {
	VertexCount int     `json:"vertex_count"`
	FaceCount   int     `json:"face_count"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Depth       float64 `json:"depth"`
}

// IsDegenerate reports whether the bounding box has no usable extent.
// Degenerate geometry cannot be camera-framed and forces the placeholder
// thumbnail.
func (g *GeometrySummary) IsDegenerate() bool {
	return g == nil || (g.Width == 0 && g.Height == 0 && g.Depth == 0)
}

// ThumbnailState is the lifecycle of a model's thumbnail.
type ThumbnailState string

const (
	ThumbnailNone      ThumbnailState = "none"
	ThumbnailPending   ThumbnailState = "pending"
	ThumbnailRendering ThumbnailState = "rendering"
	ThumbnailCurrent   ThumbnailState = "current"
	ThumbnailStale     ThumbnailState = "stale"
	ThumbnailFailed    ThumbnailState = "failed"
)

// RenderMode selects the thumbnail rasterization style.
type RenderMode string

const (
	RenderWireframe RenderMode = "wireframe"
	RenderSolid     RenderMode = "solid"
)

// ParseRenderMode validates a render mode string.
func ParseRenderMode(s string) (RenderMode, bool) {
	switch RenderMode(s) {
	case RenderWireframe, RenderSolid:
		return RenderMode(s), true
	default:
		return "", false
	}
}

// ThumbnailInfo records how the current thumbnail was generated.
type ThumbnailInfo struct {
	Mode        RenderMode `json:"mode"`
	Quality     string     `json:"quality"`
	SourceHash  string     `json:"source_hash"` // content hash at render time
	BlurHash    string     `json:"blur_hash,omitempty"`
	Placeholder bool       `json:"placeholder"` // render failed, generic icon persisted
	GeneratedAt time.Time  `json:"generated_at"`
}

// StaleFor reports whether the thumbnail needs regeneration under the given
// global settings. A thumbnail is stale when its recorded mode or quality
// differs from the configured defaults, or when the file's content hash has
// changed since generation. Changing the global mode therefore marks the
// whole catalog stale at once; there is no per-model override.
func (t *ThumbnailInfo) StaleFor(mode RenderMode, quality, contentHash string) bool {
	if t == nil {
		return false
	}
	return t.Mode != mode || t.Quality != quality || t.SourceHash != contentHash
}

// ThumbnailStateFor derives the reported state from stored info and the
// current global settings.
func (m *Model) ThumbnailStateFor(mode RenderMode, quality string) ThumbnailState {
	switch {
	case m.Thumbnail == nil:
		return ThumbnailNone
	case m.Thumbnail.Placeholder:
		return ThumbnailFailed
	case m.Thumbnail.StaleFor(mode, quality, m.ContentHash):
		return ThumbnailStale
	default:
		return ThumbnailCurrent
	}
}

// InArchive reports whether the model is an archive member.
func (m *Model) InArchive() bool {
	return strings.Contains(m.RelPath, ArchiveSeparator)
}

// ArchivePaths splits the relative path into archive and member components.
// Returns ("", path) for plain files.
func (m *Model) ArchivePaths() (archive, member string) {
	if i := strings.Index(m.RelPath, ArchiveSeparator); i >= 0 {
		return m.RelPath[:i], m.RelPath[i+len(ArchiveSeparator):]
	}
	return "", m.RelPath
}

// DisplayName derives a name from the relative path when none is set.
func (m *Model) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	_, member := m.ArchivePaths()
	base := path.Base(member)
	return strings.TrimSuffix(base, path.Ext(base))
}

// DuplicateGroup is a derived, non-persisted view of active models sharing
// one content hash.
type DuplicateGroup struct {
	ContentHash string   `json:"content_hash"`
	ModelIDs    []string `json:"model_ids"`
}

// Size returns the number of models in the group.
func (g *DuplicateGroup) Size() int {
	return len(g.ModelIDs)
}
