// Package extract parses geometry metadata from model files.
//
// Formats are handled by a capability-keyed registry of backends rather
// than extension switch statements, so adding a format never touches the
// scanner. Backends fail with typed FormatUnsupported or ParseFailed
// errors; the scanner catalogs such files with degraded metadata instead
// of dropping them.
package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/mesh"
)

// Metadata is the result of extracting one file.
type Metadata struct {
	Geometry *domain.GeometrySummary
}

// Backend extracts metadata for a family of formats.
type Backend interface {
	// Supports reports whether the backend handles the lowercase
	// extension (without dot).
	Supports(format string) bool

	// Extract parses the file at path. Returns FormatUnsupported when a
	// required optional dependency is absent, ParseFailed for corrupt
	// input.
	Extract(path string) (*Metadata, error)
}

// MeshLoader is implemented by backends whose formats carry renderable
// triangle geometry. The thumbnail pipeline uses it to obtain the mesh.
type MeshLoader interface {
	LoadMesh(path string) (*mesh.Mesh, error)
}

// Registry dispatches extraction to the first backend supporting a format.
type Registry struct {
	backends []Backend
	logger   *slog.Logger
}

// NewRegistry creates a registry with the default backends.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		backends: []Backend{
			&MeshBackend{},
			&GCodeBackend{},
			&StepBackend{},
		},
		logger: logger,
	}
}

// Register appends a backend. Later registrations do not shadow earlier
// ones; the first supporting backend wins.
func (r *Registry) Register(b Backend) {
	r.backends = append(r.backends, b)
}

// Supports reports whether any backend handles the format.
func (r *Registry) Supports(format string) bool {
	return r.backendFor(format) != nil
}

// Extract parses the file, dispatching on its extension.
func (r *Registry) Extract(path string) (*Metadata, error) {
	format := Format(path)
	b := r.backendFor(format)
	if b == nil {
		return nil, errors.FormatUnsupported("no backend for format " + format)
	}
	return b.Extract(path)
}

// LoadMesh loads renderable geometry for the file, or FormatUnsupported if
// its backend has none (G-code, STEP without the native kernel).
func (r *Registry) LoadMesh(path string) (*mesh.Mesh, error) {
	format := Format(path)
	b := r.backendFor(format)
	if b == nil {
		return nil, errors.FormatUnsupported("no backend for format " + format)
	}
	loader, ok := b.(MeshLoader)
	if !ok {
		return nil, errors.FormatUnsupported("format " + format + " has no renderable mesh")
	}
	return loader.LoadMesh(path)
}

func (r *Registry) backendFor(format string) Backend {
	for _, b := range r.backends {
		if b.Supports(format) {
			return b
		}
	}
	return nil
}

// Format normalizes a path to its lowercase extension without the dot.
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// IsModelFile reports whether a Format-normalized extension belongs to a
// cataloged format. Unsupported-but-cataloged formats (STEP) are included:
// they stay visible with degraded metadata.
func IsModelFile(ext string) bool {
	return modelExtensions[strings.ToLower(ext)]
}

// Extension set for file classification, keyed the way Format reports
// extensions: lowercase, no dot.
var modelExtensions = map[string]bool{
	"stl":   true,
	"obj":   true,
	"3mf":   true,
	"gcode": true,
	"step":  true,
	"stp":   true,
}

// summarize converts a loaded mesh into a geometry summary.
func summarize(m *mesh.Mesh) *domain.GeometrySummary {
	b := m.Bounds()
	size := b.Size()
	return &domain.GeometrySummary{
		VertexCount: m.VertexCount(),
		FaceCount:   m.TriangleCount(),
		Width:       size.X,
		Height:      size.Y,
		Depth:       size.Z,
	}
}

// readFile wraps os.ReadFile with the pipeline's IO error code.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- paths come from the scanner walk
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "read %s", path)
	}
	return data, nil
}
