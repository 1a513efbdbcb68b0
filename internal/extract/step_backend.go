package extract

import (
	"github.com/meshvault/meshvault-server/internal/errors"
)

// StepBackend claims STEP CAD files. Tessellating B-rep geometry needs a
// native CAD kernel, which is an optional dependency this build does not
// link; the backend exists so STEP files are cataloged with size and hash,
// flagged metadata-incomplete, rather than excluded from the catalog.
type StepBackend struct {
	// Kernel, when non-nil, provides tessellation via an optional native
	// integration.
	Kernel Backend
}

// Supports implements Backend.
func (b *StepBackend) Supports(format string) bool {
	return format == "step" || format == "stp"
}

// Extract implements Backend.
func (b *StepBackend) Extract(path string) (*Metadata, error) {
	if b.Kernel != nil {
		return b.Kernel.Extract(path)
	}
	return nil, errors.FormatUnsupported("step tessellation kernel not available")
}
