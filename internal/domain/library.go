package domain

import (
	"time"

	"github.com/meshvault/meshvault-server/internal/id"
)

// Library represents a registered root directory scanned for model files.
// Removing a library stops future scans but does not cascade-delete its
// models; they stay browsable until manually pruned.
type Library struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLibrary creates an enabled library with a fresh ID.
func NewLibrary(name, path string) *Library {
	now := time.Now()
	return &Library{
		ID:        id.MustGenerate(id.PrefixLibrary),
		Name:      name,
		Path:      path,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
func (l *Library) Touch() {
	l.UpdatedAt = time.Now()
}
