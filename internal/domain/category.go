package domain

import (
	"strings"
	"time"
)

// Category represents a hierarchical label: Terrain -> Buildings -> Ruined.
// The scanner auto-derives categories from directory segments between the
// library root and the file; rescans reconcile idempotently against the
// materialized path so no duplicate nodes appear for the same path.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`                // Display name: "Ruined"
	Slug     string `json:"slug"`                // URL-safe key: "ruined"
	ParentID string `json:"parent_id,omitempty"` // empty for root
	Path     string `json:"path"`                // Materialized path: "/terrain/buildings/ruined"
	Depth    int    `json:"depth"`               // 0=root, 1=child, 2=grandchild

	// AutoDerived categories were created by the scanner from directory
	// structure; manually created ones are never reconciled away.
	AutoDerived bool `json:"auto_derived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot returns true if this category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == ""
}

// BuildPath constructs the materialized path from parent path and slug.
func (c *Category) BuildPath(parentPath string) string {
	if parentPath == "" {
		return "/" + c.Slug
	}
	return parentPath + "/" + c.Slug
}

// Slugify converts a directory segment to a canonical category slug.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
