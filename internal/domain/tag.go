package domain

import "time"

// Tag represents a flat label attached many-to-many to models.
// Slug is the source of truth; clients transform for display: "pre-supported" → "Pre Supported".
type Tag struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"` // Canonical form: lowercase, hyphenated
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}

// ModelTag represents the many-to-many relationship between models and tags.
type ModelTag struct {
	ModelID   string    `json:"model_id"`
	TagID     string    `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
