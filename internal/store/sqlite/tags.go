package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/id"
	"github.com/meshvault/meshvault-server/internal/store"
)

const tagColumns = `id, slug, created_at, updated_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var tag domain.Tag
	var createdAt, updatedAt string

	if err := scanner.Scan(&tag.ID, &tag.Slug, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	tag.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	tag.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// EnsureTag returns the tag with the given slug, creating it if absent.
func (s *Store) EnsureTag(ctx context.Context, slug string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE slug = ?`, slug)
	tag, err := scanTag(row)
	if err == nil {
		return tag, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, err
	}
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tags (id, slug, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		tagID, slug, now, now)
	if err != nil {
		// Lost a race with a concurrent insert; re-read the winner.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			row := s.db.QueryRowContext(ctx,
				`SELECT `+tagColumns+` FROM tags WHERE slug = ?`, slug)
			return scanTag(row)
		}
		return nil, err
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, tagID)
	return scanTag(row)
}

// AttachTag links a tag to a model. Attaching twice is a no-op.
func (s *Store) AttachTag(ctx context.Context, modelID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO model_tags (model_id, tag_id, created_at) VALUES (?, ?, ?)`,
		modelID, tagID, formatTime(time.Now()))
	return err
}

// DetachTag removes a tag from a model.
func (s *Store) DetachTag(ctx context.Context, modelID, tagID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM model_tags WHERE model_id = ? AND tag_id = ?`, modelID, tagID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListModelTags returns a model's tags ordered by slug.
func (s *Store) ListModelTags(ctx context.Context, modelID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.slug, t.created_at, t.updated_at
		FROM tags t JOIN model_tags mt ON mt.tag_id = t.id
		WHERE mt.model_id = ? ORDER BY t.slug ASC`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
