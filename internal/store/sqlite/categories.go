package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/id"
)

const categoryColumns = `id, name, slug, parent_id, path, depth, auto_derived, created_at, updated_at`

func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var cat domain.Category
	var (
		parentID    sql.NullString
		autoDerived int
		createdAt   string
		updatedAt   string
	)

	err := scanner.Scan(
		&cat.ID,
		&cat.Name,
		&cat.Slug,
		&parentID,
		&cat.Path,
		&cat.Depth,
		&autoDerived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cat.ParentID = parentID.String
	cat.AutoDerived = autoDerived != 0

	cat.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	cat.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// EnsureCategoryPath walks a chain of directory segments and returns the
// categories along it, creating missing nodes. Reconciliation keys on the
// materialized path, so rescans of the same directory tree are idempotent.
func (s *Store) EnsureCategoryPath(ctx context.Context, segments []string, autoDerived bool) ([]*domain.Category, error) {
	chain := make([]*domain.Category, 0, len(segments))

	parentID := ""
	parentPath := ""
	for depth, segment := range segments {
		slug := domain.Slugify(segment)
		if slug == "" {
			continue
		}
		path := parentPath + "/" + slug

		cat, err := s.getCategoryByPath(ctx, path)
		if err == sql.ErrNoRows {
			cat, err = s.insertCategory(ctx, segment, slug, parentID, path, depth, autoDerived)
		}
		if err != nil {
			return nil, err
		}

		chain = append(chain, cat)
		parentID = cat.ID
		parentPath = cat.Path
	}
	return chain, nil
}

func (s *Store) getCategoryByPath(ctx context.Context, path string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE path = ?`, path)
	return scanCategory(row)
}

func (s *Store) insertCategory(ctx context.Context, name, slug, parentID, path string, depth int, autoDerived bool) (*domain.Category, error) {
	catID, err := id.Generate(id.PrefixCategory)
	if err != nil {
		return nil, err
	}
	now := formatTime(time.Now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, parent_id, path, depth, auto_derived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		catID, name, slug, nullString(parentID), path, depth, boolToInt(autoDerived), now, now)
	if err != nil {
		// Lost a race with a concurrent insert; re-read the winner.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return s.getCategoryByPath(ctx, path)
		}
		return nil, err
	}

	return s.getCategoryByPath(ctx, path)
}

// AttachModelCategory links a model to a category. Attaching twice is a no-op.
func (s *Store) AttachModelCategory(ctx context.Context, modelID, categoryID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO model_categories (model_id, category_id, created_at) VALUES (?, ?, ?)`,
		modelID, categoryID, formatTime(time.Now()))
	return err
}

// ListCategories returns the full category tree ordered by path.
func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY path ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// ListModelCategories returns a model's categories ordered by depth.
func (s *Store) ListModelCategories(ctx context.Context, modelID string) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.parent_id, c.path, c.depth, c.auto_derived, c.created_at, c.updated_at
		FROM categories c JOIN model_categories mc ON mc.category_id = c.id
		WHERE mc.model_id = ? ORDER BY c.depth ASC`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}
