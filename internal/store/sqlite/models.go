package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/id"
	"github.com/meshvault/meshvault-server/internal/store"
)

// modelColumns is the ordered list of columns selected in model queries.
// Must match the scan order in scanModel.
const modelColumns = `id, created_at, updated_at, scanned_at, library_id, rel_path, name,
	description, format, content_hash, size, mod_time, status, metadata_incomplete,
	vertex_count, face_count, bounds_w, bounds_h, bounds_d,
	thumb_mode, thumb_quality, thumb_source_hash, thumb_blur_hash, thumb_placeholder, thumb_generated_at`

// scanModel scans a sql.Row (or sql.Rows via its Scan method) into a domain.Model.
func scanModel(scanner interface{ Scan(dest ...any) error }) (*domain.Model, error) {
	var m domain.Model

	var (
		createdAt   string
		updatedAt   string
		scannedAt   string
		description sql.NullString
		status      string
		incomplete  int

		vertexCount sql.NullInt64
		faceCount   sql.NullInt64
		boundsW     sql.NullFloat64
		boundsH     sql.NullFloat64
		boundsD     sql.NullFloat64

		thumbMode        sql.NullString
		thumbQuality     sql.NullString
		thumbSourceHash  sql.NullString
		thumbBlurHash    sql.NullString
		thumbPlaceholder int
		thumbGeneratedAt sql.NullString
	)

	err := scanner.Scan(
		&m.ID,
		&createdAt,
		&updatedAt,
		&scannedAt,
		&m.LibraryID,
		&m.RelPath,
		&m.Name,
		&description,
		&m.Format,
		&m.ContentHash,
		&m.Size,
		&m.ModTime,
		&status,
		&incomplete,
		&vertexCount,
		&faceCount,
		&boundsW,
		&boundsH,
		&boundsD,
		&thumbMode,
		&thumbQuality,
		&thumbSourceHash,
		&thumbBlurHash,
		&thumbPlaceholder,
		&thumbGeneratedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse timestamps.
	m.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	m.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	m.ScannedAt, err = parseTime(scannedAt)
	if err != nil {
		return nil, err
	}

	m.Description = description.String
	m.Status = domain.ModelStatus(status)
	m.MetadataIncomplete = incomplete != 0

	// Geometry is present only after a successful extraction.
	if vertexCount.Valid || faceCount.Valid || boundsW.Valid {
		m.Geometry = &domain.GeometrySummary{
			VertexCount: int(vertexCount.Int64),
			FaceCount:   int(faceCount.Int64),
			Width:       boundsW.Float64,
			Height:      boundsH.Float64,
			Depth:       boundsD.Float64,
		}
	}

	// Thumbnail record is present only after a render attempt.
	if thumbMode.Valid {
		generatedAt, err := parseNullableTime(thumbGeneratedAt)
		if err != nil {
			return nil, err
		}
		m.Thumbnail = &domain.ThumbnailInfo{
			Mode:        domain.RenderMode(thumbMode.String),
			Quality:     thumbQuality.String,
			SourceHash:  thumbSourceHash.String,
			BlurHash:    thumbBlurHash.String,
			Placeholder: thumbPlaceholder != 0,
			GeneratedAt: generatedAt,
		}
	}

	return &m, nil
}

// UpsertModel records one observed file in the catalog. New paths insert a
// model; known paths update in place, reactivating missing rows so tags and
// categories survive a file's reappearance. The full-text row is maintained
// inside the same transaction, so search never lags the catalog.
func (s *Store) UpsertModel(ctx context.Context, obs *store.FileObservation) (*store.UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	var (
		existingID   string
		existingHash string
		existingStat string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, content_hash, status FROM models WHERE library_id = ? AND rel_path = ?`,
		obs.LibraryID, obs.RelPath,
	).Scan(&existingID, &existingHash, &existingStat)

	result := &store.UpsertResult{}

	switch {
	case err == sql.ErrNoRows:
		modelID, err := id.Generate(id.PrefixModel)
		if err != nil {
			return nil, err
		}
		if err := insertModel(ctx, tx, modelID, obs, now); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO models_fts (model_id, name, description) VALUES (?, ?, ?)`,
			modelID, obs.Name, ""); err != nil {
			return nil, err
		}
		result.ModelID = modelID
		result.IsNew = true

	case err != nil:
		return nil, err

	default:
		if err := updateModel(ctx, tx, existingID, obs, now); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE models_fts SET name = ? WHERE model_id = ?`,
			obs.Name, existingID); err != nil {
			return nil, err
		}
		result.ModelID = existingID
		result.HashChanged = existingHash != obs.ContentHash
		result.Reactivated = domain.ModelStatus(existingStat) == domain.StatusMissing
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func insertModel(ctx context.Context, tx *sql.Tx, modelID string, obs *store.FileObservation, now time.Time) error {
	var vertexCount, faceCount sql.NullInt64
	var boundsW, boundsH, boundsD sql.NullFloat64
	if g := obs.Geometry; g != nil {
		vertexCount = sql.NullInt64{Int64: int64(g.VertexCount), Valid: true}
		faceCount = sql.NullInt64{Int64: int64(g.FaceCount), Valid: true}
		boundsW = sql.NullFloat64{Float64: g.Width, Valid: true}
		boundsH = sql.NullFloat64{Float64: g.Height, Valid: true}
		boundsD = sql.NullFloat64{Float64: g.Depth, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO models (
			id, created_at, updated_at, scanned_at, library_id, rel_path, name,
			format, content_hash, size, mod_time, status, metadata_incomplete,
			vertex_count, face_count, bounds_w, bounds_h, bounds_d
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		modelID,
		formatTime(now),
		formatTime(now),
		formatTime(now),
		obs.LibraryID,
		obs.RelPath,
		obs.Name,
		obs.Format,
		obs.ContentHash,
		obs.Size,
		obs.ModTime,
		string(domain.StatusActive),
		boolToInt(obs.MetadataIncomplete),
		vertexCount,
		faceCount,
		boundsW,
		boundsH,
		boundsD,
	)
	return err
}

func updateModel(ctx context.Context, tx *sql.Tx, modelID string, obs *store.FileObservation, now time.Time) error {
	var vertexCount, faceCount sql.NullInt64
	var boundsW, boundsH, boundsD sql.NullFloat64
	if g := obs.Geometry; g != nil {
		vertexCount = sql.NullInt64{Int64: int64(g.VertexCount), Valid: true}
		faceCount = sql.NullInt64{Int64: int64(g.FaceCount), Valid: true}
		boundsW = sql.NullFloat64{Float64: g.Width, Valid: true}
		boundsH = sql.NullFloat64{Float64: g.Height, Valid: true}
		boundsD = sql.NullFloat64{Float64: g.Depth, Valid: true}
	}

	// COALESCE keeps the last known geometry when the latest extraction
	// produced none; metadata_incomplete records the degraded state.
	_, err := tx.ExecContext(ctx, `
		UPDATE models SET
			updated_at = ?, scanned_at = ?, name = ?, format = ?,
			content_hash = ?, size = ?, mod_time = ?, status = ?,
			metadata_incomplete = ?,
			vertex_count = COALESCE(?, vertex_count),
			face_count = COALESCE(?, face_count),
			bounds_w = COALESCE(?, bounds_w),
			bounds_h = COALESCE(?, bounds_h),
			bounds_d = COALESCE(?, bounds_d)
		WHERE id = ?`,
		formatTime(now),
		formatTime(now),
		obs.Name,
		obs.Format,
		obs.ContentHash,
		obs.Size,
		obs.ModTime,
		string(domain.StatusActive),
		boolToInt(obs.MetadataIncomplete),
		vertexCount,
		faceCount,
		boundsW,
		boundsH,
		boundsD,
		modelID,
	)
	return err
}

// ReactivateModel flips a missing model back to active without touching its
// content fields. Used when a scan observes an unchanged file at a path that
// was previously marked missing.
func (s *Store) ReactivateModel(ctx context.Context, modelID string) error {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE models SET status = ?, scanned_at = ?, updated_at = ? WHERE id = ?`,
		string(domain.StatusActive), now, now, modelID)
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

// GetModel retrieves a model by ID.
func (s *Store) GetModel(ctx context.Context, modelID string) (*domain.Model, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE id = ?`, modelID)

	m, err := scanModel(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListModelPaths returns the differ's view of a library: every cataloged
// path mapped to the fields the scanner compares against the filesystem.
func (s *Store) ListModelPaths(ctx context.Context, libraryID string) (map[string]store.PathEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rel_path, size, mod_time, content_hash, status FROM models WHERE library_id = ?`,
		libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]store.PathEntry)
	for rows.Next() {
		var (
			entry   store.PathEntry
			relPath string
			status  string
		)
		if err := rows.Scan(&entry.ModelID, &relPath, &entry.Size, &entry.ModTime, &entry.ContentHash, &status); err != nil {
			return nil, err
		}
		entry.Status = domain.ModelStatus(status)
		paths[relPath] = entry
	}
	return paths, rows.Err()
}

// MarkMissing flips active models not in the seen set to missing. Rows are
// never deleted here; a later scan that observes the path reactivates the
// same model with its tags and categories intact. Returns the number of
// models newly marked missing.
func (s *Store) MarkMissing(ctx context.Context, libraryID string, seen map[string]struct{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, rel_path FROM models WHERE library_id = ? AND status = ?`,
		libraryID, string(domain.StatusActive))
	if err != nil {
		return 0, err
	}

	var missingIDs []string
	for rows.Next() {
		var modelID, relPath string
		if err := rows.Scan(&modelID, &relPath); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := seen[relPath]; !ok {
			missingIDs = append(missingIDs, modelID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	now := formatTime(time.Now())
	for _, modelID := range missingIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE models SET status = ?, updated_at = ? WHERE id = ?`,
			string(domain.StatusMissing), now, modelID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(missingIDs)), nil
}

// FindModelsByHash returns all active models sharing a content hash.
func (s *Store) FindModelsByHash(ctx context.Context, contentHash string) ([]*domain.Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE content_hash = ? AND status = ? ORDER BY rel_path ASC`,
		contentHash, string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// ListDuplicateGroups returns every content hash shared by two or more
// active models, with the member IDs. Missing models never join a group.
func (s *Store) ListDuplicateGroups(ctx context.Context) ([]domain.DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, id FROM models
		WHERE status = ? AND content_hash IN (
			SELECT content_hash FROM models WHERE status = ?
			GROUP BY content_hash HAVING COUNT(*) > 1
		)
		ORDER BY content_hash ASC, rel_path ASC`,
		string(domain.StatusActive), string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.DuplicateGroup
	for rows.Next() {
		var contentHash, modelID string
		if err := rows.Scan(&contentHash, &modelID); err != nil {
			return nil, err
		}
		if len(groups) == 0 || groups[len(groups)-1].ContentHash != contentHash {
			groups = append(groups, domain.DuplicateGroup{ContentHash: contentHash})
		}
		last := &groups[len(groups)-1]
		last.ModelIDs = append(last.ModelIDs, modelID)
	}
	return groups, rows.Err()
}

// RecordThumbnail stores the outcome of a render attempt, successful or
// placeholder, against the model row.
func (s *Store) RecordThumbnail(ctx context.Context, modelID string, info *domain.ThumbnailInfo) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE models SET
			thumb_mode = ?, thumb_quality = ?, thumb_source_hash = ?,
			thumb_blur_hash = ?, thumb_placeholder = ?, thumb_generated_at = ?,
			updated_at = ?
		WHERE id = ?`,
		string(info.Mode),
		info.Quality,
		info.SourceHash,
		nullString(info.BlurHash),
		boolToInt(info.Placeholder),
		formatTime(info.GeneratedAt),
		formatTime(time.Now()),
		modelID,
	)
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

// SetModelDescription updates a model's description and its full-text row
// in one transaction.
func (s *Store) SetModelDescription(ctx context.Context, modelID, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE models SET description = ?, updated_at = ? WHERE id = ?`,
		nullString(description), formatTime(time.Now()), modelID)
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

	if _, err := tx.ExecContext(ctx,
		`UPDATE models_fts SET description = ? WHERE model_id = ?`,
		description, modelID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListActiveModels returns all active models in a library ordered by path.
// An empty libraryID lists the whole catalog.
func (s *Store) ListActiveModels(ctx context.Context, libraryID string) ([]*domain.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM models WHERE status = ?`
	args := []any{string(domain.StatusActive)}
	if libraryID != "" {
		query += ` AND library_id = ?`
		args = append(args, libraryID)
	}
	query += ` ORDER BY rel_path ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// SearchModels runs a full-text query over model names and descriptions.
func (s *Store) SearchModels(ctx context.Context, query string, limit int) ([]*domain.Model, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+modelColumns+` FROM models
		WHERE id IN (SELECT model_id FROM models_fts WHERE models_fts MATCH ?)
		AND status = ?
		ORDER BY rel_path ASC LIMIT ?`,
		query, string(domain.StatusActive), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// ListThumbnailBacklog returns active models whose thumbnail is absent or
// stale under the given global settings, oldest first.
func (s *Store) ListThumbnailBacklog(ctx context.Context, mode domain.RenderMode, quality string, limit int) ([]*domain.Model, error) {
	query := `
		SELECT ` + modelColumns + ` FROM models
		WHERE status = ? AND (
			thumb_mode IS NULL
			OR thumb_mode != ? OR thumb_quality != ?
			OR thumb_source_hash != content_hash
		)
		ORDER BY scanned_at ASC`
	args := []any{string(domain.StatusActive), string(mode), quality}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CountThumbnailBacklog reports how many active models need a render under
// the given global settings.
func (s *Store) CountThumbnailBacklog(ctx context.Context, mode domain.RenderMode, quality string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM models
		WHERE status = ? AND (
			thumb_mode IS NULL
			OR thumb_mode != ? OR thumb_quality != ?
			OR thumb_source_hash != content_hash
		)`,
		string(domain.StatusActive), string(mode), quality).Scan(&count)
	return count, err
}

// CountModels reports catalog totals by status.
func (s *Store) CountModels(ctx context.Context, libraryID string) (active, missing int64, err error) {
	query := `SELECT status, COUNT(*) FROM models`
	args := []any{}
	if libraryID != "" {
		query += ` WHERE library_id = ?`
		args = append(args, libraryID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch domain.ModelStatus(status) {
		case domain.StatusActive:
			active = count
		case domain.StatusMissing:
			missing = count
		}
	}
	return active, missing, rows.Err()
}
