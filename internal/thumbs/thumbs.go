// Package thumbs renders catalog thumbnails: mesh load, decimation to a
// triangle budget, camera framing, wireframe or solid rasterization, and a
// placeholder fallback so indexing never blocks on a render failure.
package thumbs

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/mesh"
)

// ThumbnailSize is the edge length of every persisted thumbnail.
const ThumbnailSize = 256

// Quality tiers. High renders supersampled and downscales.
const (
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// Catalog is the slice of the store the pipeline writes to.
type Catalog interface {
	RecordThumbnail(ctx context.Context, modelID string, info *domain.ThumbnailInfo) error
}

// Pipeline generates and stores model thumbnails.
type Pipeline struct {
	catalog  Catalog
	registry *extract.Registry
	cache    *archive.Cache
	dir      string
	budget   int
	logger   *slog.Logger

	// group serializes generation per model: a second request while one
	// is in flight joins the running render instead of duplicating it.
	group singleflight.Group
}

// NewPipeline creates a thumbnail pipeline storing PNGs under dir.
// triangleBudget bounds mesh complexity before rendering.
func NewPipeline(catalog Catalog, registry *extract.Registry, cache *archive.Cache, dir string, triangleBudget int, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	return &Pipeline{
		catalog:  catalog,
		registry: registry,
		cache:    cache,
		dir:      dir,
		budget:   triangleBudget,
		logger:   logger,
	}, nil
}

// Generate renders a thumbnail for the model and records the outcome in the
// catalog. Render failures persist the placeholder image instead of
// returning an error; only I/O failures around storage propagate.
func (p *Pipeline) Generate(ctx context.Context, model *domain.Model, libraryRoot string, mode domain.RenderMode, quality string) (*domain.ThumbnailInfo, error) {
	v, err, _ := p.group.Do(model.ID, func() (any, error) {
		return p.generate(ctx, model, libraryRoot, mode, quality)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ThumbnailInfo), nil
}

func (p *Pipeline) generate(ctx context.Context, model *domain.Model, libraryRoot string, mode domain.RenderMode, quality string) (*domain.ThumbnailInfo, error) {
	img, placeholder := p.render(model, libraryRoot, mode, quality)

	if err := p.writePNG(model.ID, img); err != nil {
		return nil, err
	}

	info := &domain.ThumbnailInfo{
		Mode:        mode,
		Quality:     quality,
		SourceHash:  model.ContentHash,
		Placeholder: placeholder,
		GeneratedAt: time.Now(),
	}

	if hash, err := computeBlurHash(img); err != nil {
		p.logger.Warn("blurhash failed", "model_id", model.ID, "error", err)
	} else {
		info.BlurHash = hash
	}

	if err := p.catalog.RecordThumbnail(ctx, model.ID, info); err != nil {
		return nil, err
	}
	return info, nil
}

// render produces the final 256×256 image, falling back to the placeholder
// on any load or rasterization failure.
func (p *Pipeline) render(model *domain.Model, libraryRoot string, mode domain.RenderMode, quality string) (image.Image, bool) {
	sourcePath, err := p.sourcePath(model, libraryRoot)
	if err != nil {
		p.logger.Warn("thumbnail source unavailable",
			"model_id", model.ID, "rel_path", model.RelPath, "error", err)
		return renderPlaceholder(ThumbnailSize), true
	}

	m, err := p.registry.LoadMesh(sourcePath)
	if err != nil {
		p.logger.Warn("mesh load failed, using placeholder",
			"model_id", model.ID, "rel_path", model.RelPath, "error", err)
		return renderPlaceholder(ThumbnailSize), true
	}

	if p.budget > 0 && m.TriangleCount() > p.budget {
		before := m.TriangleCount()
		m = mesh.Decimate(m, p.budget)
		p.logger.Debug("decimated mesh",
			"model_id", model.ID, "from", before, "to", m.TriangleCount())
	}

	img, err := renderImage(m, mode, renderSize(quality))
	if err != nil {
		p.logger.Warn("render failed, using placeholder",
			"model_id", model.ID, "mode", mode, "error", err)
		return renderPlaceholder(ThumbnailSize), true
	}

	return downscale(img), false
}

// sourcePath resolves the model to a readable file, materializing archive
// members into the extraction cache on demand.
func (p *Pipeline) sourcePath(model *domain.Model, libraryRoot string) (string, error) {
	archivePath, member := model.ArchivePaths()
	if archivePath == "" {
		return filepath.Join(libraryRoot, filepath.FromSlash(member)), nil
	}
	return p.cache.Materialize(
		filepath.Join(libraryRoot, filepath.FromSlash(archivePath)),
		member,
		model.ContentHash,
	)
}

// writePNG persists the image with a write-then-rename so readers never see
// a partial file.
func (p *Pipeline) writePNG(modelID string, img image.Image) error {
	tmp, err := os.CreateTemp(p.dir, "thumb-*.png.tmp")
	if err != nil {
		return errors.Wrap(err, errors.CodeIO, "create thumbnail temp file")
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CodeIO, "encode thumbnail png")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeIO, "close thumbnail temp file")
	}
	if err := os.Rename(tmp.Name(), p.ImagePath(modelID)); err != nil {
		return errors.Wrap(err, errors.CodeIO, "publish thumbnail")
	}
	return nil
}

// ImagePath returns where the model's thumbnail lives on disk.
func (p *Pipeline) ImagePath(modelID string) string {
	return filepath.Join(p.dir, modelID+".png")
}

// Read returns the model's thumbnail bytes, or ErrNotFound when none has
// been generated yet.
func (p *Pipeline) Read(modelID string) ([]byte, error) {
	data, err := os.ReadFile(p.ImagePath(modelID))
	if os.IsNotExist(err) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "read thumbnail")
	}
	return data, nil
}

// renderSize maps a quality tier to the rasterization canvas size. High
// quality supersamples at double resolution.
func renderSize(quality string) int {
	if quality == QualityHigh {
		return ThumbnailSize * 2
	}
	return ThumbnailSize
}

// downscale brings a supersampled render back to the stored size.
func downscale(img image.Image) image.Image {
	if img.Bounds().Dx() == ThumbnailSize {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, ThumbnailSize, ThumbnailSize))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}
