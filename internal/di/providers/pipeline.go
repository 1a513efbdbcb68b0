package providers

import (
	"github.com/samber/do/v2"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/config"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/logger"
	"github.com/meshvault/meshvault-server/internal/scanner"
	"github.com/meshvault/meshvault-server/internal/thumbs"
)

// ProvideExtractRegistry provides the format backend registry.
func ProvideExtractRegistry(i do.Injector) (*extract.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return extract.NewRegistry(log.Logger), nil
}

// ProvideArchiveCache provides the archive member extraction cache.
func ProvideArchiveCache(i do.Injector) (*archive.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return archive.NewCache(cfg.ArchiveCachePath(), log.Logger)
}

// ProvideThumbnailPipeline provides the thumbnail render pipeline.
func ProvideThumbnailPipeline(i do.Injector) (*thumbs.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*extract.Registry](i)
	cache := do.MustInvoke[*archive.Cache](i)

	return thumbs.NewPipeline(storeHandle.Store, registry, cache,
		cfg.ThumbnailsPath(), cfg.Scanner.TriangleBudget, log.Logger)
}

// ProvideScanner provides the library scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*extract.Registry](i)
	cache := do.MustInvoke[*archive.Cache](i)

	return scanner.New(storeHandle.Store, registry, cache, log.Logger), nil
}
