// Package di provides dependency injection configuration for the MeshVault server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/config"
	"github.com/meshvault/meshvault-server/internal/di/providers"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/logger"
	"github.com/meshvault/meshvault-server/internal/scanner"
	"github.com/meshvault/meshvault-server/internal/service"
	"github.com/meshvault/meshvault-server/internal/thumbs"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Pipeline layer
	do.Provide(injector, providers.ProvideExtractRegistry)
	do.Provide(injector, providers.ProvideArchiveCache)
	do.Provide(injector, providers.ProvideThumbnailPipeline)
	do.Provide(injector, providers.ProvideScanner)

	// Business services
	do.Provide(injector, providers.ProvidePipelineService)

	// Workers
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideFileWatcher)
	do.Provide(injector, providers.ProvideScanScheduler)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*extract.Registry](injector)
	_ = do.MustInvoke[*archive.Cache](injector)
	_ = do.MustInvoke[*thumbs.Pipeline](injector)
	_ = do.MustInvoke[*scanner.Scanner](injector)

	// Business services
	_ = do.MustInvoke[*service.PipelineService](injector)

	// Workers
	_ = do.MustInvoke[*providers.CoordinatorHandle](injector)
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)
	_ = do.MustInvoke[*providers.CronHandle](injector)

	return nil
}
