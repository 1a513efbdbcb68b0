package providers

import (
	"github.com/samber/do/v2"

	"github.com/meshvault/meshvault-server/internal/logger"
	"github.com/meshvault/meshvault-server/internal/service"
	"github.com/meshvault/meshvault-server/internal/thumbs"
)

// ProvidePipelineService provides the pipeline business service.
func ProvidePipelineService(i do.Injector) (*service.PipelineService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coordinatorHandle := do.MustInvoke[*CoordinatorHandle](i)
	pipeline := do.MustInvoke[*thumbs.Pipeline](i)

	return service.NewPipelineService(storeHandle.Store, coordinatorHandle.Coordinator, pipeline, log.Logger), nil
}
