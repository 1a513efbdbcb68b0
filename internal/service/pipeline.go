// Package service provides the business logic layer between the ingestion
// pipeline and the route layer.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/jobs"
	"github.com/meshvault/meshvault-server/internal/store/sqlite"
	"github.com/meshvault/meshvault-server/internal/thumbs"
)

// PipelineService exposes the ingestion pipeline's operations: triggering
// scans, polling job status, duplicate groups, thumbnail regeneration and
// retrieval, and aggregated health.
type PipelineService struct {
	store       *sqlite.Store
	coordinator *jobs.Coordinator
	thumbs      *thumbs.Pipeline
	logger      *slog.Logger
}

// NewPipelineService creates the pipeline facade.
func NewPipelineService(store *sqlite.Store, coordinator *jobs.Coordinator, pipeline *thumbs.Pipeline, logger *slog.Logger) *PipelineService {
	return &PipelineService{
		store:       store,
		coordinator: coordinator,
		thumbs:      pipeline,
		logger:      logger,
	}
}

// ScanTrigger is the outcome of a scan request.
type ScanTrigger struct {
	Handles []string `json:"handles"`
	// Coalesced is true when a requested library already had a scan
	// running and the existing handle was returned instead.
	Coalesced bool `json:"coalesced"`
}

// Scan triggers a scan of one library, or of every enabled library when
// libraryID is empty.
func (s *PipelineService) Scan(ctx context.Context, libraryID string) (*ScanTrigger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if libraryID == "" {
		handles, err := s.coordinator.TriggerScanAll()
		if err != nil {
			return nil, err
		}
		trigger := &ScanTrigger{}
		for _, job := range handles {
			trigger.Handles = append(trigger.Handles, job.ID)
		}
		return trigger, nil
	}

	job, coalesced, err := s.coordinator.TriggerScan(libraryID)
	if err != nil {
		return nil, err
	}
	return &ScanTrigger{Handles: []string{job.ID}, Coalesced: coalesced}, nil
}

// ScanStatus polls a job handle.
func (s *PipelineService) ScanStatus(ctx context.Context, handle string) (jobs.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return jobs.Snapshot{}, err
	}
	return s.coordinator.Status(handle)
}

// Duplicates returns all duplicate groups among active models.
func (s *PipelineService) Duplicates(ctx context.Context) ([]domain.DuplicateGroup, error) {
	return s.store.ListDuplicateGroups(ctx)
}

// RegenerateThumbnails starts a bulk regeneration for the given mode and
// returns the job handle.
func (s *PipelineService) RegenerateThumbnails(ctx context.Context, mode domain.RenderMode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	job, err := s.coordinator.RegenerateThumbnails(mode)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// AutoTag starts a bulk auto-tagging pass and returns the job handle.
func (s *PipelineService) AutoTag(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	job, err := s.coordinator.AutoTag()
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

// ModelThumbnail returns the model's thumbnail bytes. Models that were
// never rendered return NotFound.
func (s *PipelineService) ModelThumbnail(ctx context.Context, modelID string) ([]byte, error) {
	// Verify the model exists so an unknown ID and an ungenerated
	// thumbnail are distinguishable in logs.
	if _, err := s.store.GetModel(ctx, modelID); err != nil {
		return nil, errors.NotFoundf("model %s", modelID)
	}
	return s.thumbs.Read(modelID)
}

// Search runs a full-text query over the catalog.
func (s *PipelineService) Search(ctx context.Context, query string, limit int) ([]*domain.Model, error) {
	if query == "" {
		return nil, errors.Validation("empty search query")
	}
	return s.store.SearchModels(ctx, query, limit)
}

// Health aggregates pipeline health for the status endpoint.
func (s *PipelineService) Health(ctx context.Context) jobs.Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.coordinator.HealthSnapshot(ctx)
}

// RegisterLibrary creates a library and returns it.
func (s *PipelineService) RegisterLibrary(ctx context.Context, name, path string) (*domain.Library, error) {
	if name == "" || path == "" {
		return nil, errors.Validation("library name and path are required")
	}

	lib := domain.NewLibrary(name, path)
	if err := s.store.CreateLibrary(ctx, lib); err != nil {
		return nil, err
	}

	s.logger.Info("library registered", "library_id", lib.ID, "name", name, "path", path)
	return lib, nil
}
