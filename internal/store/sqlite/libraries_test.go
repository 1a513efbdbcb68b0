package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/id"
	"github.com/meshvault/meshvault-server/internal/store"
)

func TestLibraryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib := newTestLibrary(t, s)

	got, err := s.GetLibrary(ctx, lib.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != lib.Name || got.Path != lib.Path || !got.Enabled {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	got.Name = "Renamed"
	got.Enabled = false
	got.Touch()
	if err := s.UpdateLibrary(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = s.GetLibrary(ctx, lib.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Name != "Renamed" || got.Enabled {
		t.Errorf("update not persisted: %+v", got)
	}

	enabled, err := s.ListEnabledLibraries(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("disabled library listed as enabled: %+v", enabled)
	}

	if err := s.DeleteLibrary(ctx, lib.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetLibrary(ctx, lib.ID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateLibraryDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	lib := &domain.Library{
		ID:        id.MustGenerate(id.PrefixLibrary),
		Name:      "One",
		Path:      t.TempDir(),
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateLibrary(ctx, lib); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateLibrary(ctx, lib); err != store.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDeleteLibraryOrphansModels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	res, err := s.UpsertModel(ctx, testObservation(lib, "a.stl", "aaaa"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DeleteLibrary(ctx, lib.ID); err != nil {
		t.Fatalf("delete library: %v", err)
	}

	// Models survive removal and stay browsable until pruned.
	if _, err := s.GetModel(ctx, res.ModelID); err != nil {
		t.Errorf("orphaned model should remain: %v", err)
	}
}

func TestPruneLibraryModels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	res, err := s.UpsertModel(ctx, testObservation(lib, "a.stl", "aaaa"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err := s.PruneLibraryModels(ctx, lib.ID)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, err := s.GetModel(ctx, res.ModelID); err != store.ErrNotFound {
		t.Errorf("model survived prune: %v", err)
	}

	// The full-text row goes with it.
	hits, err := s.SearchModels(ctx, "dragon", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("search row survived prune: %+v", hits)
	}
}
