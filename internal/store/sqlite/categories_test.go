package sqlite

import (
	"context"
	"testing"
)

func TestEnsureCategoryPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chain, err := s.EnsureCategoryPath(ctx, []string{"Terrain", "Buildings", "Ruined"}, true)
	if err != nil {
		t.Fatalf("ensure path: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(chain))
	}

	last := chain[2]
	if last.Path != "/terrain/buildings/ruined" {
		t.Errorf("unexpected path: %s", last.Path)
	}
	if last.Depth != 2 {
		t.Errorf("unexpected depth: %d", last.Depth)
	}
	if last.ParentID != chain[1].ID {
		t.Error("parent chain broken")
	}
	if !last.AutoDerived {
		t.Error("expected auto-derived")
	}
}

func TestEnsureCategoryPathIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureCategoryPath(ctx, []string{"Terrain", "Buildings"}, true)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := s.EnsureCategoryPath(ctx, []string{"Terrain", "Buildings"}, true)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("rescan created a duplicate node at depth %d", i)
		}
	}

	all, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 categories total, got %d", len(all))
	}
}

func TestEnsureCategoryPathSharedPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.EnsureCategoryPath(ctx, []string{"Terrain", "Buildings"}, true)
	if err != nil {
		t.Fatalf("ensure a: %v", err)
	}
	b, err := s.EnsureCategoryPath(ctx, []string{"Terrain", "Scatter"}, true)
	if err != nil {
		t.Fatalf("ensure b: %v", err)
	}
	if a[0].ID != b[0].ID {
		t.Error("shared prefix should reuse the same root node")
	}
	if a[1].ID == b[1].ID {
		t.Error("distinct leaves must be distinct nodes")
	}
}

func TestAttachModelCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lib := newTestLibrary(t, s)

	res, err := s.UpsertModel(ctx, testObservation(lib, "terrain/tower.stl", "aaaa"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	chain, err := s.EnsureCategoryPath(ctx, []string{"Terrain"}, true)
	if err != nil {
		t.Fatalf("ensure path: %v", err)
	}

	if err := s.AttachModelCategory(ctx, res.ModelID, chain[0].ID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// Attaching again is a no-op.
	if err := s.AttachModelCategory(ctx, res.ModelID, chain[0].ID); err != nil {
		t.Fatalf("re-attach: %v", err)
	}

	cats, err := s.ListModelCategories(ctx, res.ModelID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 1 || cats[0].Slug != "terrain" {
		t.Errorf("unexpected categories: %+v", cats)
	}
}
