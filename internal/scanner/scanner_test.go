package scanner

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/id"
	"github.com/meshvault/meshvault-server/internal/store/sqlite"
)

const asciiTriangle = `solid tri
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 10 0 0
    vertex 0 10 0
  endloop
endfacet
endsolid tri
`

type testEnv struct {
	scanner *Scanner
	store   *sqlite.Store
	lib     *domain.Library
	root    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	root := t.TempDir()
	now := time.Now()
	lib := &domain.Library{
		ID:        id.MustGenerate(id.PrefixLibrary),
		Name:      "Test",
		Path:      root,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateLibrary(context.Background(), lib); err != nil {
		t.Fatalf("create library: %v", err)
	}

	cache, err := archive.NewCache(filepath.Join(t.TempDir(), "cache"), logger)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	return &testEnv{
		scanner: New(s, extract.NewRegistry(logger), cache, logger),
		store:   s,
		lib:     lib,
		root:    root,
	}
}

func (e *testEnv) write(t *testing.T, relPath, content string) {
	t.Helper()
	full := filepath.Join(e.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", relPath, err)
	}
}

func (e *testEnv) scan(t *testing.T) *ScanResult {
	t.Helper()
	result, err := e.scanner.Scan(context.Background(), e.lib, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return result
}

func TestScanAddsNewFiles(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "minis/dragon.stl", asciiTriangle)
	e.write(t, "terrain/tower.stl", asciiTriangle+"\n")

	result := e.scan(t)
	if result.Added != 2 {
		t.Errorf("expected 2 added, got %+v", result)
	}

	models, err := e.store.ListActiveModels(context.Background(), e.lib.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	m := models[0]
	if m.RelPath != "minis/dragon.stl" || m.Name != "dragon" || m.Format != "stl" {
		t.Errorf("unexpected model: %+v", m)
	}
	if m.Geometry == nil || m.Geometry.FaceCount != 1 {
		t.Errorf("geometry not extracted: %+v", m.Geometry)
	}
	if m.ContentHash == "" {
		t.Error("content hash not set")
	}
}

func TestScanIdempotent(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)

	first := e.scan(t)
	if first.Added != 1 {
		t.Fatalf("expected 1 added, got %+v", first)
	}

	// No filesystem change: the second pass re-hashes nothing.
	second := e.scan(t)
	if second.Added != 0 || second.Updated != 0 || second.Missing != 0 {
		t.Errorf("second scan mutated the catalog: %+v", second)
	}
	if second.Unchanged != 1 {
		t.Errorf("expected 1 unchanged, got %+v", second)
	}
}

func TestScanDuplicateDetection(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)
	e.write(t, "b.stl", asciiTriangle) // byte-identical copy

	e.scan(t)

	groups, err := e.store.ListDuplicateGroups(context.Background())
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if len(groups) != 1 || groups[0].Size() != 2 {
		t.Fatalf("expected one group of 2, got %+v", groups)
	}

	// Delete one copy: the model goes missing and the group dissolves.
	if err := os.Remove(filepath.Join(e.root, "b.stl")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	result := e.scan(t)
	if result.Missing != 1 {
		t.Errorf("expected 1 missing, got %+v", result)
	}

	groups, err = e.store.ListDuplicateGroups(context.Background())
	if err != nil {
		t.Fatalf("groups after delete: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %+v", groups)
	}
}

func TestScanMissingAndReactivate(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "minis/dragon.stl", asciiTriangle)
	e.scan(t)

	models, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	originalID := models[0].ID

	// Tag it so we can verify no data loss across disappear/reappear.
	tag, err := e.store.EnsureTag(context.Background(), "favorite")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if err := e.store.AttachTag(context.Background(), originalID, tag.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := os.Remove(filepath.Join(e.root, "minis", "dragon.stl")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	result := e.scan(t)
	if result.Missing != 1 {
		t.Fatalf("expected 1 missing, got %+v", result)
	}

	// Restore the identical file: same model id, tags intact.
	e.write(t, "minis/dragon.stl", asciiTriangle)
	result = e.scan(t)
	if result.Reactivated != 1 {
		t.Fatalf("expected 1 reactivated, got %+v", result)
	}

	models, _ = e.store.ListActiveModels(context.Background(), e.lib.ID)
	if len(models) != 1 || models[0].ID != originalID {
		t.Errorf("reactivation created a new row: %+v", models)
	}
	tags, err := e.store.ListModelTags(context.Background(), originalID)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("tags lost across disappear/reappear: %+v", tags)
	}
}

func TestScanMtimeTouchKeepsHashAndGeometry(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)
	e.scan(t)

	before, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)

	// Touch mtime without changing bytes.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(e.root, "a.stl"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := e.scan(t)
	if result.Updated != 1 {
		t.Fatalf("mtime change should re-process the file: %+v", result)
	}

	after, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	if after[0].ContentHash != before[0].ContentHash {
		t.Error("content hash changed on mtime-only touch")
	}
	if after[0].Geometry == nil || *after[0].Geometry != *before[0].Geometry {
		t.Error("geometry changed on mtime-only touch")
	}
}

func TestScanContentChange(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)
	e.scan(t)
	before, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)

	e.write(t, "a.stl", asciiTriangle+"\n\n")
	result := e.scan(t)
	if result.Updated != 1 {
		t.Fatalf("expected 1 updated, got %+v", result)
	}

	after, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	if after[0].ID != before[0].ID {
		t.Error("content change must not create a new row")
	}
	if after[0].ContentHash == before[0].ContentHash {
		t.Error("hash should change with content")
	}
}

func TestScanMalformedFileCatalogedDegraded(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "broken.3mf", "this is not a zip container")

	result := e.scan(t)
	if result.Added != 1 {
		t.Fatalf("malformed file must still be cataloged: %+v", result)
	}

	models, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	m := models[0]
	if m.Status != domain.StatusActive {
		t.Errorf("expected active, got %s", m.Status)
	}
	if !m.MetadataIncomplete {
		t.Error("expected metadata-incomplete flag")
	}
	if m.ContentHash == "" {
		t.Error("hash must still be computed")
	}
}

func TestScanAutoCategories(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "Terrain/Buildings/tower.stl", asciiTriangle)

	e.scan(t)
	// Rescan must not duplicate category nodes.
	e.scan(t)

	cats, err := e.store.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 category nodes, got %d", len(cats))
	}

	models, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	attached, err := e.store.ListModelCategories(context.Background(), models[0].ID)
	if err != nil {
		t.Fatalf("model categories: %v", err)
	}
	if len(attached) != 1 || attached[0].Path != "/terrain/buildings" {
		t.Errorf("expected leaf category attached, got %+v", attached)
	}
}

func TestScanArchiveMembers(t *testing.T) {
	e := newTestEnv(t)

	zipPath := filepath.Join(e.root, "kits", "dragon.zip")
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(f)
	mw, _ := w.Create("parts/wing.stl")
	mw.Write([]byte(asciiTriangle))
	w.Close()
	f.Close()

	// A loose identical copy next to the archive joins the same group.
	e.write(t, "wing_loose.stl", asciiTriangle)

	result := e.scan(t)
	if result.Added != 2 {
		t.Fatalf("expected archive member + loose file, got %+v", result)
	}

	models, _ := e.store.ListActiveModels(context.Background(), e.lib.ID)
	var member *domain.Model
	for _, m := range models {
		if m.InArchive() {
			member = m
		}
	}
	if member == nil {
		t.Fatal("archive member not cataloged")
	}
	if member.RelPath != "kits/dragon.zip::parts/wing.stl" {
		t.Errorf("unexpected member path: %s", member.RelPath)
	}
	if member.Geometry == nil {
		t.Error("member geometry not extracted")
	}

	// Member hashes its decompressed bytes, so it dedupes with the copy.
	groups, err := e.store.ListDuplicateGroups(context.Background())
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if len(groups) != 1 || groups[0].Size() != 2 {
		t.Errorf("expected member and loose copy in one group, got %+v", groups)
	}
}

func TestScanUnreachableRootAborts(t *testing.T) {
	e := newTestEnv(t)
	e.lib.Path = filepath.Join(e.root, "does-not-exist")

	if _, err := e.scanner.Scan(context.Background(), e.lib, nil); err == nil {
		t.Fatal("expected error for unreachable root")
	}
}

func TestScanSkipsHiddenAndForeignFiles(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, ".hidden/secret.stl", asciiTriangle)
	e.write(t, "notes.txt", "not a model")
	e.write(t, "real.stl", asciiTriangle)

	result := e.scan(t)
	if result.Added != 1 {
		t.Errorf("expected only real.stl, got %+v", result)
	}
}

func TestProgressTracker(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)
	e.write(t, "b.stl", asciiTriangle)

	tracker := NewProgressTracker(nil)
	if _, err := e.scanner.Scan(context.Background(), e.lib, tracker); err != nil {
		t.Fatalf("scan: %v", err)
	}

	p := tracker.Get()
	if p.Phase != PhaseComplete {
		t.Errorf("expected complete phase, got %s", p.Phase)
	}
}

func TestProgressTotalsDuringScan(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.stl", asciiTriangle)
	e.write(t, "b.stl", asciiTriangle)

	// First pass seeds the catalog so the rescan has a known path count.
	if _, err := e.scanner.Scan(context.Background(), e.lib, NewProgressTracker(nil)); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	var mu sync.Mutex
	var walking, reconciling []Progress
	tracker := NewProgressTracker(func(p *Progress) {
		mu.Lock()
		switch p.Phase {
		case PhaseWalking:
			walking = append(walking, *p)
		case PhaseReconciling:
			reconciling = append(reconciling, *p)
		}
		mu.Unlock()
	})

	if _, err := e.scanner.Scan(context.Background(), e.lib, tracker); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	// Mid-walk polls see the previous pass's path count as the total.
	sawTotal := false
	for _, p := range walking {
		if p.Total == 2 {
			sawTotal = true
		}
	}
	if !sawTotal {
		t.Errorf("no walking snapshot reported total=2: %+v", walking)
	}

	sawTotal = false
	for _, p := range reconciling {
		if p.Total == 2 {
			sawTotal = true
		}
	}
	if !sawTotal {
		t.Errorf("no reconciling snapshot reported total=2: %+v", reconciling)
	}
}
