package domain

import (
	"testing"
	"time"
)

func TestThumbnailInfo_StaleFor(t *testing.T) {
	info := &ThumbnailInfo{
		Mode:        RenderWireframe,
		Quality:     "standard",
		SourceHash:  "abc123",
		GeneratedAt: time.Now(),
	}

	tests := []struct {
		name    string
		mode    RenderMode
		quality string
		hash    string
		want    bool
	}{
		{"unchanged", RenderWireframe, "standard", "abc123", false},
		{"mode changed", RenderSolid, "standard", "abc123", true},
		{"quality changed", RenderWireframe, "high", "abc123", true},
		{"content changed", RenderWireframe, "standard", "def456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := info.StaleFor(tt.mode, tt.quality, tt.hash); got != tt.want {
				t.Errorf("StaleFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThumbnailInfo_StaleFor_Nil(t *testing.T) {
	var info *ThumbnailInfo
	if info.StaleFor(RenderSolid, "standard", "abc") {
		t.Error("nil thumbnail should not report stale")
	}
}

func TestModel_ThumbnailStateFor(t *testing.T) {
	m := &Model{ContentHash: "abc123"}

	if got := m.ThumbnailStateFor(RenderWireframe, "standard"); got != ThumbnailNone {
		t.Errorf("no thumbnail: got %v, want %v", got, ThumbnailNone)
	}

	m.Thumbnail = &ThumbnailInfo{Mode: RenderWireframe, Quality: "standard", SourceHash: "abc123"}
	if got := m.ThumbnailStateFor(RenderWireframe, "standard"); got != ThumbnailCurrent {
		t.Errorf("current thumbnail: got %v, want %v", got, ThumbnailCurrent)
	}

	// A global mode change marks the whole catalog stale at once.
	if got := m.ThumbnailStateFor(RenderSolid, "standard"); got != ThumbnailStale {
		t.Errorf("stale thumbnail: got %v, want %v", got, ThumbnailStale)
	}

	m.Thumbnail.Placeholder = true
	if got := m.ThumbnailStateFor(RenderWireframe, "standard"); got != ThumbnailFailed {
		t.Errorf("placeholder thumbnail: got %v, want %v", got, ThumbnailFailed)
	}
}

func TestModel_ArchivePaths(t *testing.T) {
	m := &Model{RelPath: "kits/dragon.zip::parts/wing_left.stl"}

	if !m.InArchive() {
		t.Fatal("expected InArchive")
	}

	archive, member := m.ArchivePaths()
	if archive != "kits/dragon.zip" {
		t.Errorf("archive: got %q", archive)
	}
	if member != "parts/wing_left.stl" {
		t.Errorf("member: got %q", member)
	}
}

func TestModel_ArchivePaths_PlainFile(t *testing.T) {
	m := &Model{RelPath: "terrain/tower.stl"}

	if m.InArchive() {
		t.Fatal("plain file reported as archive member")
	}

	archive, member := m.ArchivePaths()
	if archive != "" || member != "terrain/tower.stl" {
		t.Errorf("got (%q, %q)", archive, member)
	}
}

func TestModel_DisplayName(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  string
	}{
		{"explicit name wins", Model{Name: "Dragon", RelPath: "x/y.stl"}, "Dragon"},
		{"from path", Model{RelPath: "terrain/watch_tower.stl"}, "watch_tower"},
		{"from archive member", Model{RelPath: "kit.zip::parts/wing.obj"}, "wing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeometrySummary_IsDegenerate(t *testing.T) {
	var g *GeometrySummary
	if !g.IsDegenerate() {
		t.Error("nil geometry should be degenerate")
	}

	g = &GeometrySummary{}
	if !g.IsDegenerate() {
		t.Error("zero bounds should be degenerate")
	}

	g = &GeometrySummary{Width: 10, Height: 5, Depth: 3}
	if g.IsDegenerate() {
		t.Error("non-zero bounds reported degenerate")
	}
}

func TestParseRenderMode(t *testing.T) {
	if _, ok := ParseRenderMode("wireframe"); !ok {
		t.Error("wireframe should parse")
	}
	if _, ok := ParseRenderMode("solid"); !ok {
		t.Error("solid should parse")
	}
	if _, ok := ParseRenderMode("raytraced"); ok {
		t.Error("unknown mode should not parse")
	}
}
