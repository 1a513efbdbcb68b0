package archive

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/meshvault/meshvault-server/internal/errors"
)

func writeTestZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kit.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsArchive(t *testing.T) {
	// Extensions arrive normalized: lowercase, no dot.
	for _, ext := range []string{"zip", "ZIP"} {
		if !IsArchive(ext) {
			t.Errorf("IsArchive(%q) = false", ext)
		}
	}
	for _, ext := range []string{".zip", "rar", "stl", ""} {
		if IsArchive(ext) {
			t.Errorf("IsArchive(%q) = true", ext)
		}
	}
}

func TestListMembers(t *testing.T) {
	path := writeTestZip(t, map[string][]byte{
		"parts/wing.stl":        []byte("wing data"),
		"parts/body.stl":        []byte("body data"),
		"readme.txt":            []byte("hello"),
		".hidden/sneaky.stl":    []byte("x"),
		"__MACOSX/parts/._wing": []byte("resource fork"),
	})

	members, err := ListMembers(path)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}

	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d: %v", len(members), members)
	}
	for _, m := range members {
		if m.Size == 0 {
			t.Errorf("member %s has zero size", m.Path)
		}
	}
}

func TestOpen(t *testing.T) {
	path := writeTestZip(t, map[string][]byte{
		"parts/wing.stl": []byte("wing data"),
	})

	rc, err := Open(path, "parts/wing.stl")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "wing data" {
		t.Errorf("got %q", data)
	}
}

func TestOpen_MemberNotFound(t *testing.T) {
	path := writeTestZip(t, map[string][]byte{"a.stl": []byte("x")})

	_, err := Open(path, "missing.stl")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestCache_Materialize(t *testing.T) {
	zipPath := writeTestZip(t, map[string][]byte{
		"parts/wing.stl": []byte("wing data"),
	})

	cache, err := NewCache(filepath.Join(t.TempDir(), "cache"), testLogger())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	entry, err := cache.Materialize(zipPath, "parts/wing.stl", "hash1")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	data, err := os.ReadFile(entry)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "wing data" {
		t.Errorf("got %q", data)
	}

	// Extension survives for format detection.
	if filepath.Ext(entry) != ".stl" {
		t.Errorf("entry lost extension: %s", entry)
	}

	// Second call returns the same published entry.
	entry2, err := cache.Materialize(zipPath, "parts/wing.stl", "hash1")
	if err != nil {
		t.Fatal(err)
	}
	if entry2 != entry {
		t.Errorf("same key produced different entries: %s vs %s", entry, entry2)
	}

	// A different content hash is a different key.
	entry3, err := cache.Materialize(zipPath, "parts/wing.stl", "hash2")
	if err != nil {
		t.Fatal(err)
	}
	if entry3 == entry {
		t.Error("different content hash reused the same entry")
	}
}

func TestCache_ConcurrentMaterialize(t *testing.T) {
	zipPath := writeTestZip(t, map[string][]byte{
		"big.stl": make([]byte, 1<<16),
	})

	cache, err := NewCache(filepath.Join(t.TempDir(), "cache"), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Materialize(zipPath, "big.stl", "h")
			if err != nil {
				t.Errorf("Materialize: %v", err)
				return
			}
			paths[i] = p
		}()
	}
	wg.Wait()

	for _, p := range paths[1:] {
		if p != paths[0] {
			t.Fatalf("concurrent callers got different entries: %v", paths)
		}
	}

	info, err := os.Stat(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 1<<16 {
		t.Errorf("entry size %d, want %d", info.Size(), 1<<16)
	}
}
