package hash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReader_MatchesBytes(t *testing.T) {
	data := []byte("solid cube\nendsolid cube\n")

	fromReader, err := Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}

	if fromReader != Bytes(data) {
		t.Errorf("Reader %q != Bytes %q", fromReader, Bytes(data))
	}

	// 128 bits hex-encoded.
	if len(fromReader) != 32 {
		t.Errorf("digest length: got %d, want 32", len(fromReader))
	}
}

func TestFile_DeterministicAcrossPaths(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 100_000)

	a := filepath.Join(dir, "a.stl")
	b := filepath.Join(dir, "sub_b.stl")
	if err := os.WriteFile(a, data, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, data, 0644); err != nil {
		t.Fatal(err)
	}

	hashA, err := File(a)
	if err != nil {
		t.Fatalf("File(a): %v", err)
	}
	hashB, err := File(b)
	if err != nil {
		t.Fatalf("File(b): %v", err)
	}

	// Identical bytes hash identically regardless of path or filename.
	if hashA != hashB {
		t.Errorf("identical files hashed differently: %s vs %s", hashA, hashB)
	}
}

func TestFile_SingleByteChange(t *testing.T) {
	dir := t.TempDir()
	data := []byte(strings.Repeat("x", 4096))

	a := filepath.Join(dir, "a.obj")
	if err := os.WriteFile(a, data, 0644); err != nil {
		t.Fatal(err)
	}
	hashA, err := File(a)
	if err != nil {
		t.Fatal(err)
	}

	data[2048] = 'y'
	b := filepath.Join(dir, "b.obj")
	if err := os.WriteFile(b, data, 0644); err != nil {
		t.Fatal(err)
	}
	hashB, err := File(b)
	if err != nil {
		t.Fatal(err)
	}

	if hashA == hashB {
		t.Error("one-byte change produced equal hashes")
	}
}

func TestFile_NotFound(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing.stl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReader_Empty(t *testing.T) {
	sum, err := Reader(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	if sum != Bytes(nil) {
		t.Errorf("empty stream: got %q, want %q", sum, Bytes(nil))
	}
}
