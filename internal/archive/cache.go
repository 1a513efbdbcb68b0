package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// Cache materializes archive members on disk for the extractor and
// thumbnail pipeline, which need seekable files rather than streams.
//
// Entries are keyed by archive path + member path + content hash and
// written at most once per key: bytes go to a temp file which is renamed
// into place, so concurrent readers only ever observe complete entries.
// Published entries are never mutated.
type Cache struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex // serializes writers for the same key
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, errors.Validation("archive cache dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive cache dir: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Materialize returns the path of an on-disk copy of the member, extracting
// it on first use. contentHash keys the entry so a changed archive never
// serves stale bytes.
func (c *Cache) Materialize(archivePath, member, contentHash string) (string, error) {
	dst := c.entryPath(archivePath, member, contentHash)

	// Fast path: already published.
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock; another goroutine may have published.
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	src, err := Open(archivePath, member)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(c.dir, ".extract-*")
	if err != nil {
		return "", fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errors.Wrapf(err, errors.CodeIO, "extract %s%s%s", archivePath, "::", member)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp entry: %w", err)
	}

	// Write-then-publish.
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish cache entry: %w", err)
	}

	c.logger.Debug("materialized archive member",
		"archive", archivePath,
		"member", member,
		"entry", filepath.Base(dst),
	)
	return dst, nil
}

// entryPath derives a stable filename for the cache key, keeping the
// member's extension so format detection by extension still works.
func (c *Cache) entryPath(archivePath, member, contentHash string) string {
	h := sha256.Sum256([]byte(archivePath + "\x00" + member + "\x00" + contentHash))
	return filepath.Join(c.dir, hex.EncodeToString(h[:16])+filepath.Ext(member))
}
