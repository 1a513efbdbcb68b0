// Package hash computes streaming content hashes for duplicate detection.
//
// The catalog's duplicate groups are keyed entirely on these hashes, so the
// only property that matters is determinism: identical bytes hash
// identically regardless of path or filename. MD5 is used as a fast
// 128-bit content fingerprint, not for any security purpose.
package hash

import (
	"crypto/md5" //#nosec G501 -- content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds memory use independent of file size. Model files can
// reach hundreds of megabytes; the file is never loaded whole.
const chunkSize = 256 * 1024

// Reader hashes the full contents of r in fixed-size chunks and returns
// the hex-encoded 128-bit digest.
func Reader(r io.Reader) (string, error) {
	h := md5.New() //#nosec G401
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File hashes the contents of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- paths come from the scanner walk
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// Bytes hashes an in-memory buffer. Used by tests and for small archive
// members already materialized by the extraction cache.
func Bytes(data []byte) string {
	sum := md5.Sum(data) //#nosec G401
	return hex.EncodeToString(sum[:])
}
