// Package archive treats zip files as virtual subdirectories of a library.
// Members are cataloged like plain files; their bytes are materialized into
// an on-disk cache on demand rather than eagerly extracted.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// IsArchive reports whether the extension names a supported container.
// Extensions are matched the way extract.Format reports them: lowercase,
// no dot.
func IsArchive(ext string) bool {
	return strings.ToLower(ext) == "zip"
}

// Member describes one file inside an archive.
type Member struct {
	Path    string // forward-slash path inside the archive
	Size    int64  // uncompressed size
	ModTime int64  // unix millis
}

// ListMembers enumerates regular files inside the archive. Directories and
// hidden entries are skipped, matching the walker's rules for plain files.
func ListMembers(archivePath string) ([]Member, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "open archive %s", archivePath)
	}
	defer zr.Close()

	members := make([]Member, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if hiddenMember(f.Name) {
			continue
		}
		members = append(members, Member{
			Path:    f.Name,
			Size:    int64(f.UncompressedSize64),
			ModTime: f.Modified.UnixMilli(),
		})
	}
	return members, nil
}

// Open returns a reader over the decompressed bytes of one member.
// Hashing operates on this stream, never on the archive's own bytes, so a
// member and its extracted copy always land in the same duplicate group.
func Open(archivePath, member string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "open archive %s", archivePath)
	}

	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, errors.Wrapf(err, errors.CodeIO, "open member %s", member)
		}
		return &memberReader{ReadCloser: rc, container: zr}, nil
	}

	zr.Close()
	return nil, errors.NotFoundf("member %s not found in %s", member, archivePath)
}

// memberReader closes the containing zip reader together with the member
// stream.
type memberReader struct {
	io.ReadCloser
	container *zip.ReadCloser
}

func (r *memberReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.container.Close(); err == nil {
		err = cerr
	}
	return err
}

func hiddenMember(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}

// String renders a member reference using the catalog's path convention.
func (m Member) String() string {
	return fmt.Sprintf("::%s", m.Path)
}
