package scanner

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/extract"
)

// Walker traverses a library root and discovers model files, descending
// into zip archives as virtual subdirectories.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a new walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// WalkResult represents a model file discovered during walking.
type WalkResult struct {
	// RelPath is the catalog path relative to the library root, slash
	// separated; archive members use the "::" convention.
	RelPath string
	// AbsPath is the on-disk path of the file, or of the containing
	// archive for members.
	AbsPath string
	// Member is the path inside the archive, empty for plain files.
	Member  string
	Size    int64
	ModTime int64
}

// Walk traverses a library root and streams discovered model files.
// The channel closes when the walk completes or the context is canceled.
// Unreadable subtrees are logged and skipped; only the caller-side root
// check aborts a scan.
func (w *Walker) Walk(ctx context.Context, rootPath string) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Error("walk error", "path", path, "error", err)
				return nil
			}

			// Skip hidden files and directories.
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			relPath, err := filepath.Rel(rootPath, path)
			if err != nil {
				w.logger.Error("failed to compute relative path", "path", path, "error", err)
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			ext := extract.Format(path)
			switch {
			case archive.IsArchive(ext):
				return w.walkArchive(ctx, path, relPath, results)
			case extract.IsModelFile(ext):
				info, err := d.Info()
				if err != nil {
					w.logger.Error("failed to stat file", "path", path, "error", err)
					return nil
				}
				result := WalkResult{
					RelPath: relPath,
					AbsPath: path,
					Size:    info.Size(),
					ModTime: info.ModTime().UnixMilli(),
				}
				select {
				case results <- result:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})

		if err != nil && !stderrors.Is(err, context.Canceled) {
			w.logger.Error("walk failed", "root", rootPath, "error", err)
		}
	}()

	return results
}

// walkArchive streams an archive's model-file members as virtual entries.
// A corrupt archive is logged and skipped, like any other unreadable file.
func (w *Walker) walkArchive(ctx context.Context, absPath, relPath string, results chan<- WalkResult) error {
	members, err := archive.ListMembers(absPath)
	if err != nil {
		w.logger.Error("failed to list archive members", "path", absPath, "error", err)
		return nil
	}

	for _, m := range members {
		if !extract.IsModelFile(extract.Format(m.Path)) {
			continue
		}
		result := WalkResult{
			RelPath: relPath + domain.ArchiveSeparator + m.Path,
			AbsPath: absPath,
			Member:  m.Path,
			Size:    m.Size,
			ModTime: m.ModTime,
		}
		select {
		case results <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
