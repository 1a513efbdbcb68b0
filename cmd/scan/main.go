package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meshvault/meshvault-server/internal/archive"
	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/extract"
	"github.com/meshvault/meshvault-server/internal/scanner"
	"github.com/meshvault/meshvault-server/internal/store/sqlite"
)

// One-shot scan of a model directory into a throwaway catalog. Useful for
// smoke-testing a library layout before pointing the server at it.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scan <library-path>")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	tmpDir, err := os.MkdirTemp("", "meshvault-scan-*")
	if err != nil {
		logger.Error("failed to create temp dir", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	db, err := sqlite.Open(filepath.Join(tmpDir, "scan.db"), logger)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := archive.NewCache(filepath.Join(tmpDir, "cache"), logger)
	if err != nil {
		logger.Error("failed to create archive cache", "error", err)
		os.Exit(1)
	}

	s := scanner.New(db, extract.NewRegistry(logger), cache, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	lib := domain.NewLibrary("scan", os.Args[1])
	if err := db.CreateLibrary(ctx, lib); err != nil {
		logger.Error("failed to register library", "error", err)
		os.Exit(1)
	}

	tracker := scanner.NewProgressTracker(func(p *scanner.Progress) {
		fmt.Printf("[%s] %d/%d - %s\n",
			p.Phase, p.Current, p.Total, p.CurrentItem)
	})

	result, err := s.Scan(ctx, lib, tracker)
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Scan Complete ===\n")
	fmt.Printf("Duration: %s\n", result.CompletedAt.Sub(result.StartedAt))
	fmt.Printf("Added: %d\n", result.Added)
	fmt.Printf("Updated: %d\n", result.Updated)
	fmt.Printf("Unchanged: %d\n", result.Unchanged)
	fmt.Printf("Errors: %d\n", result.Errors)

	groups, err := db.ListDuplicateGroups(ctx)
	if err == nil && len(groups) > 0 {
		fmt.Printf("Duplicate groups: %d\n", len(groups))
	}
}
