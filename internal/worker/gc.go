package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OrphanProfileTTL is how old a throwaway browser profile must be before it is removed.
const OrphanProfileTTL = 90 * time.Minute

// StartProfileSweeper sweeps baseDir once, then again every interval until ctx is done.
// Profiles are left behind when a run is killed before the browser closes. Paths in
// keep belong to live browsers and are never removed, whatever their age.
func StartProfileSweeper(ctx context.Context, baseDir, prefix string, interval time.Duration, logger *slog.Logger, keep ...string) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gc")
	SweepOrphanProfiles(baseDir, prefix, OrphanProfileTTL, logger, keep...)
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			SweepOrphanProfiles(baseDir, prefix, OrphanProfileTTL, logger, keep...)
		}
	}
}

// SweepOrphanProfiles removes directories under baseDir named with prefix whose
// modification time is older than ttl, except those listed in keep, and returns how
// many were removed.
func SweepOrphanProfiles(baseDir, prefix string, ttl time.Duration, logger *slog.Logger, keep ...string) int {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		if p != "" {
			kept[filepath.Clean(p)] = struct{}{}
		}
	}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Warn("read base dir", "dir", baseDir, "err", err)
		return 0
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		fullPath := filepath.Join(baseDir, entry.Name())
		if _, ok := kept[fullPath]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}

		if err := os.RemoveAll(fullPath); err != nil {
			logger.Warn("remove orphan profile", "path", fullPath, "err", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("removed orphan browser profiles", "count", removed, "dir", baseDir)
	}
	return removed
}
