package workdir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stillframe/internal/logging"
)

// SweepResult contains the outcome of an orphan sweep.
type SweepResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// SweepOrphans removes files older than maxAge that are not listed in keep.
// Directories are left alone.
func (d *Dir) SweepOrphans(ctx context.Context, maxAge time.Duration, keep map[string]struct{}, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: d.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(d.root, entry.Name())
		if _, referenced := keep[path]; referenced {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove orphaned work file",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workdir_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed orphaned work file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "workdir_cleanup"),
		)
	}

	return result
}
