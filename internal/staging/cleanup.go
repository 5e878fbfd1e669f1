package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vxextract/internal/logging"
)

// CleanStaleResult contains the outcome of a temp-file cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// IsTempName reports whether name has the exact shape of a temporary file
// created by fileutil.WriteAtomic: ".<name>.<digits>.tmp".
func IsTempName(name string) bool {
	rest, ok := strings.CutPrefix(name, ".")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, ".tmp")
	if !ok {
		return false
	}
	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return false
	}
	for _, r := range rest[dot+1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CleanStale removes temporary files older than maxAge below each root.
// Missing roots are ignored. Failures are collected in the result for the
// caller to report. Callers must hold the output-root lock so no
// live write is mistaken for a leftover.
func CleanStale(ctx context.Context, roots []string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	cutoff := time.Now().Add(-maxAge)

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !IsTempName(d.Name()) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				return nil
			}
			if !info.ModTime().Before(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				return nil
			}
			result.Removed = append(result.Removed, path)
			if logger != nil {
				logger.Info("removed stale temp file",
					logging.String("path", path),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "staging_cleanup"),
				)
			}
			return nil
		})
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
			return result
		}
	}
	return result
}
