package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLogPattern matches the per-run log files written by NewFromConfig.
const RunLogPattern = "vxextract*.log"

// CleanupOldLogs removes files in dir matching pattern whose modification time
// is older than retentionDays. The file at keep is never removed. A
// retentionDays value of 0 disables pruning. It returns the number of files
// removed.
func CleanupOldLogs(logger *slog.Logger, dir, pattern, keep string, retentionDays int) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	if keep != "" {
		if abs, err := filepath.Abs(keep); err == nil {
			keep = abs
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if pattern != "" {
			if matched, err := filepath.Match(pattern, name); err != nil || !matched {
				continue
			}
		}
		fullPath := filepath.Join(dir, name)
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if fullPath == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithHint(logger, "log retention remove failed; file remains", "log_retention_failed",
				"check permissions on the state directory",
				String("path", fullPath),
				Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Debug("pruned old run logs", Int("removed", removed), String("dir", dir))
	}
	return removed
}
