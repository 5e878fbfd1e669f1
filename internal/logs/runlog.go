package logs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLogPrefix = "vxextract-"
	runLogSuffix = ".log"
)

// ErrNoRunLog reports that no run log matched.
var ErrNoRunLog = errors.New("no run log found")

// RunLogPath returns the log file name used for runID inside dir.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, runLogPrefix+runID+runLogSuffix)
}

// LatestRunLog returns the most recently modified run log in dir.
func LatestRunLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoRunLog
		}
		return "", fmt.Errorf("read log directory: %w", err)
	}
	var (
		latest  string
		modTime time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, runLogPrefix) || !strings.HasSuffix(name, runLogSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(modTime) {
			latest = filepath.Join(dir, name)
			modTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", ErrNoRunLog
	}
	return latest, nil
}

// ResolveRunLog returns the log for runID, or the latest one when runID is empty.
func ResolveRunLog(dir, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return LatestRunLog(dir)
	}
	path := RunLogPath(dir, runID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w for run %s", ErrNoRunLog, runID)
		}
		return "", err
	}
	return path, nil
}
