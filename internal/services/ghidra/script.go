package ghidra

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"vxextract/internal/fileutil"
)

// PreScriptName is the file name passed to -preScript.
const PreScriptName = "SetMetadata.java"

//go:embed scripts/SetMetadata.java
var preScript []byte

// EnsurePreScript writes the bundled pre-script into dir unless an identical
// copy is already there, and returns its path. Concurrent callers each
// write through their own temporary file.
func EnsurePreScript(dir string) (string, error) {
	path := filepath.Join(dir, PreScriptName)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, preScript) {
		return path, nil
	}
	err := fileutil.WriteAtomic(path, 0o644, time.Time{}, func(w io.Writer) error {
		_, err := w.Write(preScript)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("install pre-script: %w", err)
	}
	return path, nil
}
