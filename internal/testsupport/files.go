package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vxextract/internal/config"
	"vxextract/internal/corpus"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("B", int(size))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteArchives creates placeholder archives for "Family/relative/sample"
// entries under the config's archive root and returns the parsed samples.
// The files only exist for listing; they are not valid 7z archives.
func WriteArchives(t testing.TB, cfg *config.Config, entries ...string) []corpus.Sample {
	t.Helper()

	layout := corpus.NewLayout(cfg)
	samples := make([]corpus.Sample, 0, len(entries))
	for _, entry := range entries {
		family, rel, ok := strings.Cut(entry, "/")
		if !ok {
			t.Fatalf("archive entry %q must be Family/sample", entry)
		}
		sample := corpus.Sample{Family: family, Path: rel}
		WriteFile(t, layout.ArchivePath(sample), 2)
		samples = append(samples, sample)
	}
	return samples
}

// MkdirFamily creates an empty family directory.
func MkdirFamily(t testing.TB, cfg *config.Config, family string) {
	t.Helper()
	if err := os.MkdirAll(corpus.NewLayout(cfg).FamilyDir(family), 0o755); err != nil {
		t.Fatalf("mkdir family %s: %v", family, err)
	}
}
