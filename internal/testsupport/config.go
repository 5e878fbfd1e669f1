package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vxextract/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose archive and output roots live in a fresh
// temp directory. The archive Families directory is created so listing works.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	if err := cfgVal.SetRoots(filepath.Join(base, "vx"), filepath.Join(base, "out")); err != nil {
		t.Fatalf("SetRoots: %v", err)
	}
	cfgVal.Analysis.GhidraInstallDir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	if err := os.MkdirAll(filepath.Join(cfgVal.Paths.ArchiveRoot, "Families"), 0o755); err != nil {
		t.Fatalf("mkdir families: %v", err)
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithMetricsTextfile points the metrics textfile into the temp tree.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "textfile", "vxextract.prom")
	}
}

// WithGhidraInstall creates a fake Ghidra install whose analyzeHeadless is
// the given shell script body.
func WithGhidraInstall(script string) ConfigOption {
	return func(b *configBuilder) {
		install := filepath.Join(b.baseDir, "ghidra")
		launcher := filepath.Join(install, "support", "analyzeHeadless")
		if err := os.MkdirAll(filepath.Dir(launcher), 0o755); err != nil {
			b.t.Fatalf("mkdir ghidra support: %v", err)
		}
		if script == "" {
			script = "exit 0\n"
		}
		if err := os.WriteFile(launcher, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
			b.t.Fatalf("write analyzeHeadless stub: %v", err)
		}
		if err := b.cfg.SetGhidraInstallDir(install); err != nil {
			b.t.Fatalf("SetGhidraInstallDir: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArchiveRoot)
}
