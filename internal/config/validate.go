package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrGhidraInstallMissing reports that analysis is enabled without a Ghidra install directory.
var ErrGhidraInstallMissing = errors.New("ghidra install directory must be provided")

// Validate ensures the configuration is usable for extraction and packing.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePack(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Analysis.TimeoutMinutes < 0 {
		return errors.New("analysis.timeout_minutes must not be negative")
	}
	return nil
}

// ValidateAnalysis ensures the Ghidra settings are present. Only runs that
// analyze families call it, so extraction and packing work without Ghidra.
func (c *Config) ValidateAnalysis() error {
	if strings.TrimSpace(c.Analysis.GhidraInstallDir) == "" {
		return fmt.Errorf("%w: pass --ghidra-install-directory, set %s, or edit analysis.ghidra_install_dir", ErrGhidraInstallMissing, GhidraInstallEnv)
	}
	if filepath.IsAbs(c.Analysis.ProjectDir) || strings.Contains(c.Analysis.ProjectDir, "..") {
		return errors.New("analysis.project_dir must be a plain directory name under the output root")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ArchiveRoot == "" {
		return errors.New("archive root is required")
	}
	if c.Paths.OutputRoot == "" {
		return errors.New("output root is required")
	}
	if c.Paths.ArchiveRoot == c.Paths.OutputRoot {
		return errors.New("output root must differ from the archive root")
	}
	rel, err := filepath.Rel(c.Paths.ArchiveRoot, c.Paths.OutputRoot)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("output root must not live inside the archive root")
	}
	return nil
}

func (c *Config) validatePack() error {
	if c.Pack.Extension == c.Archive.Extension {
		return errors.New("pack.extension must differ from archive.extension")
	}
	if c.Pack.KeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(c.Pack.KeyHex)
	if err != nil {
		return fmt.Errorf("pack.key_hex: %w", err)
	}
	if len(key) != 16 {
		return fmt.Errorf("pack.key_hex must encode 16 bytes, got %d", len(key))
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

// PackKey returns the decoded container key override, or nil for the default key.
func (c *Config) PackKey() []byte {
	if c.Pack.KeyHex == "" {
		return nil
	}
	key, err := hex.DecodeString(c.Pack.KeyHex)
	if err != nil {
		return nil
	}
	return key
}
