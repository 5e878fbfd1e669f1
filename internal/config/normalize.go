package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchive()
	c.normalizePack()
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	c.normalizeLogging()
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	if c.Metrics.Textfile != "" {
		expanded, err := expandPath(c.Metrics.Textfile)
		if err != nil {
			return fmt.Errorf("metrics.textfile: %w", err)
		}
		c.Metrics.Textfile = expanded
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ArchiveRoot, err = expandPath(strings.TrimSpace(c.Paths.ArchiveRoot)); err != nil {
		return fmt.Errorf("paths.archive_root: %w", err)
	}
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir(c.Paths.OutputRoot)
		return nil
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArchive() {
	if c.Archive.Password == "" {
		c.Archive.Password = defaultArchivePassword
	}
	c.Archive.Extension = normalizeExtension(c.Archive.Extension, defaultArchiveExtension)
}

func (c *Config) normalizePack() {
	c.Pack.Extension = normalizeExtension(c.Pack.Extension, defaultPackExtension)
	c.Pack.Source = strings.TrimSpace(c.Pack.Source)
	if c.Pack.Source == "" {
		c.Pack.Source = defaultPackSource
	}
	c.Pack.SourceURLBase = strings.TrimRight(strings.TrimSpace(c.Pack.SourceURLBase), "/")
	if c.Pack.SourceURLBase == "" {
		c.Pack.SourceURLBase = defaultSourceURLBase
	}
	c.Pack.KeyHex = strings.ToLower(strings.TrimSpace(c.Pack.KeyHex))
}

func (c *Config) normalizeAnalysis() error {
	c.Analysis.GhidraInstallDir = strings.TrimSpace(c.Analysis.GhidraInstallDir)
	if c.Analysis.GhidraInstallDir == "" {
		if value, ok := os.LookupEnv(GhidraInstallEnv); ok {
			c.Analysis.GhidraInstallDir = strings.TrimSpace(value)
		}
	}
	if c.Analysis.GhidraInstallDir != "" {
		expanded, err := expandPath(c.Analysis.GhidraInstallDir)
		if err != nil {
			return fmt.Errorf("analysis.ghidra_install_dir: %w", err)
		}
		c.Analysis.GhidraInstallDir = expanded
	}
	c.Analysis.ProjectDir = strings.TrimSpace(c.Analysis.ProjectDir)
	if c.Analysis.ProjectDir == "" {
		c.Analysis.ProjectDir = defaultProjectDir
	}
	if c.Analysis.RecursionDepth <= 0 {
		c.Analysis.RecursionDepth = defaultRecursionDepth
	}
	c.Analysis.CommitMessage = strings.TrimSpace(c.Analysis.CommitMessage)
	if c.Analysis.CommitMessage == "" {
		c.Analysis.CommitMessage = defaultCommitMessage
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtension(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, ".") {
		value = "." + value
	}
	return value
}
