package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the corpus and output locations.
type Paths struct {
	ArchiveRoot string `toml:"archive_root"`
	OutputRoot  string `toml:"output_root"`
	StateDir    string `toml:"state_dir"`
}

// Archive describes the password-protected corpus archives.
type Archive struct {
	Password  string `toml:"password"`
	Extension string `toml:"extension"`
}

// Pack contains the container and provenance settings.
type Pack struct {
	Extension     string `toml:"extension"`
	Source        string `toml:"source"`
	SourceURLBase string `toml:"source_url_base"`
	// KeyHex overrides the container RC4 key. Empty keeps the published default.
	KeyHex string `toml:"key_hex"`
}

// Analysis contains the Ghidra headless settings.
type Analysis struct {
	Enabled          bool   `toml:"enabled"`
	GhidraInstallDir string `toml:"ghidra_install_dir"`
	ProjectDir       string `toml:"project_dir"`
	RecursionDepth   int    `toml:"recursion_depth"`
	CommitMessage    string `toml:"commit_message"`
	TimeoutMinutes   int    `toml:"timeout_minutes"`
	PassSourceURL    bool   `toml:"pass_source_url"`
}

// Workflow controls job fan-out.
type Workflow struct {
	Workers  int  `toml:"workers"`
	FailFast bool `toml:"fail_fast"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   bool   `toml:"file"`
	// RetentionDays prunes run logs older than this many days. Zero keeps everything.
	RetentionDays int `toml:"retention_days"`
}

// Metrics contains the Prometheus textfile output settings.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Config encapsulates all configuration values for vxextract.
//
// Configuration sections by subsystem:
//   - Paths: corpus root, output root, state directory
//   - Archive: archive password and extension
//   - Pack: container extension and provenance fields
//   - Analysis: Ghidra headless invocation
//   - Workflow: worker count and failure policy
//   - Logging: log format and level
//   - Metrics: Prometheus textfile location
type Config struct {
	Paths    Paths    `toml:"paths"`
	Archive  Archive  `toml:"archive"`
	Pack     Pack     `toml:"pack"`
	Analysis Analysis `toml:"analysis"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vxextract/config.toml")
}

// Load locates, parses, and normalizes a configuration file. The returned config
// has all path fields expanded. Validation is left to the caller because the
// corpus and output roots usually arrive as positional arguments after loading.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vxextract.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SetRoots applies the corpus and output roots given on the command line and
// re-derives the state directory when it was not set explicitly.
func (c *Config) SetRoots(archiveRoot, outputRoot string) error {
	var err error
	if strings.TrimSpace(archiveRoot) != "" {
		if c.Paths.ArchiveRoot, err = expandPath(archiveRoot); err != nil {
			return fmt.Errorf("archive root: %w", err)
		}
	}
	if strings.TrimSpace(outputRoot) != "" {
		previousDefault := defaultStateDir(c.Paths.OutputRoot)
		if c.Paths.OutputRoot, err = expandPath(outputRoot); err != nil {
			return fmt.Errorf("output root: %w", err)
		}
		if c.Paths.StateDir == "" || c.Paths.StateDir == previousDefault {
			c.Paths.StateDir = defaultStateDir(c.Paths.OutputRoot)
		}
	}
	return nil
}

// SetGhidraInstallDir overrides the Ghidra install directory when dir is non-empty.
func (c *Config) SetGhidraInstallDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	expanded, err := expandPath(dir)
	if err != nil {
		return fmt.Errorf("ghidra install directory: %w", err)
	}
	c.Analysis.GhidraInstallDir = expanded
	return nil
}

// EnsureDirectories creates the state directory owned by vxextract.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory that receives run logs.
func (c *Config) LogDir() string {
	if c.Paths.StateDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, "logs")
}

// LedgerPath returns the run ledger database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the output-root lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vxextract.lock")
}

// ScriptDir returns the directory holding the Ghidra pre-script.
func (c *Config) ScriptDir() string {
	return filepath.Join(c.Paths.StateDir, "ghidra_scripts")
}

// ProjectRoot returns the directory holding the per-family Ghidra projects.
func (c *Config) ProjectRoot() string {
	return filepath.Join(c.Paths.OutputRoot, c.Analysis.ProjectDir)
}

// AnalyzeHeadlessPath returns the analyzeHeadless launcher inside the Ghidra install.
func (c *Config) AnalyzeHeadlessPath() string {
	return filepath.Join(c.Analysis.GhidraInstallDir, "support", "analyzeHeadless")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir(outputRoot string) string {
	if strings.TrimSpace(outputRoot) == "" {
		return ""
	}
	return filepath.Join(outputRoot, "state")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
