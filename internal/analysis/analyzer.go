package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vxextract/internal/corpus"
	"vxextract/internal/fileutil"
	"vxextract/internal/logging"
	"vxextract/internal/services"
	"vxextract/internal/services/ghidra"
)

const stageName = "analyze"

// Runner launches analyzeHeadless.
type Runner interface {
	AnalyzeHeadless(ctx context.Context, req ghidra.Request, onOutput func(string)) error
}

// Settings holds the per-run headless options.
type Settings struct {
	RecursionDepth int
	CommitMessage  string
	ScriptDir      string
	Source         string
	// PassSourceURL exports the family listing URL as VX_URL.
	PassSourceURL bool
}

// Result reports the outcome of one family analysis.
type Result struct {
	Family   string
	Marker   string
	Cached   bool
	Skipped  bool
	Imports  int
	Duration time.Duration
}

// Analyzer runs Ghidra over each family's containers.
type Analyzer struct {
	layout   corpus.Layout
	settings Settings
	runner   Runner
	logger   *slog.Logger
}

// New constructs an analyzer.
func New(layout corpus.Layout, settings Settings, runner Runner, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		layout:   layout,
		settings: settings,
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "analysis"),
	}
}

// Analyze imports the family's containers into its Ghidra project unless the
// project already exists.
func (a *Analyzer) Analyze(ctx context.Context, family string) (Result, error) {
	if err := corpus.ValidateFamily(family); err != nil {
		return Result{}, err
	}
	ctx = services.WithStage(services.WithFamily(ctx, family), stageName)
	logger := logging.WithContext(ctx, a.logger)

	marker := a.layout.ProjectMarker(family)
	result := Result{Family: family, Marker: marker}

	exists, err := fileutil.Exists(marker)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stat project", marker, err)
	}
	if exists {
		logger.Debug("project already present", logging.String("marker", marker))
		result.Cached = true
		return result, nil
	}

	importDir := a.layout.FamilyPackedDir(family)
	count, err := countContainers(importDir, a.layout.PackExt)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "scan containers", importDir, err)
	}
	if count == 0 {
		logging.WarnWithHint(logger, "no containers to analyze; family skipped", "analysis_skipped",
			"run pack for this family first",
			logging.String("dir", importDir),
		)
		result.Skipped = true
		return result, nil
	}
	result.Imports = count

	if a.runner == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "launch", "no Ghidra runner configured", nil)
	}
	if err := os.MkdirAll(a.layout.ProjectRoot(), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "create project directory", a.layout.ProjectRoot(), err)
	}
	if _, err := ghidra.EnsurePreScript(a.settings.ScriptDir); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "install pre-script", a.settings.ScriptDir, err)
	}

	req := ghidra.Request{
		ProjectDir:     a.layout.ProjectRoot(),
		ProjectName:    family,
		RecursionDepth: a.settings.RecursionDepth,
		CommitMessage:  a.settings.CommitMessage,
		ScriptDir:      a.settings.ScriptDir,
		PreScript:      ghidra.PreScriptName,
		ImportPath:     importDir,
		Env:            a.environment(family),
	}

	logger.Info("starting headless analysis", logging.Int("containers", count))
	started := time.Now()
	err = a.runner.AnalyzeHeadless(ctx, req, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			logger.Debug(line, logging.String("source", "analyzeHeadless"))
		}
	})
	result.Duration = time.Since(started)
	if err != nil {
		return Result{}, fmt.Errorf("analyze %s: %w", family, err)
	}

	if ok, _ := fileutil.Exists(marker); !ok {
		logging.WarnWithHint(logger, "analysis finished without a project marker", "analysis_marker_missing",
			"the family will be analyzed again next run; check the analyzeHeadless output",
			logging.String("marker", marker),
		)
	}
	logger.Info("analysis complete",
		logging.Int("containers", count),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (a *Analyzer) environment(family string) map[string]string {
	env := map[string]string{
		ghidra.EnvFamily: family,
		ghidra.EnvSource: a.settings.Source,
	}
	if a.settings.PassSourceURL {
		env[ghidra.EnvURL] = a.layout.FamilyURL(family)
	}
	return env
}

// countContainers counts files with extension ext below dir. A missing dir
// counts as empty.
func countContainers(dir, ext string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			count++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return count, err
}
