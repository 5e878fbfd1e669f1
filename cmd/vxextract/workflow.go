package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vxextract/internal/analysis"
	"vxextract/internal/config"
	"vxextract/internal/corpus"
	"vxextract/internal/extraction"
	"vxextract/internal/ledger"
	"vxextract/internal/logging"
	"vxextract/internal/logs"
	"vxextract/internal/packing"
	"vxextract/internal/preflight"
	"vxextract/internal/services/ghidra"
	"vxextract/internal/staging"
	"vxextract/internal/workflow"
)

// staleTempAge is how old an atomic-write temp file must be before a new run
// removes it.
const staleTempAge = time.Minute

type sessionFn func(ctx context.Context, s *workflow.Session) error

func pipelineFn(analyze bool, families []string) sessionFn {
	return func(ctx context.Context, s *workflow.Session) error {
		return s.Pipeline(ctx, analyze, families...)
	}
}

// runWorkflow resolves the configuration, runs preflight, and executes fn
// inside a locked, recorded session. The report is printed even when fn fails.
func (c *commandContext) runWorkflow(cmd *cobra.Command, command string, analyze bool, fn sessionFn) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if analyze {
		if err := cfg.ValidateAnalysis(); err != nil {
			return err
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, runID, c.flags.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.Logging.File {
		keep := logs.RunLogPath(cfg.LogDir(), runID)
		logging.CleanupOldLogs(logger, cfg.LogDir(), logging.RunLogPattern, keep, cfg.Logging.RetentionDays)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := preflight.RunAll(ctx, cfg, analyze)
	for _, r := range results {
		if r.Warning && !r.Passed {
			logging.WarnWithHint(logger, "preflight warning", "preflight", r.Detail, logging.String("check", r.Name))
		}
	}
	if err := preflight.Err(results); err != nil {
		return err
	}

	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	pruneLedger(ctx, store, cfg, logger)

	stages, err := buildStages(cfg, analyze, logger)
	if err != nil {
		return err
	}
	manager := workflow.NewManager(cfg, stages, logger, workflow.WithRecorder(store))
	layout := corpus.NewLayout(cfg)
	report, runErr := manager.Run(ctx, command, runID, func(ctx context.Context, s *workflow.Session) error {
		cleanStaleTemps(ctx, layout, logger)
		return fn(ctx, s)
	})
	if report != nil {
		printReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
	}
	return runErr
}

// cleanStaleTemps removes temp files left by interrupted writes. It must run
// while the output-root lock is held.
func cleanStaleTemps(ctx context.Context, layout corpus.Layout, logger *slog.Logger) {
	result := staging.CleanStale(ctx, []string{layout.ExtractedRoot(), layout.PackedRoot()}, staleTempAge, logger)
	for _, cerr := range result.Errors {
		logging.WarnWithHint(logger, "stale temp cleanup incomplete", "staging_cleanup_failed",
			"check output root permissions",
			logging.String("path", cerr.Path),
			logging.Error(cerr.Error),
		)
	}
}

// buildStages wires the concrete stage handlers. The analyzer is only built
// when analyze is true so extraction and packing never need Ghidra.
func buildStages(cfg *config.Config, analyze bool, logger *slog.Logger) (workflow.StageSet, error) {
	layout := corpus.NewLayout(cfg)
	extractor := extraction.New(layout, cfg.Archive.Password, logger)
	stages := workflow.StageSet{
		Extractor: extractor,
		Packer:    packing.New(layout, cfg.Pack.Source, cfg.PackKey(), extractor, logger),
	}
	if !analyze {
		return stages, nil
	}
	client, err := ghidra.New(cfg.Analysis.GhidraInstallDir,
		ghidra.WithTimeout(time.Duration(cfg.Analysis.TimeoutMinutes)*time.Minute))
	if err != nil {
		return workflow.StageSet{}, err
	}
	stages.Analyzer = analysis.New(layout, analysis.Settings{
		RecursionDepth: cfg.Analysis.RecursionDepth,
		CommitMessage:  cfg.Analysis.CommitMessage,
		ScriptDir:      cfg.ScriptDir(),
		Source:         cfg.Pack.Source,
		PassSourceURL:  cfg.Analysis.PassSourceURL,
	}, client, logger)
	return stages, nil
}

func pruneLedger(ctx context.Context, store *ledger.Store, cfg *config.Config, logger *slog.Logger) {
	if cfg.Logging.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)
	removed, err := store.PruneRuns(ctx, cutoff)
	if err != nil {
		logger.Warn("prune ledger", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Debug("pruned ledger runs", logging.Int64("removed", removed))
	}
}
