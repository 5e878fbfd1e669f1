package preflight

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"vxextract/internal/config"
	"vxextract/internal/deps"
	"vxextract/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Warning marks a failed check that does not block the run.
	Warning bool
}

// MinFreeBytes is the free-space threshold below which the output root is
// reported as a warning.
const MinFreeBytes uint64 = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
// Ghidra checks run only when analyze is true.
func RunAll(ctx context.Context, cfg *config.Config, analyze bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryRead("Archive root", cfg.Paths.ArchiveRoot),
		CheckDirectoryRead("Families directory", filepath.Join(cfg.Paths.ArchiveRoot, "Families")),
		CheckDirectoryAccess("Output root", cfg.Paths.OutputRoot),
		CheckFreeSpace("Output free space", cfg.Paths.OutputRoot, MinFreeBytes),
	}

	if analyze {
		if cfg.Analysis.GhidraInstallDir == "" {
			results = append(results, Result{Name: "Ghidra install", Detail: "not configured"})
		} else {
			results = append(results, CheckDirectoryRead("Ghidra install", cfg.Analysis.GhidraInstallDir))
			for _, status := range deps.CheckBinaries(deps.GhidraRequirements(cfg.AnalyzeHeadlessPath())) {
				results = append(results, fromDependency(status))
			}
		}
	}
	return results
}

// Err joins the blocking failures in results into one configuration error,
// or returns nil when every blocking check passed.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Passed || r.Warning {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
	}
	if len(errs) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", "", errors.Join(errs...))
}

func fromDependency(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available, Warning: status.Optional}
	if status.Available {
		result.Detail = status.Command
		result.Warning = false
	} else {
		result.Detail = status.Detail
	}
	return result
}
