package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vxextract/internal/corpus"
	"vxextract/internal/fileutil"
	"vxextract/internal/ledger"
)

type familyStatus struct {
	Family    string `json:"family"`
	Samples   int    `json:"samples"`
	Extracted int    `json:"extracted"`
	Packed    int    `json:"packed"`
	Analyzed  bool   `json:"analyzed"`
}

type lastRunStatus struct {
	ID         string                            `json:"id"`
	Command    string                            `json:"command"`
	Status     ledger.RunStatus                  `json:"status"`
	StartedAt  time.Time                         `json:"started_at"`
	FinishedAt *time.Time                        `json:"finished_at,omitempty"`
	Error      string                            `json:"error,omitempty"`
	Counts     map[string]map[ledger.Outcome]int `json:"counts"`
	Failures   []failedJob                       `json:"failures,omitempty"`
}

type failedJob struct {
	Stage  string `json:"stage"`
	Family string `json:"family"`
	Sample string `json:"sample,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error"`
}

type statusView struct {
	ArchiveRoot string         `json:"archive_root"`
	OutputRoot  string         `json:"output_root"`
	Families    []familyStatus `json:"families"`
	LastRun     *lastRunStatus `json:"last_run,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [FAMILY...]",
		Short: "Show per-family progress and the last recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, layout, err := ctx.layout()
			if err != nil {
				return err
			}
			families, err := layout.SelectFamilies(args)
			if err != nil {
				return err
			}
			view := statusView{
				ArchiveRoot: cfg.Paths.ArchiveRoot,
				OutputRoot:  cfg.Paths.OutputRoot,
				Families:    make([]familyStatus, 0, len(families)),
			}
			for _, family := range families {
				status, err := collectFamilyStatus(layout, family)
				if err != nil {
					return err
				}
				view.Families = append(view.Families, status)
			}
			if view.LastRun, err = loadLastRun(cmd.Context(), cfg.LedgerPath()); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, view)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func collectFamilyStatus(layout corpus.Layout, family string) (familyStatus, error) {
	status := familyStatus{Family: family}
	samples, err := layout.Samples(family)
	if err != nil {
		return status, err
	}
	status.Samples = len(samples)
	for _, sample := range samples {
		if ok, _ := fileutil.Exists(layout.ExtractedPath(sample)); ok {
			status.Extracted++
		}
		if ok, _ := fileutil.Exists(layout.PackedPath(sample)); ok {
			status.Packed++
		}
	}
	status.Analyzed, _ = fileutil.Exists(layout.ProjectMarker(family))
	return status, nil
}

// loadLastRun reads the most recent run without creating a ledger that does
// not exist yet.
func loadLastRun(ctx context.Context, path string) (*lastRunStatus, error) {
	if ok, err := fileutil.Exists(path); err != nil || !ok {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := ledger.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	summary, err := store.LastRun(ctx)
	if err != nil || summary == nil {
		return nil, err
	}
	last := &lastRunStatus{
		ID:        summary.Run.ID,
		Command:   summary.Run.Command,
		Status:    summary.Run.Status,
		StartedAt: summary.Run.StartedAt,
		Error:     summary.Run.ErrorMessage,
		Counts:    summary.Counts,
	}
	if !summary.Run.FinishedAt.IsZero() {
		finished := summary.Run.FinishedAt
		last.FinishedAt = &finished
	}
	failed, err := store.Jobs(ctx, summary.Run.ID, ledger.OutcomeFailed)
	if err != nil {
		return nil, err
	}
	for _, job := range failed {
		last.Failures = append(last.Failures, failedJob{
			Stage:  job.Stage,
			Family: job.Family,
			Sample: job.Sample,
			Kind:   job.ErrorKind,
			Error:  job.ErrorMessage,
		})
	}
	return last, nil
}

func renderStatus(view statusView, colorize bool) string {
	lines := renderSectionHeader("Corpus", colorize)
	lines = append(lines,
		renderField("Archive", view.ArchiveRoot),
		renderField("Output", view.OutputRoot),
	)
	if len(view.Families) == 0 {
		lines = append(lines, "  No families found")
	} else {
		rows := make([][]string, 0, len(view.Families))
		var total familyStatus
		analyzed := 0
		for _, f := range view.Families {
			rows = append(rows, []string{
				f.Family,
				fmt.Sprintf("%d", f.Samples),
				fmt.Sprintf("%d", f.Extracted),
				fmt.Sprintf("%d", f.Packed),
				yesNo(f.Analyzed),
			})
			total.Samples += f.Samples
			total.Extracted += f.Extracted
			total.Packed += f.Packed
			if f.Analyzed {
				analyzed++
			}
		}
		lines = append(lines, renderTable(tableSpec{
			Headers: []string{"Family", "Samples", "Extracted", "Packed", "Analyzed"},
			Rows:    rows,
			Footer: []string{
				"Total",
				fmt.Sprintf("%d", total.Samples),
				fmt.Sprintf("%d", total.Extracted),
				fmt.Sprintf("%d", total.Packed),
				fmt.Sprintf("%d/%d", analyzed, len(view.Families)),
			},
			Aligns: []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		}))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Last run", colorize)...)
	if view.LastRun == nil {
		lines = append(lines, "  No runs recorded")
		return strings.Join(lines, "\n")
	}
	run := view.LastRun
	lines = append(lines,
		renderField("ID", run.ID),
		renderField("Command", run.Command),
		renderField("Status", runStatusText(run.Status, colorize)),
		renderField("Started", run.StartedAt.Local().Format(time.DateTime)),
	)
	if run.FinishedAt != nil {
		lines = append(lines, renderField("Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()))
	}
	if run.Error != "" {
		lines = append(lines, renderField("Error", firstLine(run.Error)))
	}
	if table := outcomeTable(stageOrder, run.Counts, colorize); table != "" {
		lines = append(lines, table)
	}
	if len(run.Failures) > 0 {
		lines = append(lines, "", "Failed jobs:")
		for _, f := range run.Failures {
			subject := f.Family
			if f.Sample != "" {
				subject += "/" + f.Sample
			}
			line := fmt.Sprintf("  %s %s: %s", f.Stage, subject, firstLine(f.Error))
			if colorize {
				line = ansiRed + line + ansiReset
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
