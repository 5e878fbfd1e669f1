package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"vxextract/internal/workflow"
)

var stageOrder = []string{workflow.StageExtract, workflow.StagePack, workflow.StageAnalyze}

// printReport writes the end-of-run summary.
func printReport(out io.Writer, report *workflow.Report, colorize bool) {
	lines := renderSectionHeader("Run "+report.RunID, colorize)
	lines = append(lines,
		renderField("Command", report.Command),
		renderField("Duration", report.Duration.Round(time.Millisecond).String()),
		renderField("Failures", fmt.Sprintf("%d", len(report.Failures))),
	)
	if report.Cancelled > 0 {
		lines = append(lines, renderField("Cancelled", fmt.Sprintf("%d", report.Cancelled)))
	}
	if table := outcomeTable(stageOrder, report.Counts, colorize); table != "" {
		lines = append(lines, table)
	}
	if len(report.Failures) > 0 {
		lines = append(lines, "", "Failed jobs:")
		for _, failure := range report.Failures {
			line := "  " + failure.Error()
			if colorize {
				line = ansiRed + line + ansiReset
			}
			lines = append(lines, line)
		}
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
