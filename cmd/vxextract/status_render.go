package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vxextract/internal/ledger"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 12

var titleCaser = cases.Title(language.English)

// label turns a stage or outcome identifier into a display label.
func label(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func renderField(name, value string) string {
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, name+":", value)
}

func outcomeColor(outcome ledger.Outcome) string {
	switch outcome {
	case ledger.OutcomeCompleted:
		return ansiGreen
	case ledger.OutcomeCached, ledger.OutcomeSkipped:
		return ansiYellow
	case ledger.OutcomeFailed:
		return ansiRed
	default:
		return ""
	}
}

func runStatusText(status ledger.RunStatus, colorize bool) string {
	text := label(string(status))
	if !colorize {
		return text
	}
	switch status {
	case ledger.RunSucceeded:
		return ansiGreen + text + ansiReset
	case ledger.RunFailed:
		return ansiRed + text + ansiReset
	default:
		return ansiYellow + text + ansiReset
	}
}

// outcomeCell renders n, coloured by outcome when n is non-zero.
func outcomeCell(n int, outcome ledger.Outcome, colorize bool) string {
	text := fmt.Sprintf("%d", n)
	if !colorize || n == 0 {
		return text
	}
	if color := outcomeColor(outcome); color != "" {
		return color + text + ansiReset
	}
	return text
}

// outcomeTable renders per-stage outcome counts in stage order.
func outcomeTable(stages []string, counts map[string]map[ledger.Outcome]int, colorize bool) string {
	headers := []string{"Stage"}
	aligns := []columnAlignment{alignLeft}
	for _, outcome := range ledger.Outcomes {
		headers = append(headers, label(string(outcome)))
		aligns = append(aligns, alignRight)
	}
	var rows [][]string
	for _, stage := range stages {
		byOutcome, ok := counts[stage]
		if !ok {
			continue
		}
		row := []string{label(stage)}
		for _, outcome := range ledger.Outcomes {
			row = append(row, outcomeCell(byOutcome[outcome], outcome, colorize))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return ""
	}
	return renderTable(tableSpec{Headers: headers, Rows: rows, Aligns: aligns})
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
