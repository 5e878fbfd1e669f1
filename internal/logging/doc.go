// Package logging assembles structured slog loggers and formatting helpers used
// across vxextract.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code tags log lines with
// the family, sample, stage, and run ID it is working on. The console handler
// lifts those fields into a bracketed prefix so parallel workers stay readable.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
