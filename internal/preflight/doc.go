// Package preflight provides readiness checks for the paths and programs a
// vxextract run depends on.
//
// The CLI runs RunAll before starting a pipeline run so a missing archive
// root, an unwritable output root, or a broken Ghidra install fails at startup
// instead of after hours of packing. Low free space is reported as a warning
// and does not block the run.
package preflight
