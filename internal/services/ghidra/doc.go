// Package ghidra mediates access to Ghidra's analyzeHeadless launcher.
//
// It builds the headless command line, passes provenance to the tool through
// environment variables, materializes the bundled metadata pre-script, and
// exposes an Executor seam so the analysis stage can be tested without a Ghidra
// install.
//
// Prefer this package over ad-hoc exec.Command usage when launching Ghidra so
// timeouts and process-group cleanup stay consistent.
package ghidra
