// Package workflow expands pipeline requests into per-sample and per-family
// jobs and runs them on a bounded worker pool.
//
// A Session is one run: it holds the exclusive output-root lock, carries the
// run ID stamped on every log line, records each job outcome in the ledger and
// in run metrics, and collects failures. By default every job runs and the
// failures are returned together; with fail-fast the first failure cancels the
// jobs that have not started yet.
//
// Stage work itself lives in the extraction, packing, and analysis packages.
// This package only decides what to run, how many at once, and what to record.
package workflow
