// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp family, sample, stage, and run identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification into the run ledger.
//
// The subpackages wrap the external collaborators: the 7z reader and the
// Ghidra headless launcher.
package services
