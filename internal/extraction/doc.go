// Package extraction decrypts corpus archives into the extracted tree.
//
// Each sample archive holds one member. The extractor writes it to
// <out>/extracted/<family>/<sample> with mode 0644 and the member's
// modification time, through a temporary file that is renamed into place.
// An existing destination counts as done, so reruns are cheap no-ops.
package extraction
