// Package logs locates and tails the per-run log files written under the
// state directory.
//
// Reading is bounded: only the requested number of trailing lines is held in
// memory, and follow mode polls from the last offset until the context ends.
package logs
