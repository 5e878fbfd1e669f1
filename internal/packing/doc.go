// Package packing wraps extracted samples in CaRT containers that carry their
// provenance.
//
// Packing is the only stage with an upstream edge: a missing extracted file is
// produced on demand through the extraction stage before the container is
// written. Existing containers are left alone.
package packing
