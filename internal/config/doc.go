// Package config loads, normalizes, and validates vxextract configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the GHIDRA_INSTALL_DIR environment
// fallback. Corpus and output roots usually arrive on the command line, so
// Load only normalizes; callers apply SetRoots and then Validate.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical extensions, and clear validation errors.
package config
