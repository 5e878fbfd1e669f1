// Package deps checks that the external programs vxextract launches are
// present and executable.
package deps
