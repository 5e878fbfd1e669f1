// Package sevenzip mediates access to password-protected 7z archives.
//
// It wraps github.com/bodgit/sevenzip behind a small Opener interface so the
// extraction stage can be exercised with in-memory fakes, and it tags decoder
// failures with services.ErrExternalTool.
package sevenzip
