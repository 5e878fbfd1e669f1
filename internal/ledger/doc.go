// Package ledger records runs and per-job outcomes in a SQLite database under
// the state directory.
//
// The filesystem remains the source of truth for what has been produced; the
// ledger answers "what happened last time" for the status command and keeps
// failure messages after the terminal scrollback is gone. Schema changes ship
// as embedded, ordered SQL migrations.
package ledger
