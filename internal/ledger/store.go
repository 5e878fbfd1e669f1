package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// Fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrRunNotFound reports a lookup for a run that was never recorded.
var ErrRunNotFound = errors.New("ledger: run not found")

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Workers record concurrently; one connection serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// StartRun records the start of run. StartedAt defaults to now.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, command, archive_root, output_root, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.ArchiveRoot, run.OutputRoot, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// FinishRun marks run id as finished with status and an optional error message.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, message string) error {
	err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), nullableString(message), id,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RecordJob appends one job outcome to its run.
func (s *Store) RecordJob(ctx context.Context, job Job) error {
	if job.RecordedAt.IsZero() {
		job.RecordedAt = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO jobs (run_id, stage, family, sample, outcome, error_kind, error_message, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.RunID, job.Stage, job.Family, nullableString(job.Sample), string(job.Outcome),
		nullableString(job.ErrorKind), nullableString(job.ErrorMessage),
		job.Duration.Milliseconds(), formatTime(job.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run with its outcome counts, or
// nil when no run has been recorded.
func (s *Store) LastRun(ctx context.Context) (*RunSummary, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	return s.Summary(ctx, id)
}

// Summary returns run id with its per-stage outcome counts.
func (s *Store) Summary(ctx context.Context, id string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, archive_root, output_root, status, started_at, finished_at, error_message FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, outcome, COUNT(1) FROM jobs WHERE run_id = ? GROUP BY stage, outcome`, id)
	if err != nil {
		return nil, fmt.Errorf("query job counts: %w", err)
	}
	defer rows.Close()

	summary := &RunSummary{Run: run, Counts: make(map[string]map[Outcome]int)}
	for rows.Next() {
		var (
			stage, outcome string
			count          int
		)
		if err := rows.Scan(&stage, &outcome, &count); err != nil {
			return nil, fmt.Errorf("scan job counts: %w", err)
		}
		if summary.Counts[stage] == nil {
			summary.Counts[stage] = make(map[Outcome]int)
		}
		summary.Counts[stage][Outcome(outcome)] = count
	}
	return summary, rows.Err()
}

// Jobs lists the jobs of run id, optionally restricted to outcomes.
func (s *Store) Jobs(ctx context.Context, id string, outcomes ...Outcome) ([]Job, error) {
	query := `SELECT id, run_id, stage, family, sample, outcome, error_kind, error_message, duration_ms, recorded_at FROM jobs WHERE run_id = ?`
	args := []any{id}
	if len(outcomes) > 0 {
		placeholders := make([]string, len(outcomes))
		for i, o := range outcomes {
			placeholders[i] = "?"
			args = append(args, string(o))
		}
		query += " AND outcome IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// PruneRuns deletes runs (and their jobs) started before cutoff and returns
// how many were removed.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ? AND status != ?`, formatTime(cutoff), string(RunRunning))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}
