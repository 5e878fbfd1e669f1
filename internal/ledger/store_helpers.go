package ledger

import (
	"database/sql"
	"time"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		status     string
		startedRaw string
		finished   sql.NullString
		message    sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Command, &run.ArchiveRoot, &run.OutputRoot, &status, &startedRaw, &finished, &message); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = parseTime(startedRaw)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	run.ErrorMessage = message.String
	return run, nil
}

func scanJob(row scanner) (Job, error) {
	var (
		job         Job
		sample      sql.NullString
		outcome     string
		errorKind   sql.NullString
		message     sql.NullString
		durationMS  int64
		recordedRaw string
	)
	if err := row.Scan(&job.ID, &job.RunID, &job.Stage, &job.Family, &sample, &outcome, &errorKind, &message, &durationMS, &recordedRaw); err != nil {
		return Job{}, err
	}
	job.Sample = sample.String
	job.Outcome = Outcome(outcome)
	job.ErrorKind = errorKind.String
	job.ErrorMessage = message.String
	job.Duration = time.Duration(durationMS) * time.Millisecond
	job.RecordedAt = parseTime(recordedRaw)
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
