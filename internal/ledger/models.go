package ledger

import "time"

// Outcome is the terminal state of one job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCached    Outcome = "cached"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{OutcomeCompleted, OutcomeCached, OutcomeSkipped, OutcomeFailed}

// RunStatus is the state of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of a pipeline command.
type Run struct {
	ID           string
	Command      string
	ArchiveRoot  string
	OutputRoot   string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorMessage string
}

// Job is the recorded outcome of one extract, pack, or analyze job.
type Job struct {
	ID           int64
	RunID        string
	Stage        string
	Family       string
	Sample       string
	Outcome      Outcome
	ErrorKind    string
	ErrorMessage string
	Duration     time.Duration
	RecordedAt   time.Time
}

// RunSummary is a run with its per-stage outcome counts.
type RunSummary struct {
	Run    Run
	Counts map[string]map[Outcome]int
}

// Total returns the number of jobs with outcome across all stages.
func (s RunSummary) Total(outcome Outcome) int {
	total := 0
	for _, byOutcome := range s.Counts {
		total += byOutcome[outcome]
	}
	return total
}
