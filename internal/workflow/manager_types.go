package workflow

import (
	"context"
	"fmt"
	"time"

	"vxextract/internal/analysis"
	"vxextract/internal/corpus"
	"vxextract/internal/extraction"
	"vxextract/internal/ledger"
	"vxextract/internal/packing"
)

// Stage names used in logs, the ledger, and metrics.
const (
	StageExtract = "extract"
	StagePack    = "pack"
	StageAnalyze = "analyze"
)

// Extractor runs the extraction stage for one sample.
type Extractor interface {
	Extract(ctx context.Context, sample corpus.Sample) (extraction.Result, error)
}

// Packer runs the packing stage for one sample.
type Packer interface {
	Pack(ctx context.Context, sample corpus.Sample) (packing.Result, error)
}

// Analyzer runs the analysis stage for one family.
type Analyzer interface {
	Analyze(ctx context.Context, family string) (analysis.Result, error)
}

// StageSet bundles the concrete stage handlers the manager orchestrates. A nil
// Analyzer disables analysis.
type StageSet struct {
	Extractor Extractor
	Packer    Packer
	Analyzer  Analyzer
}

// Recorder persists run and job outcomes.
type Recorder interface {
	StartRun(ctx context.Context, run ledger.Run) error
	FinishRun(ctx context.Context, id string, status ledger.RunStatus, message string) error
	RecordJob(ctx context.Context, job ledger.Job) error
}

// JobError is a failed job.
type JobError struct {
	Stage  string
	Family string
	Sample string
	Err    error
}

func (e *JobError) Error() string {
	subject := e.Family
	if e.Sample != "" {
		subject += "/" + e.Sample
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, subject, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Report summarizes a finished session.
type Report struct {
	RunID     string
	Command   string
	StartedAt time.Time
	Duration  time.Duration
	Counts    map[string]map[ledger.Outcome]int
	Failures  []*JobError
	// Cancelled counts jobs that never started because the run was stopped.
	Cancelled int
}

// Total returns the number of jobs in stage with outcome.
func (r *Report) Total(stage string, outcome ledger.Outcome) int {
	if r == nil || r.Counts[stage] == nil {
		return 0
	}
	return r.Counts[stage][outcome]
}

type job struct {
	stage  string
	family string
	sample string
	run    func(ctx context.Context) (ledger.Outcome, error)
}
