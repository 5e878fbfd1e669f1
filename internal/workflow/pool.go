package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vxextract/internal/ledger"
	"vxextract/internal/logging"
	"vxextract/internal/services"
)

// runJobs executes jobs on at most workers goroutines. Every job's outcome is
// recorded. Without fail-fast all jobs run and their failures are joined; with
// fail-fast the first failure stops jobs that have not started.
func (s *Session) runJobs(ctx context.Context, stage string, jobs []job) error {
	logger := s.logger.With(logging.String(logging.FieldStage, stage))
	if len(jobs) == 0 {
		logger.Info("no jobs to run")
		return nil
	}
	logger.Info("dispatching jobs", logging.Int("jobs", len(jobs)), logging.Int("workers", s.m.workers))

	// gctx gates dispatch only; started jobs run on ctx and finish even after
	// a fail-fast stop.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.m.workers)

	var (
		mu   sync.Mutex
		errs []error
	)
	started := 0
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			if gctx.Err() != nil {
				s.noteCancelled(1)
				return nil
			}
			err := s.execute(ctx, j)
			if err == nil {
				return nil
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			if s.m.failFast {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	if skipped := len(jobs) - started; skipped > 0 {
		s.noteCancelled(skipped)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(errs) > 0 {
		logger.Warn("stage finished with failures", logging.Int("failures", len(errs)), logging.Int("jobs", len(jobs)))
		return errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// execute runs one job and records its outcome.
func (s *Session) execute(ctx context.Context, j job) error {
	ctx = services.WithRunID(ctx, s.id)
	started := time.Now()
	outcome, err := j.run(ctx)
	elapsed := time.Since(started)
	if err != nil {
		outcome = ledger.OutcomeFailed
	}

	var jobErr *JobError
	if err != nil {
		jobErr = &JobError{Stage: j.stage, Family: j.family, Sample: j.sample, Err: err}
		logging.WithContext(services.WithStage(services.WithSample(services.WithFamily(ctx, j.family), j.sample), j.stage), s.logger).
			Error("job failed",
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err),
			)
	}

	s.mu.Lock()
	if s.counts[j.stage] == nil {
		s.counts[j.stage] = make(map[ledger.Outcome]int)
	}
	s.counts[j.stage][outcome]++
	if jobErr != nil {
		s.failures = append(s.failures, jobErr)
	}
	s.mu.Unlock()
	s.metrics.observe(j.stage, outcome, elapsed)

	if s.m.recorder != nil {
		record := ledger.Job{
			RunID:    s.id,
			Stage:    j.stage,
			Family:   j.family,
			Sample:   j.sample,
			Outcome:  outcome,
			Duration: elapsed,
		}
		if err != nil {
			record.ErrorKind = services.Kind(err)
			record.ErrorMessage = err.Error()
		}
		if recErr := s.m.recorder.RecordJob(context.WithoutCancel(ctx), record); recErr != nil {
			logging.WarnWithHint(s.logger, "failed to record job outcome", "ledger_write_failed",
				"check the state directory; the output tree is unaffected",
				logging.Error(recErr),
			)
		}
	}

	if jobErr != nil {
		return jobErr
	}
	return nil
}

func (s *Session) noteCancelled(n int) {
	s.mu.Lock()
	s.cancelled += n
	s.mu.Unlock()
}
