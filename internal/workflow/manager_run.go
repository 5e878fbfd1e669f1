package workflow

import (
	"context"
	"errors"

	"vxextract/internal/corpus"
	"vxextract/internal/ledger"
	"vxextract/internal/logging"
	"vxextract/internal/services"
)

// ExtractAll runs one extraction job per sample of the selected families (all
// families when none are named).
func (s *Session) ExtractAll(ctx context.Context, families ...string) error {
	if s.m.stages.Extractor == nil {
		return services.Wrap(services.ErrConfiguration, StageExtract, "plan", "no extractor configured", nil)
	}
	samples, err := s.m.layout.AllSamples(families...)
	if err != nil {
		return err
	}
	jobs := make([]job, 0, len(samples))
	for _, sample := range samples {
		jobs = append(jobs, job{
			stage:  StageExtract,
			family: sample.Family,
			sample: sample.Path,
			run: func(ctx context.Context) (ledger.Outcome, error) {
				res, err := s.m.stages.Extractor.Extract(ctx, sample)
				return cachedOutcome(res.Cached), err
			},
		})
	}
	return s.runJobs(ctx, StageExtract, jobs)
}

// PackAll runs one pack job per sample of the selected families. Each job
// extracts its sample first when the extracted file is missing.
func (s *Session) PackAll(ctx context.Context, families ...string) error {
	if s.m.stages.Packer == nil {
		return services.Wrap(services.ErrConfiguration, StagePack, "plan", "no packer configured", nil)
	}
	samples, err := s.m.layout.AllSamples(families...)
	if err != nil {
		return err
	}
	return s.packSamples(ctx, samples)
}

// PackSamples runs one pack job per listed sample.
func (s *Session) PackSamples(ctx context.Context, samples []corpus.Sample) error {
	if s.m.stages.Packer == nil {
		return services.Wrap(services.ErrConfiguration, StagePack, "plan", "no packer configured", nil)
	}
	return s.packSamples(ctx, samples)
}

func (s *Session) packSamples(ctx context.Context, samples []corpus.Sample) error {
	jobs := make([]job, 0, len(samples))
	for _, sample := range samples {
		jobs = append(jobs, job{
			stage:  StagePack,
			family: sample.Family,
			sample: sample.Path,
			run: func(ctx context.Context) (ledger.Outcome, error) {
				res, err := s.m.stages.Packer.Pack(ctx, sample)
				return cachedOutcome(res.Cached), err
			},
		})
	}
	return s.runJobs(ctx, StagePack, jobs)
}

// AnalyzeAll runs one analysis job per selected family.
func (s *Session) AnalyzeAll(ctx context.Context, families ...string) error {
	if s.m.stages.Analyzer == nil {
		return services.Wrap(services.ErrConfiguration, StageAnalyze, "plan", "analysis is not configured", nil)
	}
	selected, err := s.m.layout.SelectFamilies(families)
	if err != nil {
		return err
	}
	jobs := make([]job, 0, len(selected))
	for _, family := range selected {
		jobs = append(jobs, job{
			stage:  StageAnalyze,
			family: family,
			run: func(ctx context.Context) (ledger.Outcome, error) {
				res, err := s.m.stages.Analyzer.Analyze(ctx, family)
				switch {
				case err != nil:
					return ledger.OutcomeFailed, err
				case res.Skipped:
					return ledger.OutcomeSkipped, nil
				default:
					return cachedOutcome(res.Cached), nil
				}
			},
		})
	}
	return s.runJobs(ctx, StageAnalyze, jobs)
}

// Pipeline packs every selected sample and then, when an analyzer is
// configured and analyze is true, analyzes every selected family. Analysis
// still runs after pack failures unless fail-fast is set; a family whose
// containers are all missing is skipped by the analyzer.
func (s *Session) Pipeline(ctx context.Context, analyze bool, families ...string) error {
	packErr := s.PackAll(ctx, families...)
	if packErr != nil && (s.m.failFast || ctx.Err() != nil || !isJobFailure(packErr)) {
		return packErr
	}
	if !analyze || s.m.stages.Analyzer == nil {
		return packErr
	}
	s.logger.Info("packing finished; starting analysis")
	return errors.Join(packErr, s.AnalyzeAll(ctx, families...))
}

func cachedOutcome(cached bool) ledger.Outcome {
	if cached {
		return ledger.OutcomeCached
	}
	return ledger.OutcomeCompleted
}

// isJobFailure reports whether err consists only of job failures, as opposed
// to a planning error such as an unknown family.
func isJobFailure(err error) bool {
	var jobErr *JobError
	return errors.As(err, &jobErr)
}
