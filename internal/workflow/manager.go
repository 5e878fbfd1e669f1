package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vxextract/internal/config"
	"vxextract/internal/corpus"
	"vxextract/internal/ledger"
	"vxextract/internal/logging"
	"vxextract/internal/services"
)

// Manager creates sessions over one corpus and output root.
type Manager struct {
	cfg      *config.Config
	layout   corpus.Layout
	stages   StageSet
	recorder Recorder
	logger   *slog.Logger

	workers  int
	failFast bool
	textfile string
	newRunID func() string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRecorder records runs and jobs, typically in the ledger store.
func WithRecorder(recorder Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithWorkers overrides the configured pool size when n is positive.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithFailFast overrides the configured failure policy.
func WithFailFast(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.failFast = enabled
	}
}

// WithRunIDGenerator replaces the UUID run ID source (primarily for tests).
func WithRunIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newRunID = fn
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, stages StageSet, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		layout:   corpus.NewLayout(cfg),
		stages:   stages,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		workers:  cfg.Workflow.Workers,
		failFast: cfg.Workflow.FailFast,
		textfile: cfg.Metrics.Textfile,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}

// Session is one locked run over the output root.
type Session struct {
	m       *Manager
	id      string
	command string
	started time.Time
	lock    *outputLock
	metrics *runMetrics
	logger  *slog.Logger

	mu        sync.Mutex
	counts    map[string]map[ledger.Outcome]int
	failures  []*JobError
	cancelled int
	closed    bool
}

// Begin acquires the output-root lock and records the start of a run. An
// empty runID generates one. The caller must Close the session.
func (m *Manager) Begin(ctx context.Context, command, runID string) (*Session, error) {
	if runID == "" {
		runID = m.newRunID()
	}
	if err := m.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "prepare state directory", "", err)
	}
	lock, err := acquireLock(m.cfg.LockPath())
	if err != nil {
		return nil, err
	}

	s := &Session{
		m:       m,
		id:      runID,
		command: command,
		started: time.Now(),
		lock:    lock,
		metrics: newRunMetrics(),
		logger:  m.logger.With(logging.String(logging.FieldRunID, runID)),
		counts:  make(map[string]map[ledger.Outcome]int),
	}
	if m.recorder != nil {
		err := m.recorder.StartRun(ctx, ledger.Run{
			ID:          runID,
			Command:     command,
			ArchiveRoot: m.cfg.Paths.ArchiveRoot,
			OutputRoot:  m.cfg.Paths.OutputRoot,
			StartedAt:   s.started,
		})
		if err != nil {
			_ = lock.release()
			return nil, fmt.Errorf("start run: %w", err)
		}
	}
	s.logger.Info("run started",
		logging.String("command", command),
		logging.Int("workers", m.workers),
		logging.Bool("fail_fast", m.failFast),
	)
	return s, nil
}

// ID returns the session's run ID.
func (s *Session) ID() string {
	return s.id
}

// Close records the run outcome, writes metrics, and releases the lock.
// runErr is the error the caller is about to return, if any.
func (s *Session) Close(ctx context.Context, runErr error) (*Report, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("session already closed")
	}
	s.closed = true
	report := &Report{
		RunID:     s.id,
		Command:   s.command,
		StartedAt: s.started,
		Duration:  time.Since(s.started),
		Counts:    s.counts,
		Failures:  s.failures,
		Cancelled: s.cancelled,
	}
	s.mu.Unlock()

	status := ledger.RunSucceeded
	message := ""
	if runErr != nil {
		status = ledger.RunFailed
		message = runErr.Error()
	}

	var errs []error
	if s.m.recorder != nil {
		// Recording the finish must survive a cancelled run context.
		finishCtx := context.WithoutCancel(ctx)
		if err := s.m.recorder.FinishRun(finishCtx, s.id, status, message); err != nil {
			errs = append(errs, fmt.Errorf("finish run: %w", err))
		}
	}
	s.metrics.finish(s.started, report.Duration, runErr == nil)
	if s.m.textfile != "" {
		if err := s.metrics.writeTextfile(s.m.textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.lock.release(); err != nil {
		errs = append(errs, err)
	}

	attrs := []logging.Attr{
		logging.Duration("duration", report.Duration),
		logging.Int("failures", len(report.Failures)),
	}
	if report.Cancelled > 0 {
		attrs = append(attrs, logging.Int("cancelled", report.Cancelled))
	}
	if runErr != nil {
		s.logger.Error("run finished with failures", logging.Args(attrs...)...)
	} else {
		s.logger.Info("run finished", logging.Args(attrs...)...)
	}
	return report, errors.Join(errs...)
}

// Run begins a session, applies fn, and closes the session, returning the
// report and the joined error of fn and the close.
func (m *Manager) Run(ctx context.Context, command, runID string, fn func(ctx context.Context, s *Session) error) (*Report, error) {
	s, err := m.Begin(ctx, command, runID)
	if err != nil {
		return nil, err
	}
	runErr := fn(ctx, s)
	report, closeErr := s.Close(ctx, runErr)
	return report, errors.Join(runErr, closeErr)
}
