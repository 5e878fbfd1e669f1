package testsupport

import (
	"context"
	"testing"
	"time"

	"vxextract/internal/config"
	"vxextract/internal/ledger"
)

// MustOpenLedger opens the config's ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun records a finished run with the given job outcomes for tests.
func NewRun(t testing.TB, store *ledger.Store, id string, jobs ...ledger.Job) {
	t.Helper()

	ctx := context.Background()
	started := time.Now().Add(-time.Minute)
	if err := store.StartRun(ctx, ledger.Run{ID: id, Command: "run", StartedAt: started}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	status := ledger.RunSucceeded
	for _, job := range jobs {
		job.RunID = id
		if job.RecordedAt.IsZero() {
			job.RecordedAt = started.Add(time.Second)
		}
		if job.Outcome == ledger.OutcomeFailed {
			status = ledger.RunFailed
		}
		if err := store.RecordJob(ctx, job); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}
	if err := store.FinishRun(ctx, id, status, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
}
