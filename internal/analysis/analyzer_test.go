package analysis_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vxextract/internal/analysis"
	"vxextract/internal/config"
	"vxextract/internal/corpus"
	"vxextract/internal/logging"
	"vxextract/internal/services"
	"vxextract/internal/services/ghidra"
)

type stubRunner struct {
	requests    []ghidra.Request
	err         error
	writeMarker bool
	layout      corpus.Layout
}

func (s *stubRunner) AnalyzeHeadless(_ context.Context, req ghidra.Request, onOutput func(string)) error {
	s.requests = append(s.requests, req)
	onOutput("INFO  REPORT: Import succeeded")
	if s.err != nil {
		return s.err
	}
	if s.writeMarker {
		return os.WriteFile(s.layout.ProjectMarker(req.ProjectName), []byte("gpr"), 0o644)
	}
	return nil
}

func fixture(t *testing.T) (*config.Config, corpus.Layout) {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	if err := cfg.SetRoots(filepath.Join(base, "vx"), filepath.Join(base, "out")); err != nil {
		t.Fatalf("SetRoots: %v", err)
	}
	return &cfg, corpus.NewLayout(&cfg)
}

func settings(cfg *config.Config) analysis.Settings {
	return analysis.Settings{
		RecursionDepth: cfg.Analysis.RecursionDepth,
		CommitMessage:  cfg.Analysis.CommitMessage,
		ScriptDir:      cfg.ScriptDir(),
		Source:         cfg.Pack.Source,
		PassSourceURL:  true,
	}
}

func writeContainer(t *testing.T, layout corpus.Layout, s corpus.Sample) {
	t.Helper()
	path := layout.PackedPath(s)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("CART"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeRunsHeadlessOncePerFamily(t *testing.T) {
	cfg, layout := fixture(t)
	writeContainer(t, layout, corpus.Sample{Family: "Mirai", Path: "a"})
	writeContainer(t, layout, corpus.Sample{Family: "Mirai", Path: "2020/b"})
	runner := &stubRunner{writeMarker: true, layout: layout}
	a := analysis.New(layout, settings(cfg), runner, logging.NewNop())

	res, err := a.Analyze(context.Background(), "Mirai")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Cached || res.Skipped || res.Imports != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(runner.requests) != 1 {
		t.Fatalf("expected one launch, got %d", len(runner.requests))
	}
	req := runner.requests[0]
	if req.ProjectDir != layout.ProjectRoot() || req.ProjectName != "Mirai" || req.ImportPath != layout.FamilyPackedDir("Mirai") {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.RecursionDepth != 5 || req.CommitMessage != "Auto analysis" || req.PreScript != ghidra.PreScriptName {
		t.Fatalf("unexpected options %+v", req)
	}
	if req.Env[ghidra.EnvFamily] != "Mirai" || req.Env[ghidra.EnvSource] != "VX-Underground" {
		t.Fatalf("unexpected env %v", req.Env)
	}
	if req.Env[ghidra.EnvURL] != "https://samples.vx-underground.org/Samples/Families/Mirai" {
		t.Fatalf("unexpected url %q", req.Env[ghidra.EnvURL])
	}
	if _, err := os.Stat(filepath.Join(cfg.ScriptDir(), ghidra.PreScriptName)); err != nil {
		t.Fatalf("pre-script not installed: %v", err)
	}

	again, err := a.Analyze(context.Background(), "Mirai")
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !again.Cached || len(runner.requests) != 1 {
		t.Fatalf("expected cached second run, got %+v launches=%d", again, len(runner.requests))
	}
}

func TestAnalyzeSkipsEmptyFamily(t *testing.T) {
	cfg, layout := fixture(t)
	runner := &stubRunner{}
	a := analysis.New(layout, settings(cfg), runner, nil)

	res, err := a.Analyze(context.Background(), "Missing")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected skip for missing dir, got %+v", res)
	}

	if err := os.MkdirAll(layout.FamilyPackedDir("Empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	res, err = a.Analyze(context.Background(), "Empty")
	if err != nil || !res.Skipped {
		t.Fatalf("expected skip for empty dir, got %+v err=%v", res, err)
	}
	if len(runner.requests) != 0 {
		t.Fatal("runner launched for a family with no containers")
	}
}

func TestAnalyzePropagatesFailure(t *testing.T) {
	cfg, layout := fixture(t)
	writeContainer(t, layout, corpus.Sample{Family: "F", Path: "x"})
	boom := services.Wrap(services.ErrExternalTool, "analyze", "analyzeHeadless", "exit status 1", errors.New("exit"))
	a := analysis.New(layout, settings(cfg), &stubRunner{err: boom}, nil)

	if _, err := a.Analyze(context.Background(), "F"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := os.Stat(layout.ProjectMarker("F")); !os.IsNotExist(err) {
		t.Fatal("failed analysis should not leave a marker")
	}
}

func TestAnalyzeWithoutSourceURL(t *testing.T) {
	cfg, layout := fixture(t)
	writeContainer(t, layout, corpus.Sample{Family: "F", Path: "x"})
	runner := &stubRunner{}
	s := settings(cfg)
	s.PassSourceURL = false
	a := analysis.New(layout, s, runner, nil)

	if _, err := a.Analyze(context.Background(), "F"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, ok := runner.requests[0].Env[ghidra.EnvURL]; ok {
		t.Fatal("VX_URL exported although disabled")
	}
}

func TestAnalyzeRejectsBadFamily(t *testing.T) {
	cfg, layout := fixture(t)
	a := analysis.New(layout, settings(cfg), &stubRunner{}, nil)
	if _, err := a.Analyze(context.Background(), "../etc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
