package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vxextract/internal/cart"
	"vxextract/internal/config"
	"vxextract/internal/corpus"
	"vxextract/internal/ledger"
	"vxextract/internal/logging"
	"vxextract/internal/packing"
	"vxextract/internal/testsupport"
)

type cliTestEnv struct {
	cfg    *config.Config
	layout corpus.Layout
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.GhidraInstallEnv, "")
	t.Chdir(t.TempDir())

	cfg := testsupport.NewConfig(t, opts...)
	return &cliTestEnv{cfg: cfg, layout: corpus.NewLayout(cfg)}
}

// addSample writes a placeholder archive plus an already extracted payload so
// the pack stage never opens the archive.
func (e *cliTestEnv) addSample(t *testing.T, entry, payload string) corpus.Sample {
	t.Helper()
	sample := testsupport.WriteArchives(t, e.cfg, entry)[0]
	path := e.layout.ExtractedPath(sample)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	return sample
}

func (e *cliTestEnv) roots() []string {
	return []string{"--archive", e.cfg.Paths.ArchiveRoot, "--output", e.cfg.Paths.OutputRoot}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestFamiliesAndSamplesJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArchives(t, env.cfg, "Mirai/a", "Mirai/2020/b", "Bashlite/x")

	out, _, err := runCLI(t, append([]string{"families", "--json"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("families: %v", err)
	}
	var families []string
	if err := json.Unmarshal([]byte(out), &families); err != nil {
		t.Fatalf("decode families %q: %v", out, err)
	}
	if strings.Join(families, ",") != "Bashlite,Mirai" {
		t.Fatalf("unexpected families %v", families)
	}

	out, _, err = runCLI(t, append([]string{"samples", "Mirai", "--json"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	var samples []corpus.Sample
	if err := json.Unmarshal([]byte(out), &samples); err != nil {
		t.Fatalf("decode samples %q: %v", out, err)
	}
	if len(samples) != 2 || samples[0].String() != "Mirai/2020/b" || samples[1].String() != "Mirai/a" {
		t.Fatalf("unexpected samples %v", samples)
	}

	if _, _, err := runCLI(t, append([]string{"samples", "Nope"}, env.roots()...)...); err == nil {
		t.Fatal("expected unknown family to fail")
	}
}

func TestSubcommandsRequireRoots(t *testing.T) {
	setupCLITestEnv(t)
	_, _, err := runCLI(t, "families")
	if err == nil || !strings.Contains(err.Error(), "roots are required") {
		t.Fatalf("expected missing roots error, got %v", err)
	}
}

func TestRootRequiresGhidraBeforeAnyJob(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addSample(t, "Mirai/a", "payload")

	_, _, err := runCLI(t, env.cfg.Paths.ArchiveRoot, env.cfg.Paths.OutputRoot)
	if !errors.Is(err, config.ErrGhidraInstallMissing) {
		t.Fatalf("expected ErrGhidraInstallMissing, got %v", err)
	}
	if ok, _ := exists(env.cfg.LedgerPath()); ok {
		t.Fatal("ledger created although the run never started")
	}
	if ok, _ := exists(env.layout.FamilyPackedDir("Mirai")); ok {
		t.Fatal("containers written although the run never started")
	}
}

func TestRootSkipAnalysisPacksAndInspects(t *testing.T) {
	env := setupCLITestEnv(t)
	sample := env.addSample(t, "Mirai/2020/a.elf", "ELF payload")

	out, _, err := runCLI(t, "--skip-analysis", env.cfg.Paths.ArchiveRoot, env.cfg.Paths.OutputRoot)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pack") {
		t.Fatalf("expected report with pack row, got:\n%s", out)
	}

	packed := env.layout.PackedPath(sample)
	out, _, err = runCLI(t, "inspect", "--verify", "--json", packed)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var views []inspectView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode inspect %q: %v", out, err)
	}
	if len(views) != 1 || !views[0].Verified || views[0].Metadata.KeyKind != "default" {
		t.Fatalf("unexpected inspect output %+v", views)
	}
	var header packing.Header
	if err := views[0].Metadata.DecodeHeader(&header); err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if header.Family != "Mirai" || header.SamplePath != "2020/a.elf" || header.Source != "VX-Underground" {
		t.Fatalf("unexpected header %+v", header)
	}
	if header.SourceURL != env.cfg.Pack.SourceURLBase+"/Mirai/2020/a.elf.7z" {
		t.Fatalf("unexpected source url %q", header.SourceURL)
	}
	if views[0].Metadata.Footer.Length != "11" {
		t.Fatalf("unexpected footer length %q", views[0].Metadata.Footer.Length)
	}

	out, _, err = runCLI(t, "inspect", packed)
	if err != nil {
		t.Fatalf("inspect without verify: %v", err)
	}
	if !strings.Contains(out, "Mirai") || strings.Contains(out, "Verified") {
		t.Fatalf("unexpected inspect output:\n%s", out)
	}

	extracted := env.layout.ExtractedPath(sample)
	_, _, err = runCLI(t, "inspect", extracted)
	if !errors.Is(err, cart.ErrFormat) || !strings.Contains(err.Error(), "not a CaRT container") {
		t.Fatalf("expected non-container to be rejected, got %v", err)
	}
}

func TestRootRunsAnalysisThroughLauncher(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithGhidraInstall(`touch "$1/$2.gpr"
printf '%s' "$VX_FAMILY" > "$1/$2.family"
`))
	env.addSample(t, "Mirai/a", "one")
	env.addSample(t, "Bashlite/x", "two")

	out, _, err := runCLI(t, "--ghidra-install-directory", env.cfg.Analysis.GhidraInstallDir,
		env.cfg.Paths.ArchiveRoot, env.cfg.Paths.OutputRoot)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, family := range []string{"Mirai", "Bashlite"} {
		if ok, _ := exists(env.layout.ProjectMarker(family)); !ok {
			t.Fatalf("expected project marker for %s", family)
		}
		data, err := os.ReadFile(filepath.Join(env.layout.ProjectRoot(), family+".family"))
		if err != nil || string(data) != family {
			t.Fatalf("expected VX_FAMILY=%s, got %q err=%v", family, data, err)
		}
	}
	if ok, _ := exists(filepath.Join(env.cfg.ScriptDir(), "SetMetadata.java")); !ok {
		t.Fatal("expected pre-script to be installed")
	}

	out, _, err = runCLI(t, append([]string{"status", "--json"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if len(view.Families) != 2 {
		t.Fatalf("unexpected families %+v", view.Families)
	}
	for _, f := range view.Families {
		if f.Samples != 1 || f.Extracted != 1 || f.Packed != 1 || !f.Analyzed {
			t.Fatalf("unexpected family status %+v", f)
		}
	}
	if view.LastRun == nil || view.LastRun.Command != "run" || view.LastRun.Counts["analyze"]["completed"] != 2 {
		t.Fatalf("unexpected last run %+v", view.LastRun)
	}
}

func TestPackCommandSelectsSamples(t *testing.T) {
	env := setupCLITestEnv(t)
	wanted := env.addSample(t, "Mirai/a", "one")
	other := env.addSample(t, "Mirai/b", "two")

	if _, _, err := runCLI(t, append([]string{"pack", "--sample", "Mirai/a"}, env.roots()...)...); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if ok, _ := exists(env.layout.PackedPath(wanted)); !ok {
		t.Fatal("expected selected sample to be packed")
	}
	if ok, _ := exists(env.layout.PackedPath(other)); ok {
		t.Fatal("unselected sample was packed")
	}

	if _, _, err := runCLI(t, append([]string{"pack", "--sample", "Mirai"}, env.roots()...)...); err == nil {
		t.Fatal("expected malformed --sample to fail")
	}
}

func TestStatusWithoutLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArchives(t, env.cfg, "Mirai/a")

	out, _, err := runCLI(t, append([]string{"status"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Mirai") || !strings.Contains(out, "No runs recorded") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
	if ok, _ := exists(env.cfg.LedgerPath()); ok {
		t.Fatal("status must not create the ledger")
	}
}

func TestStatusListsFailedJobsOfLastRun(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteArchives(t, env.cfg, "Mirai/a", "Mirai/b")
	store := testsupport.MustOpenLedger(t, env.cfg)
	testsupport.NewRun(t, store, "older",
		ledger.Job{Stage: "pack", Family: "Mirai", Sample: "a", Outcome: ledger.OutcomeFailed, ErrorMessage: "stale failure"},
	)
	testsupport.NewRun(t, store, "latest",
		ledger.Job{Stage: "pack", Family: "Mirai", Sample: "a", Outcome: ledger.OutcomeCompleted},
		ledger.Job{Stage: "pack", Family: "Mirai", Sample: "b", Outcome: ledger.OutcomeFailed, ErrorKind: "external_tool", ErrorMessage: "decrypt member"},
	)
	store.Close()

	out, _, err := runCLI(t, append([]string{"status", "--json"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if view.LastRun == nil || view.LastRun.ID != "latest" {
		t.Fatalf("unexpected last run %+v", view.LastRun)
	}
	if len(view.LastRun.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", view.LastRun.Failures)
	}
	if f := view.LastRun.Failures[0]; f.Sample != "b" || f.Kind != "external_tool" || f.Error != "decrypt member" {
		t.Fatalf("unexpected failure %+v", f)
	}

	out, _, err = runCLI(t, append([]string{"status"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Failed jobs:") || !strings.Contains(out, "pack Mirai/b: decrypt member") {
		t.Fatalf("expected failed job in output:\n%s", out)
	}
	if strings.Contains(out, "stale failure") {
		t.Fatalf("older run leaked into status:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "vxextract.toml")

	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target in output, got %q", out)
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected existing file to be refused")
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	out, _, err = runCLI(t, "config", "validate", "-c", target)
	if err != nil || !strings.Contains(out, "Configuration valid") {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func TestLogsCommandPrintsRunLog(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, append([]string{"logs"}, env.roots()...)...); err == nil {
		t.Fatal("expected missing run log error")
	}

	path := filepath.Join(env.cfg.LogDir(), "vxextract-abc.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, append([]string{"logs", "abc", "-n", "2"}, env.roots()...)...)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}

func TestCleanStaleTempsLogsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.layout.ExtractedRoot(), "Mirai", ".abc.42.tmp")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cleanStaleTemps(ctx, env.layout, logger)
	if !strings.Contains(buf.String(), "staging_cleanup_failed") {
		t.Fatalf("expected cleanup failure to be logged, got %q", buf.String())
	}
	if ok, _ := exists(stale); !ok {
		t.Fatal("cancelled cleanup removed a file")
	}

	buf.Reset()
	cleanStaleTemps(context.Background(), env.layout, logger)
	if ok, _ := exists(stale); ok {
		t.Fatal("expected stale temp file to be removed")
	}
	if strings.Contains(buf.String(), "staging_cleanup_failed") {
		t.Fatalf("unexpected failure log: %q", buf.String())
	}
}

func TestWriteJSONKeepsURLsVerbatim(t *testing.T) {
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	url := "https://example.test/Families/A&B/<x>.7z"
	if err := writeJSON(cmd, map[string]string{"source_url": url}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(buf.String(), url) {
		t.Fatalf("expected verbatim url, got %s", buf.String())
	}
}
