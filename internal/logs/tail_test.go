package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vxextract/internal/logs"
)

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) emit(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vxextract-run.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	var c collector
	if err := logs.Tail(context.Background(), path, logs.TailOptions{Lines: 2}, c.emit); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	got := c.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected lines: %#v", got)
	}

	var all collector
	if err := logs.Tail(context.Background(), path, logs.TailOptions{Lines: 10}, all.emit); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(all.snapshot()) != 3 {
		t.Fatalf("expected all 3 lines, got %#v", all.snapshot())
	}
}

func TestTailFollowPicksUpAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vxextract-run.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var c collector
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.TailOptions{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, c.emit)
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(c.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Tail: %v", err)
	}
	got := c.snapshot()
	if len(got) != 2 || got[0] != "start" || got[1] != "later" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestResolveRunLog(t *testing.T) {
	dir := t.TempDir()
	if _, err := logs.ResolveRunLog(dir, ""); !errors.Is(err, logs.ErrNoRunLog) {
		t.Fatalf("expected ErrNoRunLog, got %v", err)
	}

	older := logs.RunLogPath(dir, "one")
	newer := logs.RunLogPath(dir, "two")
	for i, path := range []string{older, newer} {
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		ts := time.Now().Add(time.Duration(i-2) * time.Hour)
		if err := os.Chtimes(path, ts, ts); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other.log"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := logs.ResolveRunLog(dir, "")
	if err != nil || got != newer {
		t.Fatalf("expected latest %s, got %s err=%v", newer, got, err)
	}
	got, err = logs.ResolveRunLog(dir, "one")
	if err != nil || got != older {
		t.Fatalf("expected %s, got %s err=%v", older, got, err)
	}
	if _, err := logs.ResolveRunLog(dir, "missing"); !errors.Is(err, logs.ErrNoRunLog) {
		t.Fatalf("expected ErrNoRunLog, got %v", err)
	}
}
