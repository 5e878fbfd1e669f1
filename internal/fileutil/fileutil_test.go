package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "out.bin")
	mtime := time.Date(2021, 3, 4, 5, 6, 7, 0, time.Local)

	err := WriteAtomic(dst, 0o644, mtime, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %o", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("unexpected mtime %v, want %v", info.ModTime(), mtime)
	}
}

func TestWriteAtomicFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	boom := errors.New("boom")

	err := WriteAtomic(dst, 0o644, time.Time{}, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(filepath.Join(dir, "missing"))
	if err != nil || ok {
		t.Fatalf("expected missing, got ok=%v err=%v", ok, err)
	}
	ok, err = Exists(dir)
	if err != nil || !ok {
		t.Fatalf("expected present, got ok=%v err=%v", ok, err)
	}
}
