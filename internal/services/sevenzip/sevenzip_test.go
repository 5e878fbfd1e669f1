package sevenzip_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vxextract/internal/services"
	"vxextract/internal/services/sevenzip"
)

// testdata/deadbeef.7z is AES-256 encrypted (headers included) with the
// password "infected". It holds a "samples" directory and "samples/deadbeef".
const (
	fixturePassword = "infected"
	fixtureContent  = "MZ\x90\x00 vxextract fixture payload\n"
)

func fixturePath() string {
	return filepath.Join("testdata", "deadbeef.7z")
}

func TestClientOpenListsMembers(t *testing.T) {
	archive, err := sevenzip.New().Open(fixturePath(), fixturePassword)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	members := archive.Members()
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	dir, file := members[0], members[1]
	if !dir.IsDir || dir.Name != "samples/" {
		t.Fatalf("unexpected directory member: %+v", dir)
	}
	if file.IsDir || file.Name != "samples/deadbeef" {
		t.Fatalf("unexpected file member: %+v", file)
	}
	if file.Size != uint64(len(fixtureContent)) {
		t.Fatalf("unexpected size %d", file.Size)
	}
	want := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	if !file.Modified.Equal(want) {
		t.Fatalf("unexpected mtime %v, want %v", file.Modified, want)
	}
}

func TestClientMemberContent(t *testing.T) {
	archive, err := sevenzip.New().Open(fixturePath(), fixturePassword)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	rc, err := archive.Members()[1].Open()
	if err != nil {
		t.Fatalf("member Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(got) != fixtureContent {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestClientRejectsWrongPassword(t *testing.T) {
	_, err := sevenzip.New().Open(fixturePath(), "wrong")
	if err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if !errors.Is(err, sevenzip.ErrPassword) {
		t.Fatalf("expected ErrPassword, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestClientMissingArchive(t *testing.T) {
	_, err := sevenzip.New().Open(filepath.Join(t.TempDir(), "missing.7z"), fixturePassword)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker, got %v", err)
	}
}

func TestClientRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.7z")
	if err := os.WriteFile(path, []byte("not an archive"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := sevenzip.New().Open(path, fixturePassword)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if errors.Is(err, sevenzip.ErrPassword) {
		t.Fatalf("did not expect a password error, got %v", err)
	}
}
