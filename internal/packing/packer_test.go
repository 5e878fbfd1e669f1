package packing_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vxextract/internal/cart"
	"vxextract/internal/config"
	"vxextract/internal/corpus"
	"vxextract/internal/extraction"
	"vxextract/internal/logging"
	"vxextract/internal/packing"
	"vxextract/internal/services"
)

type stubExtractor struct {
	layout  corpus.Layout
	content []byte
	mtime   time.Time
	err     error
	calls   int
}

func (s *stubExtractor) Extract(_ context.Context, sample corpus.Sample) (extraction.Result, error) {
	s.calls++
	if s.err != nil {
		return extraction.Result{}, s.err
	}
	path := s.layout.ExtractedPath(sample)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return extraction.Result{}, err
	}
	if err := os.WriteFile(path, s.content, 0o644); err != nil {
		return extraction.Result{}, err
	}
	if err := os.Chtimes(path, s.mtime, s.mtime); err != nil {
		return extraction.Result{}, err
	}
	return extraction.Result{Sample: sample, Path: path}, nil
}

func newLayout(t *testing.T) corpus.Layout {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	if err := cfg.SetRoots(filepath.Join(base, "vx"), filepath.Join(base, "out")); err != nil {
		t.Fatalf("SetRoots: %v", err)
	}
	return corpus.NewLayout(&cfg)
}

func TestPackExtractsOnDemandAndEmbedsProvenance(t *testing.T) {
	layout := newLayout(t)
	mtime := time.Date(2019, 12, 31, 23, 59, 58, 0, time.Local)
	ex := &stubExtractor{layout: layout, content: []byte("MZ sample"), mtime: mtime}
	p := packing.New(layout, "VX-Underground", nil, ex, logging.NewNop())
	sample := corpus.Sample{Family: "Agent Tesla", Path: "2019/Q4/abc.exe"}

	res, err := p.Pack(context.Background(), sample)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !res.Extracted || res.Cached || ex.calls != 1 {
		t.Fatalf("unexpected result %+v calls=%d", res, ex.calls)
	}
	if res.Path != layout.PackedPath(sample) {
		t.Fatalf("unexpected path %q", res.Path)
	}

	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	info, _ := f.Stat()
	var payload bytes.Buffer
	meta, err := cart.Unpack(f, info.Size(), &payload)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if payload.String() != "MZ sample" {
		t.Fatalf("payload mismatch: %q", payload.String())
	}

	var header packing.Header
	if err := meta.DecodeHeader(&header); err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	want := packing.Header{
		Source:     "VX-Underground",
		Family:     "Agent Tesla",
		SamplePath: "2019/Q4/abc.exe",
		SourceURL:  "https://samples.vx-underground.org/Samples/Families/Agent Tesla/2019/Q4/abc.exe.7z",
		Date:       "2019-12-31T23:59:58",
	}
	if header != want {
		t.Fatalf("header mismatch:\n got %+v\nwant %+v", header, want)
	}
}

func TestPackIsCachedAndDeterministic(t *testing.T) {
	layout := newLayout(t)
	ex := &stubExtractor{layout: layout, content: []byte("abc"), mtime: time.Unix(1600000000, 0)}
	p := packing.New(layout, "VX-Underground", nil, ex, nil)
	sample := corpus.Sample{Family: "Mirai", Path: "m"}

	first, err := p.Pack(context.Background(), sample)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	firstBytes, _ := os.ReadFile(first.Path)

	second, err := p.Pack(context.Background(), sample)
	if err != nil {
		t.Fatalf("second Pack: %v", err)
	}
	if !second.Cached || ex.calls != 1 {
		t.Fatalf("expected cached second run, got %+v calls=%d", second, ex.calls)
	}

	if err := os.Remove(first.Path); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Pack(context.Background(), sample); err != nil {
		t.Fatalf("repack: %v", err)
	}
	again, _ := os.ReadFile(first.Path)
	if !bytes.Equal(firstBytes, again) {
		t.Fatal("repacking identical input produced different bytes")
	}
	if ex.calls != 1 {
		t.Fatalf("extracted file present, extractor should not run again: %d", ex.calls)
	}
}

func TestPackWithOverrideKey(t *testing.T) {
	layout := newLayout(t)
	key := []byte("0123456789abcdef")
	ex := &stubExtractor{layout: layout, content: []byte("k"), mtime: time.Now()}
	p := packing.New(layout, "VX-Underground", key, ex, nil)

	res, err := p.Pack(context.Background(), corpus.Sample{Family: "F", Path: "s"})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, err := cart.ReadFileMetadata(res.Path); !errors.Is(err, cart.ErrKeyRequired) {
		t.Fatalf("expected key to be required, got %v", err)
	}
	if _, err := cart.ReadFileMetadata(res.Path, cart.WithKey(key)); err != nil {
		t.Fatalf("ReadFileMetadata with key: %v", err)
	}
}

func TestPackPropagatesExtractionFailure(t *testing.T) {
	layout := newLayout(t)
	boom := services.Wrap(services.ErrExternalTool, "extract", "decrypt", "bad", errors.New("crc"))
	p := packing.New(layout, "VX-Underground", nil, &stubExtractor{layout: layout, err: boom}, nil)
	sample := corpus.Sample{Family: "F", Path: "s"}

	if _, err := p.Pack(context.Background(), sample); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if _, err := os.Stat(layout.PackedPath(sample)); !os.IsNotExist(err) {
		t.Fatal("failed pack left a container behind")
	}

	noExtractor := packing.New(layout, "VX-Underground", nil, nil, nil)
	if _, err := noExtractor.Pack(context.Background(), sample); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found without extractor, got %v", err)
	}
}

func TestFormatDate(t *testing.T) {
	whole := time.Date(2021, 1, 2, 3, 4, 5, 0, time.Local)
	if got := packing.FormatDate(whole); got != "2021-01-02T03:04:05" {
		t.Fatalf("got %q", got)
	}
	frac := time.Date(2021, 1, 2, 3, 4, 5, 123456789, time.Local)
	if got := packing.FormatDate(frac); got != "2021-01-02T03:04:05.123456" {
		t.Fatalf("got %q", got)
	}
}
