package packing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"vxextract/internal/cart"
	"vxextract/internal/corpus"
	"vxextract/internal/extraction"
	"vxextract/internal/fileutil"
	"vxextract/internal/logging"
	"vxextract/internal/services"
)

const stageName = "pack"

// containerMode is applied to written containers.
const containerMode = 0o644

// Header is the provenance record embedded in every container. Field order is
// the serialized order.
type Header struct {
	Source     string `json:"source"`
	Family     string `json:"family"`
	SamplePath string `json:"sample_path"`
	SourceURL  string `json:"source_url"`
	Date       string `json:"date"`
}

// Extractor produces extracted samples on demand.
type Extractor interface {
	Extract(ctx context.Context, sample corpus.Sample) (extraction.Result, error)
}

// Result reports the outcome of one pack job.
type Result struct {
	Sample    corpus.Sample
	Path      string
	Cached    bool
	Extracted bool
	Footer    cart.Footer
}

// Packer writes containers for extracted samples.
type Packer struct {
	layout    corpus.Layout
	source    string
	key       []byte
	extractor Extractor
	logger    *slog.Logger
}

// New constructs a packer. source is the provenance source label; key
// overrides the container key when non-nil.
func New(layout corpus.Layout, source string, key []byte, extractor Extractor, logger *slog.Logger) *Packer {
	return &Packer{
		layout:    layout,
		source:    source,
		key:       key,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "packing"),
	}
}

// Pack writes the container for sample unless it already exists, extracting
// the sample first when needed.
func (p *Packer) Pack(ctx context.Context, sample corpus.Sample) (Result, error) {
	if err := sample.Validate(); err != nil {
		return Result{}, err
	}
	ctx = services.WithStage(services.WithSample(services.WithFamily(ctx, sample.Family), sample.Path), stageName)
	logger := logging.WithContext(ctx, p.logger)

	dest := p.layout.PackedPath(sample)
	result := Result{Sample: sample, Path: dest}

	exists, err := fileutil.Exists(dest)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stat destination", dest, err)
	}
	if exists {
		logger.Debug("container already present", logging.String("path", dest))
		result.Cached = true
		return result, nil
	}

	src := p.layout.ExtractedPath(sample)
	present, err := fileutil.Exists(src)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stat extracted sample", src, err)
	}
	if !present {
		if p.extractor == nil {
			return Result{}, services.Wrap(services.ErrNotFound, stageName, "locate extracted sample", src, nil)
		}
		if _, err := p.extractor.Extract(ctx, sample); err != nil {
			return Result{}, err
		}
		result.Extracted = true
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	in, err := os.Open(src)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "open extracted sample", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stat extracted sample", src, err)
	}

	header := p.BuildHeader(sample, info.ModTime())
	var opts []cart.Option
	if p.key != nil {
		opts = append(opts, cart.WithKey(p.key))
	}

	err = fileutil.WriteAtomic(dest, containerMode, time.Time{}, func(w io.Writer) error {
		footer, err := cart.Pack(in, w, header, opts...)
		result.Footer = footer
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("pack %s: %w", sample, err)
	}

	logger.Info("packed sample",
		logging.String("path", dest),
		logging.String("length", result.Footer.Length),
		logging.String("sha256", result.Footer.SHA256),
	)
	return result, nil
}

// BuildHeader assembles the provenance record for sample whose extracted file
// was last modified at mtime.
func (p *Packer) BuildHeader(sample corpus.Sample, mtime time.Time) Header {
	return Header{
		Source:     p.source,
		Family:     sample.Family,
		SamplePath: sample.Path,
		SourceURL:  p.layout.SourceURL(sample),
		Date:       FormatDate(mtime),
	}
}

// FormatDate renders t in local time as an ISO-8601 timestamp without a zone,
// adding microseconds only when they are non-zero.
func FormatDate(t time.Time) string {
	t = t.Local()
	base := t.Format("2006-01-02T15:04:05")
	if micro := t.Nanosecond() / 1000; micro != 0 {
		return fmt.Sprintf("%s.%06d", base, micro)
	}
	return base
}
