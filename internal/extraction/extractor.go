package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"vxextract/internal/corpus"
	"vxextract/internal/fileutil"
	"vxextract/internal/logging"
	"vxextract/internal/services"
	"vxextract/internal/services/sevenzip"
)

// FileMode is applied to every extracted sample. It never carries execute bits.
const FileMode = 0o644

const stageName = "extract"

// Result reports the outcome of one extraction.
type Result struct {
	Sample corpus.Sample
	Path   string
	Cached bool
	Bytes  int64
	SHA256 string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithOpener injects a custom archive opener (primarily for tests).
func WithOpener(opener sevenzip.Opener) Option {
	return func(e *Extractor) {
		if opener != nil {
			e.opener = opener
		}
	}
}

// Extractor turns archives into extracted samples.
type Extractor struct {
	layout   corpus.Layout
	password string
	opener   sevenzip.Opener
	logger   *slog.Logger
}

// New constructs an extractor for layout using password for every archive.
func New(layout corpus.Layout, password string, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		layout:   layout,
		password: password,
		opener:   sevenzip.New(),
		logger:   logging.NewComponentLogger(logger, "extraction"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes the sample's archive member to its extracted path unless it
// is already there.
func (e *Extractor) Extract(ctx context.Context, sample corpus.Sample) (Result, error) {
	if err := sample.Validate(); err != nil {
		return Result{}, err
	}
	ctx = services.WithStage(services.WithSample(services.WithFamily(ctx, sample.Family), sample.Path), stageName)
	logger := logging.WithContext(ctx, e.logger)

	dest := e.layout.ExtractedPath(sample)
	result := Result{Sample: sample, Path: dest}

	exists, err := fileutil.Exists(dest)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "stat destination", dest, err)
	}
	if exists {
		logger.Debug("extracted sample already present", logging.String("path", dest))
		result.Cached = true
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	archivePath := e.layout.ArchivePath(sample)
	archive, err := e.opener.Open(archivePath, e.password)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", sample, err)
	}
	defer archive.Close()

	member, err := selectMember(archive.Members(), sample.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, stageName, "locate member", archivePath, err)
	}

	hasher := sha256.New()
	var written int64
	err = fileutil.WriteAtomic(dest, FileMode, member.Modified, func(w io.Writer) error {
		rc, err := member.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		n, err := io.Copy(io.MultiWriter(w, hasher), contextReader{ctx: ctx, r: rc})
		written = n
		if err != nil {
			return services.Wrap(services.ErrExternalTool, stageName, "decrypt member", member.Name, err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", sample, err)
	}

	result.Bytes = written
	result.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	logger.Info("extracted sample",
		logging.String("path", dest),
		logging.Int64("bytes", written),
		logging.String("sha256", result.SHA256),
	)
	return result, nil
}

// selectMember picks the file whose base name matches the sample's base name.
// An archive with a single file is accepted whatever that file is called.
func selectMember(members []sevenzip.Member, samplePath string) (sevenzip.Member, error) {
	want := path.Base(samplePath)
	var files []sevenzip.Member
	for _, m := range members {
		if m.IsDir {
			continue
		}
		files = append(files, m)
		if path.Base(strings.ReplaceAll(m.Name, `\`, "/")) == want {
			return m, nil
		}
	}
	if len(files) == 1 {
		return files[0], nil
	}
	return sevenzip.Member{}, fmt.Errorf("no member named %q among %d files", want, len(files))
}

// contextReader stops a long copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
