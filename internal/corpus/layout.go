package corpus

import (
	"path"
	"path/filepath"
	"strings"

	"vxextract/internal/config"
)

const (
	familiesDir  = "Families"
	extractedDir = "extracted"
	cartsDir     = "carts"
	projectExt   = ".gpr"
)

// Sample identifies one archive entry by family and family-relative path.
// Path uses forward slashes and carries no archive extension.
type Sample struct {
	Family string `json:"family"`
	Path   string `json:"sample"`
}

// String renders the sample as family/path.
func (s Sample) String() string {
	return s.Family + "/" + s.Path
}

// Layout maps samples onto archive and output paths.
type Layout struct {
	ArchiveRoot   string
	OutputRoot    string
	ArchiveExt    string
	PackExt       string
	ProjectDir    string
	SourceURLBase string
}

// NewLayout derives a layout from configuration.
func NewLayout(cfg *config.Config) Layout {
	return Layout{
		ArchiveRoot:   cfg.Paths.ArchiveRoot,
		OutputRoot:    cfg.Paths.OutputRoot,
		ArchiveExt:    cfg.Archive.Extension,
		PackExt:       cfg.Pack.Extension,
		ProjectDir:    cfg.Analysis.ProjectDir,
		SourceURLBase: cfg.Pack.SourceURLBase,
	}
}

// FamiliesRoot returns <archive>/Families.
func (l Layout) FamiliesRoot() string {
	return filepath.Join(l.ArchiveRoot, familiesDir)
}

// FamilyDir returns the archive directory of a family.
func (l Layout) FamilyDir(family string) string {
	return filepath.Join(l.FamiliesRoot(), family)
}

// ArchivePath returns <archive>/Families/<family>/<sample><archive-ext>.
func (l Layout) ArchivePath(s Sample) string {
	return filepath.Join(l.FamilyDir(s.Family), filepath.FromSlash(s.Path)+l.ArchiveExt)
}

// ExtractedRoot returns <out>/extracted.
func (l Layout) ExtractedRoot() string {
	return filepath.Join(l.OutputRoot, extractedDir)
}

// PackedRoot returns <out>/carts.
func (l Layout) PackedRoot() string {
	return filepath.Join(l.OutputRoot, cartsDir)
}

// ExtractedPath returns <out>/extracted/<family>/<sample>.
func (l Layout) ExtractedPath(s Sample) string {
	return filepath.Join(l.ExtractedRoot(), s.Family, filepath.FromSlash(s.Path))
}

// FamilyPackedDir returns <out>/carts/<family>.
func (l Layout) FamilyPackedDir(family string) string {
	return filepath.Join(l.PackedRoot(), family)
}

// PackedPath returns <out>/carts/<family>/<sample><pack-ext>.
func (l Layout) PackedPath(s Sample) string {
	return filepath.Join(l.FamilyPackedDir(s.Family), filepath.FromSlash(s.Path)+l.PackExt)
}

// ProjectRoot returns the directory holding every family's analysis project.
func (l Layout) ProjectRoot() string {
	return filepath.Join(l.OutputRoot, l.ProjectDir)
}

// ProjectMarker returns <out>/<project-dir>/<family>.gpr, whose existence marks
// a family as analyzed.
func (l Layout) ProjectMarker(family string) string {
	return filepath.Join(l.ProjectRoot(), family+projectExt)
}

// SourceURL reconstructs the public download URL of a sample archive.
func (l Layout) SourceURL(s Sample) string {
	return SourceURL(l.SourceURLBase, s.Family, s.Path, l.ArchiveExt)
}

// FamilyURL returns the public listing URL of a family.
func (l Layout) FamilyURL(family string) string {
	return l.SourceURLBase + "/" + family
}

// SourceURL joins base, family, sample, and the archive extension by plain
// concatenation. No escaping is applied.
func SourceURL(base, family, sample, archiveExt string) string {
	return base + "/" + family + "/" + sample + archiveExt
}

// ValidateFamily rejects names that are empty or would leave the Families directory.
func ValidateFamily(family string) error {
	switch {
	case strings.TrimSpace(family) == "":
		return invalid("family", family, "must not be empty")
	case family == "." || family == "..":
		return invalid("family", family, "must name a directory")
	case strings.ContainsAny(family, `/\`):
		return invalid("family", family, "must not contain path separators")
	}
	return nil
}

// ValidateSample rejects sample paths that are empty, absolute, not in clean
// slash form, or that escape the family directory.
func ValidateSample(sample string) error {
	switch {
	case strings.TrimSpace(sample) == "":
		return invalid("sample", sample, "must not be empty")
	case path.IsAbs(sample) || filepath.IsAbs(sample):
		return invalid("sample", sample, "must be relative to the family directory")
	case strings.Contains(sample, `\`):
		return invalid("sample", sample, "must use forward slashes")
	case path.Clean(sample) != sample:
		return invalid("sample", sample, "must be a clean path")
	case sample == ".." || strings.HasPrefix(sample, "../"):
		return invalid("sample", sample, "must not escape the family directory")
	}
	return nil
}

// Validate checks both halves of a sample identifier.
func (s Sample) Validate() error {
	if err := ValidateFamily(s.Family); err != nil {
		return err
	}
	return ValidateSample(s.Path)
}
