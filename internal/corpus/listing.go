package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vxextract/internal/services"
)

// Families returns the names of the direct subdirectories of the Families
// directory, sorted.
func (l Layout) Families() ([]string, error) {
	root := l.FamiliesRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "corpus", "list families", root, err)
		}
		return nil, fmt.Errorf("list families: %w", err)
	}
	families := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		families = append(families, entry.Name())
	}
	slices.Sort(families)
	return families, nil
}

// Samples returns every archive below the family directory as a slash path
// relative to it, with the archive extension stripped, sorted.
func (l Layout) Samples(family string) ([]Sample, error) {
	if err := ValidateFamily(family); err != nil {
		return nil, err
	}
	dir := l.FamilyDir(family)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "corpus", "list samples", "unknown family "+family, err)
		}
		return nil, fmt.Errorf("list samples: %w", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrNotFound, "corpus", "list samples", dir+" is not a directory", nil)
	}

	var samples []Sample
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), l.ArchiveExt) || d.Name() == l.ArchiveExt {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(strings.TrimSuffix(rel, l.ArchiveExt))
		samples = append(samples, Sample{Family: family, Path: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.SortFunc(samples, func(a, b Sample) int { return strings.Compare(a.Path, b.Path) })
	return samples, nil
}

// AllSamples lists the samples of every family in families, or of the whole
// corpus when families is empty.
func (l Layout) AllSamples(families ...string) ([]Sample, error) {
	selected, err := l.SelectFamilies(families)
	if err != nil {
		return nil, err
	}
	var all []Sample
	for _, family := range selected {
		samples, err := l.Samples(family)
		if err != nil {
			return nil, err
		}
		all = append(all, samples...)
	}
	return all, nil
}

// SelectFamilies returns filter sorted and de-duplicated after checking that
// each named family exists. An empty filter selects every family.
func (l Layout) SelectFamilies(filter []string) ([]string, error) {
	if len(filter) == 0 {
		return l.Families()
	}
	selected := make([]string, 0, len(filter))
	for _, family := range filter {
		if err := ValidateFamily(family); err != nil {
			return nil, err
		}
		info, err := os.Stat(l.FamilyDir(family))
		if err != nil || !info.IsDir() {
			return nil, services.Wrap(services.ErrNotFound, "corpus", "select families", "unknown family "+family, err)
		}
		selected = append(selected, family)
	}
	slices.Sort(selected)
	return slices.Compact(selected), nil
}
