// Package scan discovers image files under a directory tree for batch timestamp resolution.
package scan

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options controls which files a scan reports. MaxDepth -1 means unlimited; 0 keeps only files
// directly under the root.
type Options struct {
	MaxDepth int

	ImageExtensions []string
}

func DefaultOptions() Options {
	return Options{
		MaxDepth: -1,
		ImageExtensions: []string{
			".png", ".jpg", ".jpeg", ".webp", ".gif", ".heic", ".tif", ".tiff",
		},
	}
}

type Record struct {
	Path          string    `json:"path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
}

// IsImage reports whether name carries one of the configured image extensions.
func (o Options) IsImage(name string) bool {
	return newExtSet(o.ImageExtensions).has(name)
}

// ScanRecords lists image files under root, sorted by slash-separated relative path.
func ScanRecords(fsys fs.FS, root string, opts Options) ([]Record, error) {
	if opts.MaxDepth < -1 {
		return nil, fmt.Errorf("max depth %d: %w", opts.MaxDepth, fs.ErrInvalid)
	}

	w := &walker{
		root:     root,
		maxDepth: opts.MaxDepth,
		images:   newExtSet(opts.ImageExtensions),
	}
	if err := fs.WalkDir(fsys, root, w.visit); err != nil {
		return nil, err
	}

	slices.SortFunc(w.found, func(a, b Record) int {
		return strings.Compare(a.Path, b.Path)
	})
	return w.found, nil
}

type walker struct {
	root     string
	maxDepth int
	images   extSet
	found    []Record
}

func (w *walker) visit(p string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return nil
	}

	// Files inside a directory sit one level deeper than the directory itself.
	level := strings.Count(path.Clean(rel), "/")
	limited := w.maxDepth >= 0
	if d.IsDir() {
		if limited && level >= w.maxDepth {
			return fs.SkipDir
		}
		return nil
	}
	if (limited && level > w.maxDepth) || !w.images.has(rel) {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}
	w.found = append(w.found, Record{
		Path:          rel,
		FileSizeBytes: info.Size(),
		ModTime:       info.ModTime(),
	})
	return nil
}

// extSet holds lowercased extensions with their leading dot.
type extSet map[string]struct{}

func newExtSet(exts []string) extSet {
	set := make(extSet, len(exts))
	for _, ext := range exts {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if e[0] != '.' {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

func (s extSet) has(name string) bool {
	_, ok := s[strings.ToLower(filepath.Ext(name))]
	return ok
}
