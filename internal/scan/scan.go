package scan

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// FileVisit carries per-entry metadata to callbacks.
type FileVisit struct {
	// Repo-relative path using forward slashes (e.g., "src/app.ts").
	Path string
	// Absolute filesystem path.
	AbsPath string
	IsDir   bool
	// Lowercased extension (e.g., ".ts"); empty for dirs or no-ext files.
	Ext     string
	Size    int64
	ModTime time.Time
	// Number of parent directories below the root.
	Depth int
}

// VisitFunc is invoked for every visited entry.
type VisitFunc func(f FileVisit)

type Options struct {
	// IgnoreDirs are directory base names skipped in addition to the defaults.
	IgnoreDirs []string
	// MaxDepth limits entries to Depth < MaxDepth. 0 means unlimited.
	MaxDepth int
	// IncludeBinary keeps images, archives and other binary files.
	IncludeBinary bool
	// ManifestDepth is the deepest Depth at which manifests are read.
	ManifestDepth int
	// ManifestLimit and ReadmeLimit cap the bytes read per file.
	ManifestLimit int64
	ReadmeLimit   int64
}

const (
	defaultMaxDepth      = 8
	defaultManifestDepth = 1
	defaultManifestLimit = 64 << 10
	defaultReadmeLimit   = 16 << 10
)

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		MaxDepth:      defaultMaxDepth,
		ManifestDepth: defaultManifestDepth,
		ManifestLimit: defaultManifestLimit,
		ReadmeLimit:   defaultReadmeLimit,
	}
}

var defaultIgnoreDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "bower_components", "vendor",
	"target", "dist", ".next", ".nuxt", ".output", ".cache",
	"__pycache__", ".venv", "venv", ".tox", ".mypy_cache",
	".gradle", ".idea", ".vscode",
}

func (o Options) ignored() map[string]bool {
	m := make(map[string]bool, len(defaultIgnoreDirs)+len(o.IgnoreDirs))
	for _, d := range defaultIgnoreDirs {
		m[d] = true
	}
	for _, d := range o.IgnoreDirs {
		if d = strings.TrimSpace(d); d != "" {
			m[d] = true
		}
	}
	return m
}

// Walk visits every entry under root in lexical order, skipping VCS and
// dependency directories. Unreadable entries are skipped, not fatal.
func Walk(root string, opts Options, cb VisitFunc) error {
	skip := opts.ignored()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/")

		if d.IsDir() {
			if skip[d.Name()] {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
				return filepath.SkipDir
			}
		} else {
			if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
				return nil
			}
			if !opts.IncludeBinary && isBinary(rel) {
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
		}

		fv := FileVisit{Path: rel, AbsPath: path, IsDir: d.IsDir(), Depth: depth}
		if info, e := d.Info(); e == nil {
			fv.ModTime = info.ModTime()
			if !d.IsDir() {
				fv.Size = info.Size()
			}
		}
		if !d.IsDir() {
			fv.Ext = strings.ToLower(filepath.Ext(rel))
		}
		cb(fv)
		return nil
	})
}

func isBinary(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	// images
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".bmp", ".tiff":
		return true
	// video
	case ".mp4", ".m4v", ".mov", ".mkv", ".webm", ".avi":
		return true
	// audio
	case ".mp3", ".wav", ".ogg", ".flac", ".m4a":
		return true
	// archives / others
	case ".pdf", ".zip", ".jar", ".war", ".gz", ".tgz", ".bz2", ".7z", ".exe", ".dll", ".dylib", ".so", ".woff", ".woff2", ".class", ".pyc":
		return true
	}
	return false
}
