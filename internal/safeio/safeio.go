package safeio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside the checkout.
var ErrOutsideRoot = errors.New("safeio: path resolves outside root")

// Root reads files of one checkout. Paths are repo-relative and symlinks
// that escape the checkout are rejected.
type Root struct {
	abs string // absolute, symlink-free
}

// Open binds a Root to dir.
func Open(dir string) (*Root, error) {
	if dir == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is not a directory", dir)
	}
	return &Root{abs: abs}, nil
}

func (r *Root) Path() string {
	if r == nil {
		return ""
	}
	return r.abs
}

// Stat returns metadata for a file or directory under the root.
func (r *Root) Stat(rel string) (fs.FileInfo, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// ReadFile reads at most limit bytes of rel. limit <= 0 reads everything.
// The second result reports truncation.
func (r *Root) ReadFile(rel string, limit int64) ([]byte, bool, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, false, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("safeio: %s is a directory", rel)
	}
	if limit <= 0 {
		b, err := io.ReadAll(f)
		return b, false, err
	}
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(b)) > limit {
		return b[:limit], true, nil
	}
	return b, false, nil
}

func (r *Root) resolve(rel string) (string, error) {
	if r == nil {
		return "", errors.New("safeio: root not configured")
	}
	if rel == "" {
		return "", errors.New("safeio: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." {
		return r.abs, nil
	}
	var joined string
	if filepath.IsAbs(clean) {
		joined = clean
	} else {
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
		}
		joined = filepath.Join(r.abs, clean)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, r.abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return resolved, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path+sep, root)
}
