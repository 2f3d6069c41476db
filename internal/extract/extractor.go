package extract

import (
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"framelabel/internal/signal"
	"framelabel/internal/types"
)

// Extractor maps repository structure to framework signals using rules.
// It is read-only after construction and safe for concurrent use.
type Extractor struct {
	rules []Rule
}

// New builds an extractor from rules. Rules are validated; with none given
// the built-in pack is used.
func New(rules ...Rule) (*Extractor, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	out := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		r.compile()
		out[i] = r
	}
	return &Extractor{rules: out}, nil
}

// Default is New with the built-in pack.
func Default() *Extractor {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Extractor) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Frameworks lists the framework identifiers the rules can emit.
func (e *Extractor) Frameworks() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range e.rules {
		if !seen[r.Framework] {
			seen[r.Framework] = true
			out = append(out, r.Framework)
		}
	}
	sort.Strings(out)
	return out
}

// Extract evaluates every rule against the snapshot. Manifests that fail to
// parse are logged and skipped.
func (e *Extractor) Extract(snap *types.Snapshot) signal.Set {
	set := signal.Set{}
	if snap == nil {
		return set
	}
	idx := newIndex(snap)
	for i := range e.rules {
		if sig, ok := e.rules[i].apply(idx); ok {
			set.Add(sig)
		}
	}
	return set
}

// Dependencies parses every manifest of the snapshot.
func Dependencies(snap *types.Snapshot) []Dependency {
	return newIndex(snap).deps
}

type index struct {
	snap   *types.Snapshot
	files  []types.FileNode // shallowest first
	dirs   []types.FileNode
	times  map[string]time.Time
	deps   []Dependency
	byName map[string]Dependency
}

func newIndex(snap *types.Snapshot) *index {
	idx := &index{snap: snap, times: map[string]time.Time{}, byName: map[string]Dependency{}}
	for _, n := range snap.Tree {
		if n.IsDir() {
			idx.dirs = append(idx.dirs, n)
		} else {
			idx.files = append(idx.files, n)
		}
		if n.HasTime() {
			idx.times[n.Path] = n.ModTime
		}
	}
	byDepth := func(ns []types.FileNode) {
		sort.SliceStable(ns, func(i, j int) bool {
			di, dj := ns[i].Depth(), ns[j].Depth()
			if di != dj {
				return di < dj
			}
			return ns[i].Path < ns[j].Path
		})
	}
	byDepth(idx.files)
	byDepth(idx.dirs)
	// Directories implied by file paths count even when the source omits them.
	if len(idx.dirs) == 0 {
		idx.dirs = impliedDirs(idx.files)
	}

	names := make([]string, 0, len(snap.Manifests))
	for name := range snap.Manifests {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.Count(names[i], "/") < strings.Count(names[j], "/") ||
			(strings.Count(names[i], "/") == strings.Count(names[j], "/") && names[i] < names[j])
	})
	for _, name := range names {
		deps, err := ParseManifest(name, snap.Manifests[name])
		if err != nil {
			log.Printf("extract: %s: %v", snap.Metadata.RepositoryURL, err)
			continue
		}
		for _, d := range deps {
			key := strings.ToLower(d.Name)
			if _, dup := idx.byName[key]; !dup {
				idx.byName[key] = d
			}
		}
		idx.deps = append(idx.deps, deps...)
	}
	return idx
}

func impliedDirs(files []types.FileNode) []types.FileNode {
	seen := map[string]bool{}
	var out []types.FileNode
	for _, f := range files {
		for d := path.Dir(f.Path); d != "." && d != "/" && !seen[d]; d = path.Dir(d) {
			seen[d] = true
			out = append(out, types.FileNode{Path: d, Type: types.NodeDir})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth() != out[j].Depth() {
			return out[i].Depth() < out[j].Depth()
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func (idx *index) has(name string) (Dependency, bool) {
	d, ok := idx.byName[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// modTime falls back to the last commit when the file has no own timestamp.
func (idx *index) modTime(p string) time.Time {
	if t, ok := idx.times[p]; ok {
		return t
	}
	return idx.snap.LastCommit
}

func (r *Rule) apply(idx *index) (signal.Signal, bool) {
	if len(r.Requires) > 0 {
		gated := false
		for _, name := range r.Requires {
			if _, ok := idx.has(name); ok {
				gated = true
				break
			}
		}
		if !gated {
			return signal.Signal{}, false
		}
	}

	emit := func(file, evidence string) (signal.Signal, bool) {
		opts := []signal.Option{signal.WithFile(file)}
		if t := idx.modTime(file); !t.IsZero() {
			opts = append(opts, signal.WithModified(t))
		}
		return signal.New(r.Framework, r.SignalType(), r.Priority, r.Source, evidence, opts...), true
	}

	for _, n := range idx.files {
		if r.excluded(n.Path) {
			continue
		}
		for _, g := range r.Files {
			if matchPath(g, n.Path) {
				return emit(n.Path, r.evidence(n.Path, fmt.Sprintf("%s found", n.Path)))
			}
		}
	}
	for _, n := range idx.dirs {
		if r.excluded(n.Path) {
			continue
		}
		for _, g := range r.Dirs {
			if matchPath(g, n.Path) {
				return emit(n.Path, r.evidence(n.Path, fmt.Sprintf("%s/ directory found", n.Path)))
			}
		}
	}
	for _, name := range r.Dependencies {
		if d, ok := idx.has(name); ok {
			return emit(d.Manifest, r.evidence(d.Name, fmt.Sprintf("%s declared in %s", d.Name, d.Manifest)))
		}
	}
	if readme := idx.snap.Readme; readme != "" {
		for _, m := range r.readme {
			if m.re.MatchString(readme) {
				return emit(readmePath(idx), r.evidence(m.word, fmt.Sprintf("README mentions %s", m.word)))
			}
		}
	}
	return signal.Signal{}, false
}

func readmePath(idx *index) string {
	for _, n := range idx.files {
		if n.Depth() == 0 && strings.HasPrefix(strings.ToLower(n.Base()), "readme") {
			return n.Path
		}
	}
	return "README.md"
}
