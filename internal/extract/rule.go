package extract

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"framelabel/internal/signal"
)

var (
	ErrInvalidRule = errors.New("extract: invalid rule")
)

// Rule emits at most one signal per repository: the first hit among its
// matchers, shallowest path first.
type Rule struct {
	Framework string          `toml:"framework" json:"framework"`
	Priority  signal.Priority `toml:"priority" json:"priority"`
	// Type defaults to the priority convention when empty.
	Type     signal.Type `toml:"type" json:"type,omitempty"`
	Source   string      `toml:"source" json:"source"`
	Evidence string      `toml:"evidence" json:"evidence,omitempty"`

	// Files and Dirs are doublestar globs ("**", "{a,b}"). A glob without
	// "/" matches the base name at any depth.
	Files []string `toml:"files" json:"files,omitempty"`
	Dirs  []string `toml:"dirs" json:"dirs,omitempty"`
	// Dependencies are package names declared in any parsed manifest.
	Dependencies []string `toml:"dependencies" json:"dependencies,omitempty"`
	// Readme holds words searched case-insensitively in the README.
	Readme []string `toml:"readme" json:"readme,omitempty"`

	// Requires gates the rule on at least one declared dependency.
	Requires []string `toml:"requires" json:"requires,omitempty"`
	// Exclude drops paths matching any of these globs.
	Exclude []string `toml:"exclude" json:"exclude,omitempty"`

	readme []readmeMatcher
}

type readmeMatcher struct {
	word string
	re   *regexp.Regexp
}

// SignalType is the explicit type, or the priority convention.
func (r Rule) SignalType() signal.Type {
	if r.Type != "" {
		return r.Type
	}
	return signal.DefaultType(r.Priority)
}

func (r Rule) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Framework, r.Priority, r.Source)
}

// Validate checks the rule and normalises identifiers.
func (r *Rule) Validate() error {
	r.Framework = strings.TrimSpace(r.Framework)
	if r.Framework == "" {
		return fmt.Errorf("%w: framework is required", ErrInvalidRule)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: %s: priority %d out of range", ErrInvalidRule, r.Framework, int(r.Priority))
	}
	if r.Type != "" {
		t, err := signal.ParseType(string(r.Type))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Framework, err)
		}
		r.Type = t
	}
	if len(r.Files)+len(r.Dirs)+len(r.Dependencies)+len(r.Readme) == 0 {
		return fmt.Errorf("%w: %s: no matcher", ErrInvalidRule, r)
	}
	for _, g := range append(append(append([]string{}, r.Files...), r.Dirs...), r.Exclude...) {
		if g = strings.Trim(g, "/"); g == "" || !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: %s: bad glob %q", ErrInvalidRule, r, g)
		}
	}
	if r.Source == "" {
		r.Source = defaultSource(r)
	}
	return nil
}

func defaultSource(r *Rule) string {
	switch {
	case len(r.Dependencies) > 0:
		return signal.SourceDependency
	case len(r.Readme) > 0:
		return signal.SourceReadme
	case len(r.Dirs) > 0:
		return signal.SourceDirectory
	}
	return signal.SourcePattern
}

func (r *Rule) compile() {
	r.readme = nil
	for _, w := range r.Readme {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(w) + `($|[^\pL\pN])`)
		r.readme = append(r.readme, readmeMatcher{word: w, re: re})
	}
}

func (r *Rule) excluded(p string) bool {
	for _, g := range r.Exclude {
		if matchPath(g, p) {
			return true
		}
	}
	return false
}

// matchPath matches a slash path against a doublestar glob. A glob without
// "/" is tried against the base name only.
func matchPath(glob, p string) bool {
	glob = strings.Trim(glob, "/")
	p = strings.Trim(p, "/")
	if glob == "" {
		return false
	}
	if !strings.Contains(glob, "/") && glob != "**" {
		p = path.Base(p)
	}
	ok, err := doublestar.Match(glob, p)
	return ok && err == nil
}

// evidence fills the {match} placeholder, or uses fallback when the rule
// has no evidence text.
func (r *Rule) evidence(match, fallback string) string {
	if r.Evidence == "" {
		return fallback
	}
	return strings.ReplaceAll(r.Evidence, "{match}", match)
}
