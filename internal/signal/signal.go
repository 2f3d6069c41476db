package signal

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Source tags used by the built-in extraction rules. The field is free-form.
const (
	SourceEntryFile  = "entry_file"
	SourceDirectory  = "directory"
	SourceBuild      = "build"
	SourceConfig     = "config"
	SourceDependency = "dependency"
	SourcePattern    = "filename_pattern"
	SourceReadme     = "readme"
)

// Signal is one piece of structural evidence tying a repository to a framework.
// Fields are unexported so a Signal cannot change after New; the weight is
// always derived from the priority.
type Signal struct {
	framework    string
	typ          Type
	priority     Priority
	source       string
	evidence     string
	filePath     string
	lastModified *time.Time
}

// Option sets optional attributes on New.
type Option func(*Signal)

func WithFile(path string) Option {
	return func(s *Signal) { s.filePath = path }
}

func WithModified(t time.Time) Option {
	return func(s *Signal) {
		if t.IsZero() {
			return
		}
		tt := t
		s.lastModified = &tt
	}
}

func New(framework string, typ Type, p Priority, source, evidence string, opts ...Option) Signal {
	s := Signal{
		framework: framework,
		typ:       typ,
		priority:  p,
		source:    source,
		evidence:  evidence,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s Signal) Framework() string  { return s.framework }
func (s Signal) Type() Type         { return s.typ }
func (s Signal) Priority() Priority { return s.priority }
func (s Signal) Weight() int        { return s.priority.Weight() }
func (s Signal) Source() string     { return s.source }
func (s Signal) Evidence() string   { return s.evidence }
func (s Signal) FilePath() string   { return s.filePath }
func (s Signal) IsStrong() bool     { return s.typ == Strong }
func (s Signal) IsWeak() bool       { return s.typ == Weak }

// LastModified returns the timestamp and whether one is known.
func (s Signal) LastModified() (time.Time, bool) {
	if s.lastModified == nil {
		return time.Time{}, false
	}
	return *s.lastModified, true
}

// RecentAt reports whether the signal was modified within window before asOf.
// Signals without a timestamp are never recent.
func (s Signal) RecentAt(asOf time.Time, window time.Duration) bool {
	t, ok := s.LastModified()
	if !ok {
		return false
	}
	return !t.Before(asOf.Add(-window))
}

// wire is the JSON shape. Weight is emitted for readers but ignored on input.
type wire struct {
	Framework    string     `json:"framework"`
	SignalType   Type       `json:"signal_type"`
	Priority     Priority   `json:"priority"`
	Weight       int        `json:"weight"`
	Source       string     `json:"source"`
	Evidence     string     `json:"evidence"`
	FilePath     string     `json:"file_path,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		Framework:    s.framework,
		SignalType:   s.typ,
		Priority:     s.priority,
		Weight:       s.Weight(),
		Source:       s.source,
		Evidence:     s.evidence,
		FilePath:     s.filePath,
		LastModified: s.lastModified,
	})
}

func (s *Signal) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if !w.Priority.Valid() {
		return fmt.Errorf("signal: %q has no valid priority", w.Evidence)
	}
	if w.SignalType == "" {
		w.SignalType = DefaultType(w.Priority)
	}
	*s = New(w.Framework, w.SignalType, w.Priority, w.Source, w.Evidence, WithFile(w.FilePath))
	if w.LastModified != nil {
		WithModified(*w.LastModified)(s)
	}
	return nil
}

// Set maps a framework identifier to its signals in extraction order.
// Several frameworks co-occurring is the normal competing case.
type Set map[string][]Signal

// Add appends sig under its own framework key.
func (s Set) Add(sig Signal) {
	s[sig.Framework()] = append(s[sig.Framework()], sig)
}

// Frameworks returns the keys in lexicographic order.
func (s Set) Frameworks() []string {
	out := make([]string, 0, len(s))
	for fw := range s {
		out = append(out, fw)
	}
	sort.Strings(out)
	return out
}

// Has reports whether fw carries at least one signal matching pred.
func (s Set) Has(fw string, pred func(Signal) bool) bool {
	for _, sig := range s[fw] {
		if pred(sig) {
			return true
		}
	}
	return false
}

// All reports whether every signal of every framework matches pred.
// An empty set satisfies All.
func (s Set) All(pred func(Signal) bool) bool {
	for _, sigs := range s {
		for _, sig := range sigs {
			if !pred(sig) {
				return false
			}
		}
	}
	return true
}

// Clone returns a copy whose slices do not alias s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for fw, sigs := range s {
		out[fw] = append([]Signal(nil), sigs...)
	}
	return out
}

func (s Set) Len() int {
	n := 0
	for _, sigs := range s {
		n += len(sigs)
	}
	return n
}
