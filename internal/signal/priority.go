package signal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority is an evidence tier. P1 is the strongest (entry-point files) and P7
// the weakest (README mentions). Lower values always mean stronger evidence.
type Priority int

const (
	P1 Priority = iota + 1 // entry point files
	P2                     // directory structure
	P3                     // configuration / build files
	P4                     // annotations, decorators
	P5                     // dependencies
	P6                     // filename patterns
	P7                     // README mentions
)

// weights is indexed by Priority; slot 0 is unused.
var weights = [...]int{0, 10, 8, 7, 6, 3, 2, 1}

// Weight returns the fixed point value of the tier, or 0 for an invalid tier.
func (p Priority) Weight() int {
	if !p.Valid() {
		return 0
	}
	return weights[p]
}

func (p Priority) Valid() bool { return p >= P1 && p <= P7 }

// AtLeast reports whether p is as strong as or stronger than o.
func (p Priority) AtLeast(o Priority) bool { return p <= o }

// AtMost reports whether p is as weak as or weaker than o.
func (p Priority) AtMost(o Priority) bool { return p >= o }

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("P?(%d)", int(p))
	}
	return fmt.Sprintf("P%d", int(p))
}

// ParsePriority accepts "P3", "p3" or "3".
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "P")
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("signal: invalid priority %q", s)
	}
	p := Priority(n)
	if !p.Valid() {
		return 0, fmt.Errorf("signal: priority out of range: %d", n)
	}
	return p, nil
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// MarshalJSON emits the bare tier number, matching the persisted sample format.
func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(int(p)) }

// UnmarshalJSON accepts either a number (3) or a string ("P3").
func (p *Priority) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		v := Priority(n)
		if !v.Valid() {
			return fmt.Errorf("signal: priority out of range: %d", n)
		}
		*p = v
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("signal: invalid priority %s", string(b))
	}
	return p.UnmarshalText([]byte(s))
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type is the explicit strength tag of a signal. By convention P1-P4 are
// Strong and P5-P7 Weak, but extraction may deliberately deviate.
type Type string

const (
	Strong Type = "STRONG"
	Weak   Type = "WEAK"
)

// DefaultType returns the conventional strength for a tier.
func DefaultType(p Priority) Type {
	if p.AtLeast(P4) {
		return Strong
	}
	return Weak
}

func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRONG":
		return Strong, nil
	case "WEAK":
		return Weak, nil
	}
	return "", fmt.Errorf("signal: invalid type %q", s)
}
