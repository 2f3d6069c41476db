package labeling

import (
	"fmt"
	"strings"

	"framelabel/internal/scoring"
)

// Verdict confidence values returned by an adjudicator.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Verdict is an external adjudicator's answer for one repository.
type Verdict struct {
	PrimaryFramework    string   `json:"primary_framework"`
	Confidence          string   `json:"confidence"`
	CompetingFrameworks []string `json:"competing_frameworks"`
	Rationale           string   `json:"rationale"`
}

// Normalize lower-cases the confidence and trims identifiers. An empty or
// "null" primary framework means the adjudicator could not decide.
func (v Verdict) Normalize() Verdict {
	v.Confidence = strings.ToLower(strings.TrimSpace(v.Confidence))
	v.PrimaryFramework = strings.TrimSpace(v.PrimaryFramework)
	if strings.EqualFold(v.PrimaryFramework, "null") || strings.EqualFold(v.PrimaryFramework, "none") {
		v.PrimaryFramework = ""
	}
	seen := make(map[string]bool, len(v.CompetingFrameworks))
	out := v.CompetingFrameworks[:0:0]
	for _, fw := range v.CompetingFrameworks {
		fw = strings.TrimSpace(fw)
		if fw == "" || seen[fw] {
			continue
		}
		seen[fw] = true
		out = append(out, fw)
	}
	v.CompetingFrameworks = out
	return v
}

// Validate rejects confidence values outside high/medium/low.
func (v Verdict) Validate() error {
	switch v.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return nil
	}
	return fmt.Errorf("invalid verdict confidence %q", v.Confidence)
}

// Level maps the verdict confidence onto a confidence level.
func (v Verdict) Level() int {
	switch v.Confidence {
	case ConfidenceHigh:
		return scoring.Level1
	case ConfidenceMedium:
		return scoring.Level2
	}
	return scoring.Level3
}

// ApplyVerdict returns l updated with the adjudicator's answer. A level 4
// outcome is final, and a verdict without a primary framework only records
// its rationale.
func ApplyVerdict(l Labeled, v Verdict) Labeled {
	if l.ConfidenceLevel == scoring.Level4 {
		return l
	}
	v = v.Normalize()
	l.Adjudicated = true
	l.Rationale = v.Rationale
	if v.PrimaryFramework == "" {
		return l
	}
	l.PrimaryFramework = v.PrimaryFramework
	l.Label = v.PrimaryFramework
	l.ConfidenceLevel = v.Level()
	l.RejectionReason = ""
	return l
}
