package labeling

import (
	"time"

	"framelabel/internal/scoring"
	"framelabel/internal/signal"
)

// Sentinel labels. Any other label is a framework identifier.
const (
	LabelUncertain = "uncertain"
	LabelUnknown   = "unknown"
)

// Reasons synthesized by the labeler when the resolver gave none.
const (
	ReasonNoStrong     = "no STRONG signals detected"
	ReasonCloseRace    = "top two frameworks within 10% gap (dominance threshold met but gap insufficient)"
	ReasonUndetermined = "cannot determine primary framework"
)

// Labeled is the final decision for one repository.
type Labeled struct {
	Scored               *scoring.Scored `json:"-"`
	PrimaryFramework     string          `json:"primary_framework,omitempty"`
	ConfidenceLevel      int             `json:"confidence_level"`
	Label                string          `json:"label"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
	RequiresAdjudication bool            `json:"requires_llm_validation"`
	Adjudicated          bool            `json:"llm_validated,omitempty"`
	Rationale            string          `json:"llm_rationale,omitempty"`
}

// IsFramework reports whether the label names a framework rather than a sentinel.
func (l Labeled) IsFramework() bool {
	return l.Label != "" && l.Label != LabelUncertain && l.Label != LabelUnknown
}

// Labeler combines resolution, dominance and confidence into a label.
// Like the Scorer it wraps, it is safe for concurrent use.
type Labeler struct {
	scorer *scoring.Scorer
}

func New(scorer *scoring.Scorer) *Labeler {
	if scorer == nil {
		scorer = scoring.New(scoring.Config{})
	}
	return &Labeler{scorer: scorer}
}

func (l *Labeler) Scorer() *scoring.Scorer { return l.scorer }

// LabelSet scores set at asOf and labels the result.
func (l *Labeler) LabelSet(set signal.Set, asOf time.Time) Labeled {
	return l.Label(l.scorer.Score(set, asOf))
}

// Label decides the label of a scored repository. Level 4 always yields
// "unknown" whatever the resolver found.
func (l *Labeler) Label(scored *scoring.Scored) Labeled {
	level := l.scorer.Confidence(scored)
	res := l.scorer.Resolve(scored)
	out := Labeled{Scored: scored, ConfidenceLevel: level}

	if level == scoring.Level4 {
		out.Label = LabelUnknown
		out.RejectionReason = firstNonEmpty(res.Reason, ReasonNoStrong)
		return out
	}

	dominant, top := l.scorer.CheckDominance(scored)
	switch {
	case dominant:
		out.PrimaryFramework, out.Label = top, top
		out.RequiresAdjudication = level >= scoring.Level3
	case res.Resolved() && l.scorer.CloseRace(scored):
		out.Label = LabelUncertain
		out.RejectionReason = ReasonCloseRace
		out.RequiresAdjudication = true
	case res.Resolved():
		out.PrimaryFramework, out.Label = res.Framework, res.Framework
		out.RequiresAdjudication = level >= scoring.Level3
	default:
		out.Label = LabelUncertain
		out.RejectionReason = firstNonEmpty(res.Reason, ReasonUndetermined)
		out.RequiresAdjudication = true
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
