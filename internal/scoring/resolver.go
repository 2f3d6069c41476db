package scoring

import (
	"fmt"

	"framelabel/internal/signal"
)

// Stable unresolved reasons, shown to operators and to the adjudicator.
const (
	ReasonNoSignals     = "no framework signals detected"
	ReasonSimilarP2Plus = "multiple frameworks with similar P2+ signals"
	ReasonWeakP3P4      = "insufficient P3-P4 signal strength"
	ReasonOnlyWeak      = "only weak signals detected"
	ReasonTooClose      = "top two frameworks too close (gap < 10%)"
	ReasonCannotResolve = "cannot resolve framework conflict"
)

// Resolution is the outcome of Resolve: either a framework or a reason.
type Resolution struct {
	Framework string `json:"framework,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (r Resolution) Resolved() bool { return r.Framework != "" }

func resolved(fw string) Resolution       { return Resolution{Framework: fw} }
func unresolved(reason string) Resolution { return Resolution{Reason: reason} }

// Resolve picks a single framework by walking the priority tiers, each step
// short-circuiting.
func (s *Scorer) Resolve(scored *Scored) Resolution {
	top, ok := scored.Top()
	if !ok {
		return unresolved(ReasonNoSignals)
	}
	set := scored.Signals

	// An unambiguous entry point wins outright; several compete on share.
	p1 := frameworksWith(set, isP1)
	if len(p1) == 1 {
		return resolved(p1[0])
	}
	if len(p1) > 1 {
		if fw, ok := s.shareWinner(scored, p1); ok {
			return resolved(fw)
		}
	}

	if len(p1) == 0 {
		if p2 := frameworksWith(set, isP2); len(p2) == 1 {
			return resolved(p2[0])
		}
	}

	if p2plus := frameworksWith(set, isP2OrStronger); len(p2plus) >= 2 {
		if fw, ok := s.shareWinner(scored, p2plus); ok {
			return resolved(fw)
		}
		return unresolved(ReasonSimilarP2Plus)
	}

	// No score threshold can rescue P5-or-weaker evidence, so this check runs
	// before the P3-P4 floor.
	if set.All(func(sig signal.Signal) bool { return sig.Priority().AtMost(signal.P5) }) {
		return unresolved(ReasonOnlyWeak)
	}
	if set.All(func(sig signal.Signal) bool { return sig.Priority().AtMost(signal.P3) }) {
		if top.Score < s.cfg.P3P4Threshold {
			return unresolved(ReasonWeakP3P4)
		}
		// Clearing the floor is not enough when the runner-up is within the gap.
		if scored.GapRatio() < s.cfg.MinimumGapRatio {
			return unresolved(ReasonTooClose)
		}
		return resolved(top.Framework)
	}

	if dominant, fw := s.CheckDominance(scored); dominant {
		return resolved(fw)
	}
	if top.Score > 0 && scored.GapRatio() < s.cfg.MinimumGapRatio {
		return unresolved(ReasonTooClose)
	}
	return unresolved(ReasonCannotResolve)
}

// shareWinner compares only the given frameworks: the best of them wins when
// its share of their combined score meets the dominance threshold.
func (s *Scorer) shareWinner(scored *Scored, frameworks []string) (string, bool) {
	best, bestScore, total := "", 0, 0
	for _, fw := range frameworks {
		v := scored.Scores[fw]
		total += v
		if best == "" || v > bestScore || (v == bestScore && fw < best) {
			best, bestScore = fw, v
		}
	}
	if total <= 0 {
		return "", false
	}
	return best, float64(bestScore)/float64(total) >= s.cfg.DominanceThreshold
}

func (r Resolution) String() string {
	if r.Resolved() {
		return r.Framework
	}
	return fmt.Sprintf("unresolved: %s", r.Reason)
}
