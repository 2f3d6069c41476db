package labeling

import "framelabel/internal/scoring"

// IncludeInTraining accepts framework labels at confidence level 1 or 2.
// Level 3 needs an applied verdict first; level 4 never qualifies.
func IncludeInTraining(l Labeled) bool {
	if !l.IsFramework() || l.PrimaryFramework == "" {
		return false
	}
	return l.ConfidenceLevel == scoring.Level1 || l.ConfidenceLevel == scoring.Level2
}
