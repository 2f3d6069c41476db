package pipeline

import (
	"fmt"
	"strings"

	"framelabel/internal/types"
)

// FilterConfig holds the pre-filter thresholds. The zero value is not
// usable; start from DefaultFilterConfig.
type FilterConfig struct {
	MinFiles         int      `toml:"min_files" json:"min_files"`
	MaxFiles         int      `toml:"max_files" json:"max_files"`
	AllowForks       bool     `toml:"allow_forks" json:"allow_forks"`
	TutorialKeywords []string `toml:"tutorial_keywords" json:"tutorial_keywords"`
	ReadmeIndicators []string `toml:"readme_indicators" json:"readme_indicators"`
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinFiles: 5,
		MaxFiles: 10000,
		TutorialKeywords: []string{
			"tutorial", "example", "demo", "boilerplate",
			"template", "starter", "scaffold", "learn",
		},
		ReadmeIndicators: []string{"this is a tutorial", "getting started"},
	}
}

// Filter check names recorded in FilterResult.Checks.
const (
	CheckFork             = "is_fork"
	CheckTooSmall         = "too_small"
	CheckTooLarge         = "too_large"
	CheckTutorialKeywords = "tutorial_keywords"
	CheckTutorialReadme   = "tutorial_readme"
)

type FilterResult struct {
	Filtered bool            `json:"filtered"`
	Reason   string          `json:"rejection_reason,omitempty"`
	Checks   map[string]bool `json:"filter_results"`
}

// PreFilter runs every check. When several fail, Reason names the last one
// in check order: fork, size, description, README.
func PreFilter(snap *types.Snapshot, cfg FilterConfig) FilterResult {
	res := FilterResult{Checks: map[string]bool{}}
	fail := func(check, reason string) {
		res.Checks[check] = true
		res.Filtered = true
		res.Reason = reason
	}
	if snap == nil {
		fail(CheckTooSmall, "No snapshot")
		return res
	}

	res.Checks[CheckFork] = false
	if snap.IsFork && !cfg.AllowForks {
		fail(CheckFork, "Repository is a fork")
	}

	n := snap.FileCount()
	switch {
	case n < cfg.MinFiles:
		fail(CheckTooSmall, fmt.Sprintf("Too few files: %d < %d", n, cfg.MinFiles))
	case cfg.MaxFiles > 0 && n > cfg.MaxFiles:
		fail(CheckTooLarge, fmt.Sprintf("Too many files: %d > %d", n, cfg.MaxFiles))
	}

	if desc := strings.ToLower(snap.Description); desc != "" {
		res.Checks[CheckTutorialKeywords] = false
		if containsAny(desc, cfg.TutorialKeywords) {
			fail(CheckTutorialKeywords, "Contains tutorial keywords in description")
		}
	}

	if readme := strings.ToLower(snap.Readme); readme != "" {
		res.Checks[CheckTutorialReadme] = false
		if containsAny(readme, cfg.ReadmeIndicators) {
			fail(CheckTutorialReadme, "Tutorial indicators in README")
		}
	}
	return res
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub = strings.ToLower(strings.TrimSpace(sub)); sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
