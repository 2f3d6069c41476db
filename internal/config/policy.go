package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"framelabel/internal/pipeline"
	"framelabel/internal/scoring"
)

// Policy is the tunable part of a run, read from a TOML file:
//
//	[scoring]
//	dominance_threshold = 0.7
//	recency_days = 365
//
//	[filter]
//	min_files = 5
//
//	[crawl]
//	concurrency = 4
type Policy struct {
	Scoring ScoringPolicy         `toml:"scoring"`
	Filter  pipeline.FilterConfig `toml:"filter"`
	Crawl   CrawlPolicy           `toml:"crawl"`
}

type ScoringPolicy struct {
	DominanceThreshold float64 `toml:"dominance_threshold"`
	MinimumGapRatio    float64 `toml:"minimum_gap_ratio"`
	P3P4Threshold      int     `toml:"p3_p4_threshold"`
	WeakSumThreshold   int     `toml:"weak_sum_threshold"`
	RecencyDays        int     `toml:"recency_days"`
}

type CrawlPolicy struct {
	Languages   []string `toml:"languages"`
	MinStars    int      `toml:"min_stars"`
	MaxRepos    int      `toml:"max_repos"`
	Concurrency int      `toml:"concurrency"`
	Adjudicate  bool     `toml:"adjudicate"`
	SkipStored  bool     `toml:"skip_stored"`
}

func DefaultPolicy() Policy {
	sc := scoring.DefaultConfig()
	pc := pipeline.DefaultConfig()
	return Policy{
		Scoring: ScoringPolicy{
			DominanceThreshold: sc.DominanceThreshold,
			MinimumGapRatio:    sc.MinimumGapRatio,
			P3P4Threshold:      sc.P3P4Threshold,
			WeakSumThreshold:   sc.WeakSumThreshold,
			RecencyDays:        int(sc.RecencyWindow / (24 * time.Hour)),
		},
		Filter: pc.Filter,
		Crawl: CrawlPolicy{
			Languages:   []string{"Python", "JavaScript", "TypeScript", "Java", "Ruby", "PHP", "Go"},
			MinStars:    pc.MinStars,
			MaxRepos:    pc.MaxRepos,
			Concurrency: pc.Concurrency,
			SkipStored:  pc.SkipStored,
		},
	}
}

// ParsePolicy decodes data over the defaults; keys it does not know are an
// error so typos do not silently fall back.
func ParsePolicy(data string) (Policy, error) {
	p := DefaultPolicy()
	meta, err := toml.Decode(data, &p)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Policy{}, fmt.Errorf("unknown policy keys %s", strings.Join(keys, ", "))
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Policy{}, fmt.Errorf("%s: unknown policy keys %s", path, strings.Join(keys, ", "))
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (p Policy) Validate() error {
	s := p.Scoring
	switch {
	case s.DominanceThreshold <= 0 || s.DominanceThreshold > 1:
		return fmt.Errorf("dominance_threshold must be in (0, 1], got %v", s.DominanceThreshold)
	case s.MinimumGapRatio <= 0 || s.MinimumGapRatio >= 1:
		return fmt.Errorf("minimum_gap_ratio must be in (0, 1), got %v", s.MinimumGapRatio)
	case p.Filter.MinFiles < 0 || p.Filter.MaxFiles < 0:
		return fmt.Errorf("filter file limits must not be negative")
	case p.Filter.MaxFiles > 0 && p.Filter.MaxFiles < p.Filter.MinFiles:
		return fmt.Errorf("max_files %d below min_files %d", p.Filter.MaxFiles, p.Filter.MinFiles)
	}
	return nil
}

// ScoringConfig converts the policy into scorer thresholds.
func (p Policy) ScoringConfig() scoring.Config {
	return scoring.Config{
		DominanceThreshold: p.Scoring.DominanceThreshold,
		MinimumGapRatio:    p.Scoring.MinimumGapRatio,
		P3P4Threshold:      p.Scoring.P3P4Threshold,
		WeakSumThreshold:   p.Scoring.WeakSumThreshold,
		RecencyWindow:      time.Duration(p.Scoring.RecencyDays) * 24 * time.Hour,
	}
}

// PipelineConfig converts the policy into pipeline settings.
func (p Policy) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Filter = p.Filter
	cfg.MinStars = p.Crawl.MinStars
	cfg.MaxRepos = p.Crawl.MaxRepos
	cfg.Concurrency = p.Crawl.Concurrency
	cfg.Adjudicate = p.Crawl.Adjudicate
	cfg.SkipStored = p.Crawl.SkipStored
	return cfg
}
