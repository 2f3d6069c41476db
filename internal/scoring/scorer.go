package scoring

import (
	"sort"
	"time"

	"framelabel/internal/signal"
)

// Default policy thresholds.
const (
	DefaultDominanceThreshold = 0.70
	DefaultMinimumGapRatio    = 0.10
	DefaultP3P4Threshold      = 15
	DefaultWeakSumThreshold   = 5
	DefaultRecencyWindow      = 365 * 24 * time.Hour
)

// Config holds the fixed thresholds of a Scorer. Zero fields take defaults.
type Config struct {
	DominanceThreshold float64       `toml:"dominance_threshold" json:"dominance_threshold"`
	MinimumGapRatio    float64       `toml:"minimum_gap_ratio" json:"minimum_gap_ratio"`
	P3P4Threshold      int           `toml:"p3_p4_threshold" json:"p3_p4_threshold"`
	WeakSumThreshold   int           `toml:"weak_sum_threshold" json:"weak_sum_threshold"`
	RecencyWindow      time.Duration `toml:"-" json:"-"`
}

func DefaultConfig() Config {
	return Config{
		DominanceThreshold: DefaultDominanceThreshold,
		MinimumGapRatio:    DefaultMinimumGapRatio,
		P3P4Threshold:      DefaultP3P4Threshold,
		WeakSumThreshold:   DefaultWeakSumThreshold,
		RecencyWindow:      DefaultRecencyWindow,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DominanceThreshold <= 0 {
		c.DominanceThreshold = d.DominanceThreshold
	}
	if c.MinimumGapRatio <= 0 {
		c.MinimumGapRatio = d.MinimumGapRatio
	}
	if c.P3P4Threshold <= 0 {
		c.P3P4Threshold = d.P3P4Threshold
	}
	if c.WeakSumThreshold <= 0 {
		c.WeakSumThreshold = d.WeakSumThreshold
	}
	if c.RecencyWindow <= 0 {
		c.RecencyWindow = d.RecencyWindow
	}
	return c
}

// Scorer aggregates signals, resolves conflicts and classifies confidence.
// It holds only read-only thresholds and is safe for concurrent use.
type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

func (s *Scorer) Config() Config { return s.cfg }

// Ranked is one framework and its final score.
type Ranked struct {
	Framework string `json:"framework"`
	Score     int    `json:"score"`
}

// Scored is the immutable result of Score.
type Scored struct {
	Signals        signal.Set     `json:"signals"`
	AsOf           time.Time      `json:"as_of"`
	Scores         map[string]int `json:"framework_scores"`
	Ranking        []Ranked       `json:"competing_frameworks"`
	Total          int            `json:"total_score"`
	DominanceRatio float64        `json:"dominance_ratio"`
	Gap            int            `json:"score_gap"`
}

// Top returns the highest ranked framework.
func (s *Scored) Top() (Ranked, bool) {
	if s == nil || len(s.Ranking) == 0 {
		return Ranked{}, false
	}
	return s.Ranking[0], true
}

// Second returns the runner-up, if any.
func (s *Scored) Second() (Ranked, bool) {
	if s == nil || len(s.Ranking) < 2 {
		return Ranked{}, false
	}
	return s.Ranking[1], true
}

// GapRatio is gap/top, or 0 when the top score is not positive.
func (s *Scored) GapRatio() float64 {
	top, ok := s.Top()
	if !ok || top.Score <= 0 {
		return 0
	}
	return float64(s.Gap) / float64(top.Score)
}

// Score turns a signal set into ranked per-framework scores. asOf is the
// reference time for recency; the scorer never reads the clock itself.
// The steps run in order because later steps redistribute points.
func (s *Scorer) Score(set signal.Set, asOf time.Time) *Scored {
	set = set.Clone()
	scores := rawScores(set)
	scores = s.applyPriorityOverride(scores, set)
	scores = s.applyRecencyBoost(scores, set, asOf)

	ranking := rank(scores)
	total := 0
	for _, v := range scores {
		total += v
	}
	topScore, secondScore := 0, 0
	if len(ranking) > 0 {
		topScore = ranking[0].Score
	}
	if len(ranking) > 1 {
		secondScore = ranking[1].Score
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(topScore) / float64(total)
	}
	return &Scored{
		Signals:        set,
		AsOf:           asOf,
		Scores:         scores,
		Ranking:        ranking,
		Total:          total,
		DominanceRatio: ratio,
		Gap:            topScore - secondScore,
	}
}

func rawScores(set signal.Set) map[string]int {
	out := make(map[string]int, len(set))
	for fw, sigs := range set {
		total := 0
		for _, sig := range sigs {
			total += sig.Weight()
		}
		out[fw] = total
	}
	return out
}

// applyPriorityOverride halves the contribution of P5-or-weaker signals of
// every framework that has no P1 signal, provided some framework has one.
// The truncated reduction is subtracted per signal; scores floor at zero.
func (s *Scorer) applyPriorityOverride(scores map[string]int, set signal.Set) map[string]int {
	p1 := frameworksWith(set, isP1)
	if len(p1) == 0 {
		return scores
	}
	holders := make(map[string]bool, len(p1))
	for _, fw := range p1 {
		holders[fw] = true
	}
	out := make(map[string]int, len(scores))
	for fw, v := range scores {
		if !holders[fw] {
			for _, sig := range set[fw] {
				if sig.Priority().AtMost(signal.P5) {
					v -= sig.Weight() / 2
				}
			}
			if v < 0 {
				v = 0
			}
		}
		out[fw] = v
	}
	return out
}

// applyRecencyBoost adds 10% (truncated) to frameworks whose signals are at
// least half recent.
func (s *Scorer) applyRecencyBoost(scores map[string]int, set signal.Set, asOf time.Time) map[string]int {
	out := make(map[string]int, len(scores))
	for fw, v := range scores {
		sigs := set[fw]
		recent := 0
		for _, sig := range sigs {
			if sig.RecentAt(asOf, s.cfg.RecencyWindow) {
				recent++
			}
		}
		if recent > 0 && recent*2 >= len(sigs) {
			v += v * 10 / 100
		}
		out[fw] = v
	}
	return out
}

// rank orders by score descending; equal scores fall back to the framework
// identifier so the order never depends on map iteration.
func rank(scores map[string]int) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for fw, v := range scores {
		out = append(out, Ranked{Framework: fw, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Framework < out[j].Framework
	})
	return out
}

// CheckDominance requires both the share threshold and the minimum gap ratio.
// The top framework is returned whenever one exists, even when not dominant.
func (s *Scorer) CheckDominance(scored *Scored) (bool, string) {
	top, ok := scored.Top()
	if !ok {
		return false, ""
	}
	meetsShare := scored.DominanceRatio >= s.cfg.DominanceThreshold
	meetsGap := scored.GapRatio() >= s.cfg.MinimumGapRatio
	return meetsShare && meetsGap, top.Framework
}

// CloseRace reports the case where the share threshold is met but the
// runner-up is within the minimum gap.
func (s *Scorer) CloseRace(scored *Scored) bool {
	if _, ok := scored.Second(); !ok {
		return false
	}
	if top, _ := scored.Top(); top.Score <= 0 {
		return false
	}
	return scored.DominanceRatio >= s.cfg.DominanceThreshold && scored.GapRatio() < s.cfg.MinimumGapRatio
}

func isP1(sig signal.Signal) bool { return sig.Priority() == signal.P1 }
func isP2(sig signal.Signal) bool { return sig.Priority() == signal.P2 }

func isP2OrStronger(sig signal.Signal) bool { return sig.Priority().AtLeast(signal.P2) }

// frameworksWith lists frameworks carrying at least one signal matching pred,
// in identifier order.
func frameworksWith(set signal.Set, pred func(signal.Signal) bool) []string {
	var out []string
	for _, fw := range set.Frameworks() {
		if set.Has(fw, pred) {
			out = append(out, fw)
		}
	}
	return out
}
