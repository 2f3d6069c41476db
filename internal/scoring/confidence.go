package scoring

import "framelabel/internal/signal"

// Confidence levels, 1 is the most certain.
const (
	Level1 = 1
	Level2 = 2
	Level3 = 3
	Level4 = 4
)

// Composition summarises the top framework's own signals.
type Composition struct {
	Strong       int `json:"strong"`
	RecentStrong int `json:"recent_strong"`
	Weak         int `json:"weak"`
	WeakSum      int `json:"weak_sum"`
	P3P4Sum      int `json:"p3_p4_sum"`
}

// Compose counts the signals of the top ranked framework.
func (s *Scorer) Compose(scored *Scored) Composition {
	var c Composition
	top, ok := scored.Top()
	if !ok {
		return c
	}
	for _, sig := range scored.Signals[top.Framework] {
		switch sig.Type() {
		case signal.Strong:
			c.Strong++
			if sig.RecentAt(scored.AsOf, s.cfg.RecencyWindow) {
				c.RecentStrong++
			}
		case signal.Weak:
			c.Weak++
			c.WeakSum += sig.Weight()
		}
		if p := sig.Priority(); p == signal.P3 || p == signal.P4 {
			c.P3P4Sum += sig.Weight()
		}
	}
	return c
}

// Confidence assigns a level from the composition of the top framework's
// signals only; competitors do not influence it. First matching rule wins.
func (s *Scorer) Confidence(scored *Scored) int {
	if _, ok := scored.Top(); !ok {
		return Level4
	}
	c := s.Compose(scored)
	switch {
	case c.Strong >= 3 && c.RecentStrong >= 2:
		return Level1
	case c.Strong == 2 && c.Weak >= 2:
		return Level2
	case c.P3P4Sum >= s.cfg.P3P4Threshold:
		return Level2
	case c.Strong == 1:
		return Level3
	case c.Strong == 0 && c.WeakSum < s.cfg.WeakSumThreshold:
		return Level4
	case c.Strong == 0 && c.Weak > 0:
		return Level3
	}
	return Level3
}
