package scoring

import (
	"time"

	"framelabel/internal/signal"
)

var asOf = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func recent() signal.Option { return signal.WithModified(asOf.AddDate(0, -2, 0)) }
func stale() signal.Option  { return signal.WithModified(asOf.AddDate(-3, 0, 0)) }

func strong(fw string, p signal.Priority, opts ...signal.Option) signal.Signal {
	return signal.New(fw, signal.Strong, p, "test", fw+" "+p.String(), opts...)
}

func weak(fw string, p signal.Priority, opts ...signal.Option) signal.Signal {
	return signal.New(fw, signal.Weak, p, "test", fw+" "+p.String(), opts...)
}

func setOf(sigs ...signal.Signal) signal.Set {
	set := signal.Set{}
	for _, s := range sigs {
		set.Add(s)
	}
	return set
}

func repeat(n int, s signal.Signal) []signal.Signal {
	out := make([]signal.Signal, n)
	for i := range out {
		out[i] = s
	}
	return out
}
