package llm

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitHeaders is the normalised form of provider rate-limit headers.
// Remaining counts are -1 when the provider did not send them.
type RateLimitHeaders struct {
	RetryAfterSeconds int

	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int

	ResetRequests time.Duration
	ResetTokens   time.Duration
}

// NextWait is how long to hold off before the next call. Retry-After wins,
// then an exhausted token budget, then an exhausted request budget.
func (h RateLimitHeaders) NextWait() time.Duration {
	switch {
	case h.RetryAfterSeconds > 0:
		return time.Duration(h.RetryAfterSeconds) * time.Second
	case h.RemainingTokens == 0 && h.ResetTokens > 0:
		return h.ResetTokens
	case h.RemainingRequests == 0 && h.ResetRequests > 0:
		return h.ResetRequests
	}
	return 0
}

// parseRateLimitHeaders reads Retry-After and the x-ratelimit-* family used by
// OpenAI-compatible servers. ok reports whether any of them was present.
func parseRateLimitHeaders(h http.Header) (out RateLimitHeaders, ok bool) {
	out = RateLimitHeaders{RemainingRequests: -1, RemainingTokens: -1}

	counts := map[string]*int{
		"retry-after":                    &out.RetryAfterSeconds,
		"x-ratelimit-limit-requests":     &out.LimitRequests,
		"x-ratelimit-limit-tokens":       &out.LimitTokens,
		"x-ratelimit-remaining-requests": &out.RemainingRequests,
		"x-ratelimit-remaining-tokens":   &out.RemainingTokens,
	}
	for key, dst := range counts {
		if n, err := strconv.Atoi(strings.TrimSpace(h.Get(key))); err == nil {
			*dst = n
			ok = true
		}
	}

	resets := map[string]*time.Duration{
		"x-ratelimit-reset-requests": &out.ResetRequests,
		"x-ratelimit-reset-tokens":   &out.ResetTokens,
	}
	for key, dst := range resets {
		if d, err := time.ParseDuration(strings.TrimSpace(h.Get(key))); err == nil {
			*dst = d
			ok = true
		}
	}
	return out, ok
}
