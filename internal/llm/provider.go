package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Providers accepted by Open.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderFake   = "fake"
)

// ProviderConfig selects and tunes a model backend.
type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	RPS      float64
	Burst    int
	Attempts int
	// Fake answers calls when Provider is "fake".
	Fake   FakeReply
	Logger *log.Logger
}

// Open builds the configured client wrapped with logging, rate limiting and
// retries. Provider "none" (or empty) returns a nil Client and no error.
func Open(ctx context.Context, cfg ProviderConfig) (Client, error) {
	var base Client
	switch p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p {
	case "", ProviderNone:
		return nil, nil
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		base = g
	case ProviderOpenAI:
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm: provider %q needs a model", p)
		}
		base = NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderFake:
		base = NewFakeClient(cfg.Fake)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return Wrap(base,
		WithLogging(cfg.Logger),
		Retry(attempts, 500*time.Millisecond),
		RateLimit(cfg.RPS, cfg.Burst),
	), nil
}
