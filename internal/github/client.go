package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	perPage     = 100
	maxAttempts = 3
)

var (
	ErrNotFound    = errors.New("github: not found")
	ErrRateLimited = errors.New("github: rate limited")
)

// Config configures a Client. Zero values pick the defaults.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// Buffer is the quota kept in reserve; negative selects DefaultBuffer.
	Buffer int
	// MaxDepth caps the tree depth recorded in snapshots (0 = unlimited).
	MaxDepth int
	Now      func() time.Time
}

// Client is a small REST client for the search, git trees and contents APIs.
type Client struct {
	http     *http.Client
	baseURL  string
	token    string
	maxDepth int
	limiter  *RateLimiter
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lim := NewRateLimiter(cfg.Buffer)
	lim.now = now
	return &Client{
		http:     hc,
		baseURL:  base,
		token:    strings.TrimSpace(cfg.Token),
		maxDepth: cfg.MaxDepth,
		limiter:  lim,
		now:      now,
		sleep:    sleepCtx,
	}
}

// RateLimit exposes the limiter for status reporting.
func (c *Client) RateLimit() *RateLimiter { return c.limiter }

// -------- transport --------

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.Status, e.Message)
}

// getJSON performs a GET against path (relative to the base URL) and decodes
// the body into out. Rate limit responses wait for the reset and retry;
// transient 5xx and network errors retry with a short backoff.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		resp.Body.Close()
		c.limiter.Observe(resp.Header)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("github: decode %s: %w", path, err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		case isRateLimited(resp, body):
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, apiMessage(body))
			if attempt == maxAttempts {
				break
			}
			if c.limiter.Delay() > 0 {
				// The limiter waits for the reset at the top of the loop.
				continue
			}
			wait := time.Minute
			if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && ra > 0 {
				wait = time.Duration(ra) * time.Second
			}
			log.Printf("github: rate limited on %s, waiting %s", path, wait.Round(time.Second))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		case resp.StatusCode >= 500:
			lastErr = &apiError{Status: resp.StatusCode, Message: apiMessage(body)}
			if attempt < maxAttempts {
				if err := c.backoff(ctx, attempt); err != nil {
					return err
				}
			}
		default:
			return &apiError{Status: resp.StatusCode, Message: apiMessage(body)}
		}
	}
	return fmt.Errorf("github: GET %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	return c.sleep(ctx, time.Duration(attempt)*time.Second)
}

func isRateLimited(resp *http.Response, body []byte) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0" ||
		strings.Contains(strings.ToLower(string(body)), "rate limit")
}

func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func decodeContent(content, encoding string) (string, error) {
	if encoding != "" && encoding != "base64" {
		return content, nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("github: decode content: %w", err)
	}
	return string(b), nil
}
