package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// systemPrompt frames every chat-completions call.
const systemPrompt = "You are a senior software engineer analyzing GitHub repositories. Respond in JSON format only."

// OpenAIClient calls an OpenAI-compatible Chat Completions endpoint and asks
// for a JSON object. Groq, Ollama and vLLM servers speak the same protocol.
type OpenAIClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string

	mu      sync.Mutex
	last    RateLimitHeaders
	hasLast bool
}

// NewOpenAIClient creates a client. An empty baseURL means api.openai.com.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.model }
func (c *OpenAIClient) Close() error { return nil }

// LastRateLimitHeaders returns the headers of the most recent response.
func (c *OpenAIClient) LastRateLimitHeaders() (RateLimitHeaders, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateJSON sends prompt as the user message with input appended as JSON.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	content := prompt
	if input != nil {
		in, err := json.MarshalIndent(input, "", "  ")
		if err != nil {
			return nil, NewPermanentError(fmt.Errorf("openai: marshal input: %w", err))
		}
		content += "\n\n[INPUT JSON]\n" + string(in)
	}
	b, _ := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Temperature:    0.1,
		MaxTokens:      1000,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, NewPermanentError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	headers, ok := parseRateLimitHeaders(resp.Header)
	if ok {
		c.mu.Lock()
		c.last, c.hasLast = headers, true
		c.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("openai: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, &RateLimitError{Wait: headers.NextWait(), Err: err}
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusNotFound:
			return nil, NewPermanentError(err)
		case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "context_length_exceeded"):
			return nil, NewPermanentError(err)
		}
		return nil, err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrInvalidJSON
	}
	return rawText(out.Choices[0].Message.Content)
}
