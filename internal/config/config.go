// Package config reads runtime settings from the environment (.env is loaded
// first) and the optional TOML policy file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Addr string
	// AllowedOrigins limits CORS; empty admits any origin.
	AllowedOrigins []string

	GitHub  GitHubConfig
	Samples SamplesConfig
	LLM     LLMConfig

	// RuleFiles are extra TOML rule packs appended to the built-in rules.
	RuleFiles  []string
	CacheDir   string
	PolicyPath string
	Policy     Policy
}

type GitHubConfig struct {
	Token    string
	BaseURL  string
	MaxDepth int
}

// SamplesConfig selects where labeled records are written.
type SamplesConfig struct {
	Backend     string
	OutputDir   string
	DatabaseURL string
	S3          S3Config
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is set to reach a bucket.
func (c S3Config) CanUseS3() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type LLMConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	RPS      float64
	Burst    int
}

// Load reads .env, the process environment and the policy file named by
// FRAMELABEL_POLICY. Env "local" fills in the docker-compose endpoints.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv without touching .env files.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	env := firstNonEmpty(get("APP_ENV"), "local")
	local := strings.EqualFold(env, "local")

	cfg := &Config{
		Env:  env,
		Addr: normalizeAddr(firstNonEmpty(get("PORT"), ":8080")),
		AllowedOrigins: strings.FieldsFunc(get("CORS_ALLOWED_ORIGINS"), func(r rune) bool {
			return r == ',' || r == ' '
		}),
		GitHub: GitHubConfig{
			Token:    firstNonEmpty(get("GITHUB_TOKEN"), get("GH_TOKEN")),
			BaseURL:  get("GITHUB_API_URL"),
			MaxDepth: atoiOr(get("GITHUB_TREE_DEPTH"), 0),
		},
		Samples: loadSamplesConfig(get, local),
		LLM: LLMConfig{
			Provider: strings.ToLower(firstNonEmpty(get("LLM_PROVIDER"), defaultProvider(get))),
			Model:    get("LLM_MODEL"),
			BaseURL:  get("LLM_BASE_URL"),
			APIKey:   firstNonEmpty(get("LLM_API_KEY"), get("GEMINI_API_KEY"), get("OPENAI_API_KEY")),
			RPS:      atofOr(get("LLM_RPS"), 1),
			Burst:    atoiOr(get("LLM_BURST"), 1),
		},
		RuleFiles:  splitList(get("FRAMELABEL_RULES")),
		CacheDir:   get("FRAMELABEL_CACHE_DIR"),
		PolicyPath: get("FRAMELABEL_POLICY"),
	}

	policy := DefaultPolicy()
	if cfg.PolicyPath != "" {
		p, err := LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		policy = p
	}
	cfg.Policy = policy
	return cfg, nil
}

func loadSamplesConfig(get func(string) string, local bool) SamplesConfig {
	s := SamplesConfig{
		Backend:     strings.ToLower(get("FRAMELABEL_STORE")),
		OutputDir:   firstNonEmpty(get("FRAMELABEL_OUTPUT_DIR"), "data/labeled"),
		DatabaseURL: firstNonEmpty(get("DATABASE_URL"), get("SAMPLES_PG_DSN")),
		S3: S3Config{
			Endpoint:  get("SAMPLES_S3_ENDPOINT"),
			Region:    firstNonEmpty(get("SAMPLES_S3_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(get("SAMPLES_S3_ACCESS_KEY"), get("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(get("SAMPLES_S3_SECRET_KEY"), get("MINIO_ROOT_PASSWORD")),
			Bucket:    firstNonEmpty(get("SAMPLES_S3_BUCKET"), "framelabel-samples"),
			Prefix:    get("SAMPLES_S3_PREFIX"),
			UseSSL:    parseBoolOr(get("SAMPLES_S3_USE_SSL"), true),
		},
	}
	if local {
		s.S3.Endpoint = firstNonEmpty(s.S3.Endpoint, get("SAMPLES_MINIO_ENDPOINT"), "minio:9000")
		s.S3.AccessKey = firstNonEmpty(s.S3.AccessKey, "framelabel")
		s.S3.SecretKey = firstNonEmpty(s.S3.SecretKey, "framelabel123")
		s.S3.UseSSL = parseBoolOr(get("SAMPLES_S3_USE_SSL"), false)
	}
	return s
}

// defaultProvider picks a model backend from whichever API key is present.
func defaultProvider(get func(string) string) string {
	switch {
	case get("GEMINI_API_KEY") != "":
		return "gemini"
	case get("OPENAI_API_KEY") != "":
		return "openai"
	}
	return "none"
}

func normalizeAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == os.PathListSeparator }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoiOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func atofOr(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func parseBoolOr(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
