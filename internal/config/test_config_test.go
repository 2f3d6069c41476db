package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"framelabel/internal/tester"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_LocalDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Env, "local")
	tester.Eq(t, cfg.Addr, ":8080")
	tester.Eq(t, cfg.LLM.Provider, "none")
	tester.Eq(t, cfg.Samples.Backend, "")
	tester.Eq(t, cfg.Samples.OutputDir, "data/labeled")
	tester.Eq(t, cfg.Samples.S3.Endpoint, "minio:9000")
	tester.False(t, cfg.Samples.S3.UseSSL)
	tester.True(t, cfg.Samples.S3.CanUseS3())
	tester.Eq(t, cfg.Policy.Filter.MinFiles, 5)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"APP_ENV":               "production",
		"PORT":                  "9090",
		"GH_TOKEN":              "ghp_x",
		"FRAMELABEL_STORE":      "S3",
		"SAMPLES_S3_ENDPOINT":   "s3.example.com",
		"SAMPLES_S3_ACCESS_KEY": "ak",
		"SAMPLES_S3_SECRET_KEY": " sk ",
		"GEMINI_API_KEY":        "g-key",
		"LLM_RPS":               "0.5",
		"LLM_BURST":             "oops",
		"FRAMELABEL_RULES":      "a.toml, b.toml",
		"CORS_ALLOWED_ORIGINS":  "https://app.example.com, http://localhost:3000",
	}))
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Addr, ":9090")
	tester.Eq(t, cfg.GitHub.Token, "ghp_x")
	tester.Eq(t, cfg.Samples.Backend, "s3")
	tester.Eq(t, cfg.Samples.S3.SecretKey, "sk")
	tester.True(t, cfg.Samples.S3.UseSSL, "non-local defaults to TLS")
	tester.Eq(t, cfg.LLM.Provider, "gemini")
	tester.Eq(t, cfg.LLM.APIKey, "g-key")
	tester.Eq(t, cfg.LLM.RPS, 0.5)
	tester.Eq(t, cfg.LLM.Burst, 1)
	tester.Eq(t, cfg.RuleFiles, []string{"a.toml", "b.toml"})
	tester.Eq(t, cfg.AllowedOrigins, []string{"https://app.example.com", "http://localhost:3000"})

	prod, err := FromEnv(envOf(map[string]string{"APP_ENV": "production"}))
	tester.NoErr(t, err)
	tester.False(t, prod.Samples.S3.CanUseS3())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(`
[scoring]
dominance_threshold = 0.8
recency_days = 30

[filter]
min_files = 2
tutorial_keywords = ["course"]

[crawl]
languages = ["Go"]
adjudicate = true
`)
	tester.NoErr(t, err)
	tester.Eq(t, p.Scoring.DominanceThreshold, 0.8)
	tester.Eq(t, p.Scoring.P3P4Threshold, 15, "unset keys keep defaults")
	tester.Eq(t, p.Filter.MinFiles, 2)
	tester.Eq(t, p.Filter.MaxFiles, 10000)
	tester.Eq(t, p.Filter.TutorialKeywords, []string{"course"})
	tester.Eq(t, p.Crawl.Languages, []string{"Go"})

	sc := p.ScoringConfig()
	tester.Eq(t, sc.RecencyWindow, 30*24*time.Hour)

	pc := p.PipelineConfig()
	tester.True(t, pc.Adjudicate)
	tester.Eq(t, pc.Filter.MinFiles, 2)
	tester.Eq(t, pc.Concurrency, 4)
}

func TestParsePolicy_Errors(t *testing.T) {
	_, err := ParsePolicy("[scoring]\ndominance = 0.8\n")
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "scoring.dominance")

	_, err = ParsePolicy("[scoring]\ndominance_threshold = 1.5\n")
	tester.Err(t, err)

	_, err = ParsePolicy("[scoring]\nminimum_gap_ratio = 0\n")
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "minimum_gap_ratio must be in (0, 1)")

	_, err = ParsePolicy("[filter]\nmin_files = 10\nmax_files = 3\n")
	tester.Err(t, err)

	_, err = ParsePolicy("[scoring\n")
	tester.Err(t, err)
}

func TestLoadPolicyFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	tester.NoErr(t, os.WriteFile(path, []byte("[crawl]\nmax_repos = 7\n"), 0o644))

	cfg, err := FromEnv(envOf(map[string]string{"FRAMELABEL_POLICY": path}))
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Policy.Crawl.MaxRepos, 7)

	_, err = FromEnv(envOf(map[string]string{"FRAMELABEL_POLICY": filepath.Join(t.TempDir(), "missing.toml")}))
	tester.Err(t, err)
}
