package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framelabel/internal/config"
	"framelabel/internal/store"
)

func TestNew_MemoryStoreWithFakeModel(t *testing.T) {
	cfg, err := config.FromEnv(func(k string) string {
		return map[string]string{
			"FRAMELABEL_STORE": "memory",
			"LLM_PROVIDER":     "fake",
			"LLM_RPS":          "0",
		}[k]
	})
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.LLM)
	assert.Equal(t, "FakeLLM", a.LLM.Name())
	assert.NotNil(t, a.GitHub)
	assert.Same(t, a.Store, a.Pipeline.Store())

	st, err := a.Store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, st)
}

func TestNew_RuleFilesAndJSONL(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "extra.toml")
	require.NoError(t, os.WriteFile(rules, []byte("[[rule]]\nframework = \"hugo\"\npriority = \"P1\"\nfiles = [\"hugo.toml\"]\n"), 0o644))

	cfg, err := config.FromEnv(func(k string) string {
		return map[string]string{
			"FRAMELABEL_OUTPUT_DIR": filepath.Join(dir, "out"),
			"FRAMELABEL_RULES":      rules,
		}[k]
	})
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a.LLM)
	require.NoError(t, a.Close())

	cfg.RuleFiles = []string{filepath.Join(dir, "missing.toml")}
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.RuleFiles = nil
	cfg.Samples.Backend = "cassandra"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
