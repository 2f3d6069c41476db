package store

import (
	"context"
	"fmt"
	"strings"
)

// Backends accepted by Open.
const (
	BackendJSONL    = "jsonl"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

type Config struct {
	Backend     string
	OutputDir   string
	DatabaseURL string
	S3          S3Config
	DedupSize   int
}

// Open builds the configured backend behind a Dedup cache. An empty backend
// selects jsonl.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		inner Store
		err   error
	)
	switch b := strings.ToLower(strings.TrimSpace(cfg.Backend)); b {
	case "", BackendJSONL:
		inner, err = OpenJSONL(cfg.OutputDir)
	case BackendMemory:
		inner = NewMemoryStore()
	case BackendPostgres:
		inner, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case BackendS3:
		inner, err = NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	d, err := NewDedup(inner, cfg.DedupSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return d, nil
}
