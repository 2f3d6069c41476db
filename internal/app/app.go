// Package app wires the configured collaborators into a pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"framelabel/internal/adjudicate"
	"framelabel/internal/cache/snapshot"
	"framelabel/internal/config"
	"framelabel/internal/extract"
	"framelabel/internal/github"
	"framelabel/internal/labeling"
	"framelabel/internal/llm"
	"framelabel/internal/pipeline"
	"framelabel/internal/scoring"
	"framelabel/internal/store"
)

type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Store    store.Store
	GitHub   *github.Client
	LLM      llm.Client
}

// New builds every collaborator named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	rules, err := extract.LoadRuleFiles(cfg.RuleFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	extractor, err := extract.New(rules...)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	cache, err := snapshot.New(snapshot.Config{Dir: cfg.CacheDir})
	if err != nil {
		return nil, err
	}

	client, err := llm.Open(ctx, llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		RPS:      cfg.LLM.RPS,
		Burst:    cfg.LLM.Burst,
		Fake:     adjudicate.AgreeReply,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}
	if client != nil {
		log.Printf("adjudication model: %s", client.Name())
	}

	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("failed to open sample store: %w", err)
	}
	log.Printf("sample store: %s", describeStore(cfg))

	p := pipeline.New(pipeline.Deps{
		Extractor:   extractor,
		Labeler:     labeling.New(scoring.New(cfg.Policy.ScoringConfig())),
		Adjudicator: adjudicate.New(client),
		Store:       st,
		Cache:       cache,
	}, cfg.Policy.PipelineConfig())

	return &App{
		Config:   cfg,
		Pipeline: p,
		Store:    st,
		GitHub: github.New(github.Config{
			BaseURL:  cfg.GitHub.BaseURL,
			Token:    cfg.GitHub.Token,
			Buffer:   -1,
			MaxDepth: cfg.GitHub.MaxDepth,
		}),
		LLM: client,
	}, nil
}

func storeConfig(cfg *config.Config) store.Config {
	s := cfg.Samples
	return store.Config{
		Backend:     s.Backend,
		OutputDir:   s.OutputDir,
		DatabaseURL: s.DatabaseURL,
		S3: store.S3Config{
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Bucket:    s.S3.Bucket,
			Prefix:    s.S3.Prefix,
			UseSSL:    s.S3.UseSSL,
		},
	}
}

func describeStore(cfg *config.Config) string {
	s := cfg.Samples
	switch s.Backend {
	case store.BackendS3:
		return fmt.Sprintf("s3 bucket=%s endpoint=%s", s.S3.Bucket, s.S3.Endpoint)
	case store.BackendPostgres:
		return "postgres"
	case store.BackendMemory:
		return "in-memory"
	}
	return "jsonl dir=" + s.OutputDir
}

// Close releases the store and the model client.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.LLM != nil {
		errs = append(errs, a.LLM.Close())
	}
	return errors.Join(errs...)
}
