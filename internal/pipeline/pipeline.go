// Package pipeline runs repositories through pre-filtering, signal
// extraction, scoring, labeling, optional adjudication and storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"framelabel/internal/adjudicate"
	"framelabel/internal/cache/snapshot"
	"framelabel/internal/extract"
	"framelabel/internal/labeling"
	"framelabel/internal/scoring"
	"framelabel/internal/signal"
	"framelabel/internal/store"
	"framelabel/internal/types"
)

type Config struct {
	Filter FilterConfig
	// Adjudicate sends labels that need review to the adjudicator.
	Adjudicate bool
	// Concurrency bounds the repositories processed at once by Crawl.
	Concurrency int
	MinStars    int
	MaxRepos    int
	// SkipStored skips search results already present in the store.
	SkipStored bool
	Now        func() time.Time
	Logger     *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Filter:      DefaultFilterConfig(),
		Concurrency: 4,
		MinStars:    10,
		MaxRepos:    100,
		SkipStored:  true,
	}
}

// Deps are the collaborators. Only Extractor and Labeler are required;
// nil Adjudicator, Store and Cache disable those steps.
type Deps struct {
	Extractor   *extract.Extractor
	Labeler     *labeling.Labeler
	Adjudicator *adjudicate.Adjudicator
	Store       store.Store
	Cache       *snapshot.Cache
}

type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *log.Logger
}

func New(deps Deps, cfg Config) *Pipeline {
	if deps.Extractor == nil {
		deps.Extractor = extract.Default()
	}
	if deps.Labeler == nil {
		deps.Labeler = labeling.New(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logger}
}

func (p *Pipeline) Config() Config             { return p.cfg }
func (p *Pipeline) Store() store.Store         { return p.deps.Store }
func (p *Pipeline) Labeler() *labeling.Labeler { return p.deps.Labeler }

// Outcome reports every stage for one repository.
type Outcome struct {
	Repository        string            `json:"repository_url"`
	Stage             string            `json:"pipeline_stage"`
	Filter            FilterResult      `json:"pre_filter"`
	Signals           signal.Set        `json:"signals,omitempty"`
	Scored            *scoring.Scored   `json:"scoring,omitempty"`
	Labeled           *labeling.Labeled `json:"labeled,omitempty"`
	Verdict           *labeling.Verdict `json:"verdict,omitempty"`
	AdjudicationError string            `json:"adjudication_error,omitempty"`
	Included          bool              `json:"included"`
	Record            *store.Record     `json:"record,omitempty"`
	Stored            bool              `json:"stored"`
	Duplicate         bool              `json:"duplicate,omitempty"`
}

// Category is the stream the outcome belongs to; filtered repositories have none.
func (o Outcome) Category() store.Category {
	if o.Record == nil {
		return ""
	}
	return o.Record.Category
}

// Classify runs every stage except storage.
func (p *Pipeline) Classify(ctx context.Context, snap *types.Snapshot) (Outcome, error) {
	if snap == nil {
		return Outcome{}, errors.New("pipeline: nil snapshot")
	}
	out := Outcome{Repository: snap.Metadata.RepositoryURL, Stage: types.StagePreFiltered}

	out.Filter = PreFilter(snap, p.cfg.Filter)
	if out.Filter.Filtered {
		p.logger.Printf("[FILTERED] %s: %s", displayName(snap), out.Filter.Reason)
		return out, nil
	}

	out.Signals = p.deps.Extractor.Extract(snap)
	out.Stage = types.StageSignalExtracted

	out.Scored = p.deps.Labeler.Scorer().Score(out.Signals, p.cfg.Now())
	out.Stage = types.StageScored

	labeled := p.deps.Labeler.Label(out.Scored)
	out.Stage = types.StageLabeled

	if p.cfg.Adjudicate && labeled.RequiresAdjudication {
		labeled = p.adjudicate(ctx, &out, labeled, snap)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	out.Labeled = &labeled

	out.Included = labeling.IncludeInTraining(labeled)
	rec := BuildRecord(snap, labeled, out.Included)
	out.Record = &rec
	out.Stage = rec.Metadata.Stage
	return out, nil
}

// adjudicate applies the verdict, or keeps the automatic label when no
// verdict is available.
func (p *Pipeline) adjudicate(ctx context.Context, out *Outcome, l labeling.Labeled, snap *types.Snapshot) labeling.Labeled {
	v, err := p.deps.Adjudicator.Adjudicate(ctx, l, snap)
	if err != nil {
		if !errors.Is(err, adjudicate.ErrNotConfigured) {
			p.logger.Printf("adjudication failed for %s, keeping automatic label: %v", displayName(snap), err)
		}
		fb := adjudicate.Fallback(l)
		out.Verdict = &fb
		out.AdjudicationError = err.Error()
		return l
	}
	out.Verdict = &v
	return labeling.ApplyVerdict(l, v)
}

// Process classifies snap and appends the record to the store. A repository
// already stored is reported as a duplicate, not an error.
func (p *Pipeline) Process(ctx context.Context, snap *types.Snapshot) (Outcome, error) {
	out, err := p.Classify(ctx, snap)
	if err != nil || out.Record == nil || p.deps.Store == nil {
		return out, err
	}
	switch err := p.deps.Store.Append(ctx, *out.Record); {
	case err == nil:
		out.Stored = true
	case errors.Is(err, store.ErrDuplicate):
		out.Duplicate = true
		p.logger.Printf("[SKIP] duplicate repository: %s", displayName(snap))
	default:
		return out, fmt.Errorf("store %s: %w", out.Repository, err)
	}
	return out, nil
}

func displayName(snap *types.Snapshot) string {
	if snap == nil {
		return ""
	}
	if snap.Metadata.RepositoryURL != "" {
		return snap.Metadata.RepositoryURL
	}
	return snap.Name
}
