package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"framelabel/internal/github"
	"framelabel/internal/store"
	"framelabel/internal/types"
)

// Source finds and inspects repositories. *github.Client implements it.
type Source interface {
	Search(ctx context.Context, q github.SearchQuery) ([]github.SearchResult, error)
	Inspect(ctx context.Context, r github.SearchResult) (*types.Snapshot, error)
}

// CrawlStats summarises one Crawl call.
type CrawlStats struct {
	Searched   int `json:"searched"`
	Skipped    int `json:"skipped"`
	Filtered   int `json:"filtered"`
	Accepted   int `json:"accepted"`
	Uncertain  int `json:"uncertain"`
	Unknown    int `json:"unknown"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

func (s *CrawlStats) record(out Outcome) {
	switch {
	case out.Filter.Filtered:
		s.Filtered++
	case out.Duplicate:
		s.Duplicates++
	}
	if out.Duplicate {
		return
	}
	switch out.Category() {
	case store.CategoryAccepted:
		s.Accepted++
	case store.CategoryUncertain:
		s.Uncertain++
	case store.CategoryUnknown:
		s.Unknown++
	case store.CategoryRejected:
		s.Rejected++
	}
}

// Crawl searches each language and processes the results with bounded
// concurrency. Per-repository failures are logged and counted; only context
// cancellation stops the crawl. onOutcome, when set, sees every outcome.
func (p *Pipeline) Crawl(ctx context.Context, src Source, languages []string, onOutcome func(Outcome)) (CrawlStats, error) {
	var (
		mu    sync.Mutex
		stats CrawlStats
	)
	for _, lang := range languages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		p.logger.Printf("crawling %s repositories (min stars %d, max %d)", lang, p.cfg.MinStars, p.cfg.MaxRepos)
		results, err := src.Search(ctx, github.SearchQuery{
			Language:   lang,
			MinStars:   p.cfg.MinStars,
			MaxResults: p.cfg.MaxRepos,
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			p.logger.Printf("search %s failed: %v", lang, err)
			stats.Errors++
			if len(results) == 0 {
				continue
			}
		}
		stats.Searched += len(results)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Concurrency)
		for _, r := range results {
			g.Go(func() error {
				out, skipped, err := p.crawlOne(gctx, src, r)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					if gctx.Err() != nil {
						return gctx.Err()
					}
					p.logger.Printf("error processing %s: %v", r.FullName, err)
					stats.Errors++
				case skipped:
					stats.Skipped++
				default:
					stats.record(out)
					if onOutcome != nil {
						onOutcome(out)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (p *Pipeline) crawlOne(ctx context.Context, src Source, r github.SearchResult) (Outcome, bool, error) {
	if p.cfg.SkipStored && p.deps.Store != nil {
		ok, err := p.deps.Store.Has(ctx, r.URL())
		if err != nil {
			return Outcome{}, false, fmt.Errorf("check store: %w", err)
		}
		if ok {
			return Outcome{}, true, nil
		}
	}
	snap, err := p.deps.Cache.GetOrLoad(ctx, r.URL(), func(ctx context.Context) (*types.Snapshot, error) {
		return src.Inspect(ctx, r)
	})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("inspect: %w", err)
	}
	out, err := p.Process(ctx, snap)
	return out, false, err
}
