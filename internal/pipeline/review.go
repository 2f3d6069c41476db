package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"framelabel/internal/adjudicate"
	"framelabel/internal/labeling"
	"framelabel/internal/scoring"
	"framelabel/internal/store"
	"framelabel/internal/types"
)

var errNoStore = errors.New("pipeline: no store configured")

// ReviewOptions selects stored records for a second opinion.
type ReviewOptions struct {
	// Categories defaults to every non-accepted stream.
	Categories []store.Category
	// Promote writes records whose verdict moves them to another stream.
	Promote bool
	// Limit caps the records reviewed; 0 reviews all of them.
	Limit int
}

// Review is one stored record with the adjudicator's answer.
type Review struct {
	Record   store.Record      `json:"record"`
	Verdict  *labeling.Verdict `json:"verdict,omitempty"`
	Error    string            `json:"error,omitempty"`
	Updated  *store.Record     `json:"updated,omitempty"`
	Promoted bool              `json:"promoted"`
}

// Changed reports whether the verdict moves the record to another stream.
func (r Review) Changed() bool {
	return r.Updated != nil && r.Updated.Category != r.Record.Category
}

type ReviewSummary struct {
	Reviewed int `json:"reviewed"`
	Failed   int `json:"failed"`
	Changed  int `json:"changed"`
	Promoted int `json:"promoted"`
	// Frameworks counts verdicts by primary framework.
	Frameworks map[string]int `json:"frameworks"`
}

func Summarize(reviews []Review) ReviewSummary {
	s := ReviewSummary{Frameworks: map[string]int{}}
	for _, r := range reviews {
		s.Reviewed++
		if r.Verdict == nil {
			s.Failed++
			continue
		}
		fw := r.Verdict.PrimaryFramework
		if fw == "" {
			fw = labeling.LabelUnknown
		}
		s.Frameworks[fw]++
		if r.Changed() {
			s.Changed++
		}
		if r.Promoted {
			s.Promoted++
		}
	}
	return s
}

// Review asks the adjudicator about stored records that did not make the
// accepted stream. A failed verdict is reported on the Review and leaves the
// record alone; store errors stop the run.
func (p *Pipeline) Review(ctx context.Context, opts ReviewOptions) ([]Review, error) {
	if p.deps.Store == nil {
		return nil, errNoStore
	}
	if !p.deps.Adjudicator.Enabled() {
		return nil, adjudicate.ErrNotConfigured
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats, _ = store.ParseCategories("all")
	}

	var out []Review
	for _, c := range cats {
		recs, err := p.deps.Store.List(ctx, c)
		if err != nil {
			return out, fmt.Errorf("list %s: %w", c, err)
		}
		for _, rec := range recs {
			if opts.Limit > 0 && len(out) == opts.Limit {
				return out, nil
			}
			if err := ctx.Err(); err != nil {
				return out, err
			}
			r, err := p.review(ctx, rec, opts.Promote)
			out = append(out, r)
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (p *Pipeline) review(ctx context.Context, rec store.Record, promote bool) (Review, error) {
	r := Review{Record: rec}
	url := rec.Metadata.RepositoryURL
	l := labeledFromRecord(rec)

	snap, _ := p.deps.Cache.Get(ctx, url)
	req := adjudicate.BuildRequest(l, snap)
	if snap == nil {
		req.Repository = adjudicate.Repository{URL: url, Name: url[strings.LastIndex(url, "/")+1:]}
	}

	v, err := p.deps.Adjudicator.AdjudicateRequest(ctx, req)
	if err != nil {
		p.logger.Printf("[REVIEW] %s: adjudication failed, keeping %s: %v", url, rec.Category, err)
		r.Error = err.Error()
		return r, nil
	}
	r.Verdict = &v

	l = labeling.ApplyVerdict(l, v)
	updated := reviewedRecord(rec, l, labeling.IncludeInTraining(l), snap)
	r.Updated = &updated
	p.logger.Printf("[REVIEW] %s: %s -> %s (%s)", url, rec.Category, updated.Category, updated.Label)

	if promote && r.Changed() {
		if err := p.deps.Store.Replace(ctx, updated); err != nil {
			return r, fmt.Errorf("promote %s: %w", url, err)
		}
		r.Promoted = true
	}
	return r, nil
}

// labeledFromRecord restores the labeled form of a stored record. Signals
// are not stored, so Scored only carries the figures.
func labeledFromRecord(rec store.Record) labeling.Labeled {
	l := labeling.Labeled{
		Label:            rec.Label,
		PrimaryFramework: rec.PrimaryFramework,
		ConfidenceLevel:  rec.ConfidenceLevel,
		RejectionReason:  rec.RejectionReason,
		Adjudicated:      rec.Adjudicated,
		Rationale:        rec.Rationale,
	}
	if sc := rec.ScoringContext; sc != nil {
		l.Scored = &scoring.Scored{
			Scores:         sc.FrameworkScores,
			Ranking:        sc.CompetingFrameworks,
			DominanceRatio: sc.DominanceRatio,
			Gap:            sc.ScoreGap,
		}
	}
	return l
}

// reviewedRecord applies the adjudicated label to rec. The embedding input
// needs the snapshot; without one a promoted record is stored with an empty
// input until the repository is classified again.
func reviewedRecord(rec store.Record, l labeling.Labeled, included bool, snap *types.Snapshot) store.Record {
	out := rec
	out.Category = store.CategoryFor(l, included)
	out.Label = l.Label
	out.PrimaryFramework = l.PrimaryFramework
	out.ConfidenceLevel = l.ConfidenceLevel
	out.Adjudicated = l.Adjudicated
	out.Rationale = l.Rationale

	if out.Category == store.CategoryAccepted {
		out.Metadata = out.Metadata.WithStage(types.StageAccepted)
		out.RejectionReason = ""
		out.ScoringContext = nil
		out.EmbeddingInput = EmbeddingInput(snap)
		out.EmbeddingMetadata = &store.EmbeddingMetadata{
			TokenCount: len(strings.Fields(out.EmbeddingInput)),
			Framework:  l.PrimaryFramework,
		}
		return out
	}

	out.Metadata = out.Metadata.WithStage(types.StageRejected)
	if out.Category != rec.Category || out.RejectionReason == "" {
		out.RejectionReason = l.RejectionReason
		if out.RejectionReason == "" {
			out.RejectionReason = "Label: " + l.Label
		}
	}
	return out
}
