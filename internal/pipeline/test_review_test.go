package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framelabel/internal/adjudicate"
	"framelabel/internal/cache/snapshot"
	"framelabel/internal/labeling"
	"framelabel/internal/llm"
	"framelabel/internal/scoring"
	"framelabel/internal/store"
)

// storeContested runs the contested repository through Process so the store
// holds an uncertain record with its scoring context.
func storeContested(t *testing.T, mem *store.MemoryStore, url string) store.Record {
	t.Helper()
	p, _ := newPipeline(t, Deps{Extractor: contestedExtractor(t), Store: mem})
	out, err := p.Process(context.Background(), contestedSnapshot(url))
	require.NoError(t, err)
	require.True(t, out.Stored)
	require.Equal(t, store.CategoryUncertain, out.Category())
	return *out.Record
}

func TestReview_PromotesAdjudicatedRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	stored := storeContested(t, mem, "https://github.com/acme/mixed")

	fake := llm.NewFakeClient(nil).Enqueue(`{"primary_framework":"beta","confidence":"high","rationale":"lockfile"}`, nil)
	p, logs := newPipeline(t, Deps{Extractor: contestedExtractor(t), Adjudicator: adjudicate.New(fake), Store: mem})

	reviews, err := p.Review(ctx, ReviewOptions{Promote: true})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 1, fake.Calls())

	r := reviews[0]
	require.NotNil(t, r.Verdict)
	assert.Equal(t, "beta", r.Verdict.PrimaryFramework)
	assert.True(t, r.Changed())
	assert.True(t, r.Promoted)
	assert.Equal(t, stored.Category, r.Record.Category)

	got, err := mem.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.Equal(t, store.CategoryAccepted, got.Category)
	assert.Equal(t, "beta", got.Label)
	assert.Equal(t, scoring.Level1, got.ConfidenceLevel)
	assert.True(t, got.Adjudicated)
	assert.Equal(t, "lockfile", got.Rationale)
	assert.Empty(t, got.RejectionReason)
	assert.Nil(t, got.ScoringContext)
	require.NotNil(t, got.EmbeddingMetadata)
	assert.Equal(t, "beta", got.EmbeddingMetadata.Framework)

	st, err := mem.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Accepted: 1, Total: 1}, st)
	assert.Contains(t, logs.String(), "[REVIEW] https://github.com/acme/mixed: uncertain -> accepted (beta)")

	assert.Equal(t, ReviewSummary{Reviewed: 1, Changed: 1, Promoted: 1, Frameworks: map[string]int{"beta": 1}}, Summarize(reviews))
}

func TestReview_RequestCarriesStoredScores(t *testing.T) {
	mem := store.NewMemoryStore()
	stored := storeContested(t, mem, "https://github.com/acme/mixed")

	var sent adjudicate.Request
	fake := llm.NewFakeClient(func(_ context.Context, _ string, input any) (json.RawMessage, error) {
		sent = input.(adjudicate.Request)
		return json.RawMessage(`{"primary_framework":"beta","confidence":"medium","rationale":"ok"}`), nil
	})
	p, _ := newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: mem})

	reviews, err := p.Review(context.Background(), ReviewOptions{Categories: []store.Category{store.CategoryUncertain}})
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal(t, "https://github.com/acme/mixed", sent.Repository.URL)
	assert.Equal(t, "mixed", sent.Repository.Name)
	assert.Empty(t, sent.FileTree, "no cached snapshot")
	assert.Equal(t, stored.ScoringContext.FrameworkScores, sent.Scores)
	assert.Equal(t, labeling.LabelUncertain, sent.Current.Label)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, sent.Current.Competing)

	// Without Promote the store is untouched.
	assert.True(t, reviews[0].Changed())
	assert.False(t, reviews[0].Promoted)
	got, err := mem.Get(context.Background(), stored.ID())
	require.NoError(t, err)
	assert.Equal(t, store.CategoryUncertain, got.Category)
}

func TestReview_UsesCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	url := "https://github.com/acme/mixed"
	storeContested(t, mem, url)

	cache, err := snapshot.New(snapshot.Config{})
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, contestedSnapshot(url)))

	var sent adjudicate.Request
	fake := llm.NewFakeClient(func(_ context.Context, _ string, input any) (json.RawMessage, error) {
		sent = input.(adjudicate.Request)
		return json.RawMessage(`{"primary_framework":"alpha","confidence":"medium","rationale":"config"}`), nil
	})
	p, _ := newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: mem, Cache: cache})

	reviews, err := p.Review(ctx, ReviewOptions{Promote: true})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Contains(t, sent.FileTree, "file: alpha.cfg")

	got, err := mem.Get(ctx, reviews[0].Record.ID())
	require.NoError(t, err)
	assert.Equal(t, store.CategoryAccepted, got.Category)
	assert.Contains(t, got.EmbeddingInput, "Repository: mixed")
}

func TestReview_FailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	stored := storeContested(t, mem, "https://github.com/acme/mixed")

	fake := llm.NewFakeClient(nil).Enqueue("", errors.New("model offline"))
	p, logs := newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: mem})

	reviews, err := p.Review(ctx, ReviewOptions{Promote: true})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Nil(t, reviews[0].Verdict)
	assert.Contains(t, reviews[0].Error, "model offline")
	assert.False(t, reviews[0].Promoted)
	assert.Contains(t, logs.String(), "adjudication failed, keeping uncertain")

	got, err := mem.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Equal(t, ReviewSummary{Reviewed: 1, Failed: 1, Frameworks: map[string]int{}}, Summarize(reviews))
}

func TestReview_LowConfidenceMovesToRejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	stored := storeContested(t, mem, "https://github.com/acme/mixed")

	fake := llm.NewFakeClient(nil).Enqueue(`{"primary_framework":"alpha","confidence":"low","rationale":"weak"}`, nil)
	p, _ := newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: mem})

	reviews, err := p.Review(ctx, ReviewOptions{Promote: true})
	require.NoError(t, err)
	require.True(t, reviews[0].Promoted)

	got, err := mem.Get(ctx, stored.ID())
	require.NoError(t, err)
	assert.Equal(t, store.CategoryRejected, got.Category)
	assert.Equal(t, scoring.Level3, got.ConfidenceLevel)
	assert.Equal(t, "Label: alpha", got.RejectionReason)
	assert.NotNil(t, got.ScoringContext)
}

func TestReview_SkipsLevelFourAndHonoursLimit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	p, _ := newPipeline(t, Deps{Store: mem})
	for _, name := range []string{"notes", "docs", "misc"} {
		out, err := p.Process(ctx, plainSnapshot("https://github.com/acme/"+name))
		require.NoError(t, err)
		require.Equal(t, store.CategoryUnknown, out.Category())
	}

	fake := llm.NewFakeClient(adjudicate.AgreeReply)
	p, _ = newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: mem})
	reviews, err := p.Review(ctx, ReviewOptions{Categories: []store.Category{store.CategoryUnknown}, Promote: true, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	for _, r := range reviews {
		assert.False(t, r.Changed(), "level 4 outcomes are final")
		assert.False(t, r.Promoted)
	}

	st, err := mem.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Unknown)
}

func TestReview_NeedsStoreAndModel(t *testing.T) {
	p, _ := newPipeline(t, Deps{Adjudicator: adjudicate.New(llm.NewFakeClient(nil))})
	_, err := p.Review(context.Background(), ReviewOptions{})
	assert.Error(t, err)

	p, _ = newPipeline(t, Deps{Store: store.NewMemoryStore()})
	_, err = p.Review(context.Background(), ReviewOptions{})
	assert.ErrorIs(t, err, adjudicate.ErrNotConfigured)
}

type replaceFailStore struct{ *store.MemoryStore }

func (replaceFailStore) Replace(context.Context, store.Record) error { return errors.New("disk full") }

func TestReview_StoreErrorsStopTheRun(t *testing.T) {
	mem := store.NewMemoryStore()
	storeContested(t, mem, "https://github.com/acme/mixed")
	storeContested(t, mem, "https://github.com/acme/other")

	fake := llm.NewFakeClient(adjudicate.AgreeReply).
		Enqueue(`{"primary_framework":"beta","confidence":"high","rationale":"x"}`, nil)
	p, _ := newPipeline(t, Deps{Adjudicator: adjudicate.New(fake), Store: replaceFailStore{mem}})
	reviews, err := p.Review(context.Background(), ReviewOptions{Promote: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, reviews, 1)
	assert.Equal(t, 1, fake.Calls())
}
