package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framelabel/internal/labeling"
	"framelabel/internal/scoring"
	"framelabel/internal/types"
)

func record(url string, c Category) Record {
	rec := Record{
		Category: c,
		Metadata: types.Metadata{
			RepositoryURL:   url,
			CommitSHA:       "abc",
			CollectedAt:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			Stage:           types.StageRejected,
			PipelineVersion: types.PipelineVersion,
		},
		Label:           labeling.LabelUncertain,
		ConfidenceLevel: scoring.Level3,
	}
	if c == CategoryAccepted {
		rec.Metadata.Stage = types.StageAccepted
		rec.Label, rec.PrimaryFramework = "django", "django"
		rec.ConfidenceLevel = scoring.Level1
		rec.EmbeddingInput = "Repository: shop <admin> & api"
		rec.EmbeddingMetadata = &EmbeddingMetadata{TokenCount: 5, Framework: "django"}
	}
	return rec
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryAccepted, CategoryFor(labeling.Labeled{Label: "django"}, true))
	assert.Equal(t, CategoryUncertain, CategoryFor(labeling.Labeled{Label: labeling.LabelUncertain}, false))
	assert.Equal(t, CategoryUnknown, CategoryFor(labeling.Labeled{Label: labeling.LabelUnknown}, false))
	assert.Equal(t, CategoryRejected, CategoryFor(labeling.Labeled{Label: "flask", ConfidenceLevel: scoring.Level3}, false))
}

func TestNewScoringContext(t *testing.T) {
	assert.Nil(t, NewScoringContext(nil))
	scored := &scoring.Scored{
		Scores:         map[string]int{"a": 10, "b": 5},
		Ranking:        []scoring.Ranked{{Framework: "a", Score: 10}, {Framework: "b", Score: 5}},
		DominanceRatio: 10.0 / 15,
		Gap:            5,
	}
	sc := NewScoringContext(scored)
	scored.Scores["a"] = 99
	assert.Equal(t, 10, sc.FrameworkScores["a"])
	assert.Equal(t, 5, sc.ScoreGap)
	assert.Len(t, sc.CompetingFrameworks, 2)
}

func TestStats(t *testing.T) {
	var st Stats
	st.Add(CategoryAccepted, 2)
	st.Add(CategoryRejected, 1)
	st.Add(Category("bogus"), 5)
	assert.Equal(t, Stats{Accepted: 2, Rejected: 1, Total: 3}, st)
	assert.Equal(t, 2, st.Count(CategoryAccepted))
}

// exercise runs the contract every backend shares.
func exercise(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("https://github.com/acme/shop", CategoryAccepted)))
	require.NoError(t, s.Append(ctx, record("https://github.com/acme/blog", CategoryUncertain)))

	err := s.Append(ctx, record("https://github.com/ACME/shop/", CategoryRejected))
	assert.ErrorIs(t, err, ErrDuplicate, "duplicates are detected across streams")

	assert.Error(t, s.Append(ctx, record("", CategoryRejected)))
	assert.Error(t, s.Append(ctx, record("https://github.com/acme/x", Category("other"))))

	ok, err := s.Has(ctx, "https://github.com/acme/blog")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Has(ctx, "https://github.com/acme/none")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "https://github.com/acme/shop")
	require.NoError(t, err)
	assert.Equal(t, CategoryAccepted, got.Category)
	assert.Equal(t, "django", got.PrimaryFramework)
	require.NotNil(t, got.EmbeddingMetadata)
	assert.Equal(t, 5, got.EmbeddingMetadata.TokenCount)

	_, err = s.Get(ctx, "https://github.com/acme/none")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Accepted: 1, Uncertain: 1, Total: 2}, st)

	uncertain, err := s.List(ctx, CategoryUncertain)
	require.NoError(t, err)
	require.Len(t, uncertain, 1)
	assert.Equal(t, "https://github.com/acme/blog", uncertain[0].Metadata.RepositoryURL)
	rejected, err := s.List(ctx, CategoryRejected)
	require.NoError(t, err)
	assert.Empty(t, rejected)
}

// exerciseReplace moves a stored record between streams and rewrites one in place.
func exerciseReplace(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("https://github.com/acme/blog", CategoryUncertain)))
	require.NoError(t, s.Append(ctx, record("https://github.com/acme/wiki", CategoryUncertain)))

	promoted := record("https://github.com/acme/blog", CategoryAccepted)
	promoted.Adjudicated, promoted.Rationale = true, "settings.py and urls.py"
	require.NoError(t, s.Replace(ctx, promoted))

	got, err := s.Get(ctx, "https://github.com/acme/blog")
	require.NoError(t, err)
	assert.Equal(t, CategoryAccepted, got.Category)
	assert.True(t, got.Adjudicated)

	left, err := s.List(ctx, CategoryUncertain)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "https://github.com/acme/wiki", left[0].Metadata.RepositoryURL)

	wiki := record("https://github.com/acme/wiki", CategoryUncertain)
	wiki.RejectionReason = "reviewed, still mixed"
	require.NoError(t, s.Replace(ctx, wiki))
	left, err = s.List(ctx, CategoryUncertain)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "reviewed, still mixed", left[0].RejectionReason)

	assert.ErrorIs(t, s.Replace(ctx, record("https://github.com/acme/none", CategoryAccepted)), ErrNotFound)
	assert.ErrorIs(t, s.Append(ctx, record("https://github.com/acme/blog", CategoryUncertain)), ErrDuplicate)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Accepted: 1, Uncertain: 1, Total: 2}, st)
}

func TestParseCategories(t *testing.T) {
	all, err := ParseCategories("all")
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryUncertain, CategoryRejected, CategoryUnknown}, all)

	one, err := ParseCategories(" Rejected ")
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryRejected}, one)

	_, err = ParseCategories("pending")
	assert.Error(t, err)
}

func TestMemoryStore_Replace(t *testing.T) {
	exerciseReplace(t, NewMemoryStore())
}

func TestJSONLStore_Replace(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	exerciseReplace(t, s)

	reopened, err := OpenJSONL(dir)
	require.NoError(t, err)
	st, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Accepted: 1, Uncertain: 1, Total: 2}, st, "moves survive a reopen")

	tmp, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestDedup_Replace(t *testing.T) {
	exerciseReplace(t, mustDedup(t, NewMemoryStore()))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exercise(t, s)
	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "https://github.com/acme/shop", recs[0].Metadata.RepositoryURL)

	var nilStore *MemoryStore
	assert.ErrorIs(t, nilStore.Append(context.Background(), record("u", CategoryAccepted)), ErrNilStore)
}

func TestJSONLStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	exercise(t, s)

	raw, err := os.ReadFile(filepath.Join(dir, "accepted_samples.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"embedding_input":"Repository: shop <admin> & api"`, "HTML is not escaped")
	assert.Contains(t, lines[0], `"pipeline_stage":"accepted"`)
	assert.NoFileExists(t, filepath.Join(dir, "rejected_samples.jsonl"))
}

func TestJSONLStore_ReopenLoadsExistingIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, record("https://github.com/acme/shop", CategoryAccepted)))

	// A malformed line and a blank line from an interrupted run.
	f, err := os.OpenFile(filepath.Join(dir, "unknown_samples.jsonl"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n" + `{"metadata":{"repository_url":"https://github.com/acme/old"},"label":"unknown"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	again, err := OpenJSONL(dir)
	require.NoError(t, err)
	assert.ErrorIs(t, again.Append(ctx, record("https://github.com/acme/shop", CategoryRejected)), ErrDuplicate)
	assert.ErrorIs(t, again.Append(ctx, record("https://github.com/acme/old", CategoryRejected)), ErrDuplicate)

	old, err := again.Get(ctx, "https://github.com/acme/old")
	require.NoError(t, err)
	assert.Equal(t, CategoryUnknown, old.Category, "category defaults to the stream")

	st, err := again.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Accepted)
	assert.Equal(t, 2, st.Unknown, "every non-empty line is counted")
}

type countingStore struct {
	*MemoryStore
	appends, has int
}

func (c *countingStore) Append(ctx context.Context, rec Record) error {
	c.appends++
	return c.MemoryStore.Append(ctx, rec)
}

func (c *countingStore) Has(ctx context.Context, id string) (bool, error) {
	c.has++
	return c.MemoryStore.Has(ctx, id)
}

func TestDedup(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	d, err := NewDedup(inner, 2)
	require.NoError(t, err)

	require.NoError(t, d.Append(ctx, record("https://github.com/a/1", CategoryAccepted)))
	assert.ErrorIs(t, d.Append(ctx, record("https://github.com/a/1", CategoryRejected)), ErrDuplicate)
	assert.Equal(t, 1, inner.appends, "cached ids skip the backend")

	ok, err := d.Has(ctx, "https://github.com/A/1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, inner.has)

	// Evicted ids fall through to the backend, which still knows them.
	require.NoError(t, d.Append(ctx, record("https://github.com/a/2", CategoryAccepted)))
	require.NoError(t, d.Append(ctx, record("https://github.com/a/3", CategoryAccepted)))
	assert.ErrorIs(t, d.Append(ctx, record("https://github.com/a/1", CategoryAccepted)), ErrDuplicate)
	assert.Equal(t, 4, inner.appends)

	exercise(t, mustDedup(t, NewMemoryStore()))

	_, err = NewDedup(nil, 1)
	assert.ErrorIs(t, err, ErrNilStore)
}

func mustDedup(t *testing.T, s Store) *Dedup {
	d, err := NewDedup(s, 0)
	require.NoError(t, err)
	return d
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{OutputDir: t.TempDir()})
	require.NoError(t, err)
	d, ok := s.(*Dedup)
	require.True(t, ok)
	_, ok = d.Store.(*JSONLStore)
	assert.True(t, ok)

	s, err = Open(ctx, Config{Backend: "memory"})
	require.NoError(t, err)
	exercise(t, s)

	_, err = Open(ctx, Config{Backend: "postgres"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Backend: "s3", S3: S3Config{Endpoint: "localhost:9000"}})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Backend: "tape"})
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	a := objectKey("samples/", CategoryAccepted, "https://github.com/acme/shop")
	b := objectKey("samples/", CategoryAccepted, "HTTPS://github.com/acme/shop/")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "samples/accepted/"))
	assert.True(t, strings.HasSuffix(a, ".json"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "samples/accepted/"), ".json"), 32)

	assert.Equal(t, "", normalizePrefix(" / "))
	assert.Equal(t, "x/y/", normalizePrefix("/x/y/"))
}
