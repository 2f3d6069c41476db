package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"framelabel/internal/tester"
	"framelabel/internal/types"
)

func sample() *types.Snapshot {
	return &types.Snapshot{
		Metadata:   types.Metadata{RepositoryURL: "https://github.com/Acme/Blog", CommitSHA: "abc123", Stage: types.StageRaw},
		Name:       "blog",
		Stars:      42,
		LastCommit: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Tree: []types.FileNode{
			{Path: "manage.py", Type: types.NodeFile, Size: 120},
			{Path: "blog", Type: types.NodeDir},
		},
		Manifests: map[string]string{"requirements.txt": "Django>=4.2\n"},
		Readme:    "# Blog",
	}
}

func TestMemoryOnly(t *testing.T) {
	c, err := New(Config{})
	tester.NoErr(t, err)
	ctx := context.Background()

	_, ok := c.Get(ctx, "https://github.com/acme/blog")
	tester.False(t, ok)
	tester.NoErr(t, c.Put(ctx, sample()))
	got, ok := c.Get(ctx, " https://github.com/ACME/blog/ ")
	tester.True(t, ok, "keys are case and slash insensitive")
	tester.Eq(t, got.Name, "blog")
	tester.Eq(t, c.Len(), 1)

	tester.Err(t, c.Put(ctx, &types.Snapshot{Name: "no-url"}))
}

func TestDiskTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first, err := New(Config{Dir: dir})
	tester.NoErr(t, err)
	tester.NoErr(t, first.Put(ctx, sample()))

	second, err := New(Config{Dir: dir})
	tester.NoErr(t, err)
	got, ok := second.Get(ctx, "https://github.com/acme/blog")
	tester.True(t, ok)
	tester.Eq(t, got.Metadata.CommitSHA, "abc123")
	tester.Eq(t, len(got.Tree), 2)
	tester.Eq(t, got.Tree[0].Path, "manage.py")
	tester.Eq(t, got.Tree[1].Type, types.NodeDir)
	tester.Eq(t, got.Manifests, sample().Manifests)
	tester.True(t, got.LastCommit.Equal(sample().LastCommit))
}

func TestGetOrLoad(t *testing.T) {
	c, err := New(Config{})
	tester.NoErr(t, err)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) (*types.Snapshot, error) {
		loads++
		return sample(), nil
	}
	for i := 0; i < 3; i++ {
		s, err := c.GetOrLoad(ctx, "https://github.com/acme/blog", load)
		tester.NoErr(t, err)
		tester.Eq(t, s.Name, "blog")
	}
	tester.Eq(t, loads, 1)

	boom := errors.New("boom")
	_, err = c.GetOrLoad(ctx, "https://github.com/acme/other", func(context.Context) (*types.Snapshot, error) { return nil, boom })
	tester.True(t, errors.Is(err, boom))
}

func TestNilCache(t *testing.T) {
	var c *Cache
	_, ok := c.Get(context.Background(), "x")
	tester.False(t, ok)
	tester.NoErr(t, c.Put(context.Background(), sample()))
	tester.Eq(t, c.Len(), 0)
}
