package pipeline

import (
	"fmt"
	"testing"

	"framelabel/internal/tester"
	"framelabel/internal/types"
)

func filesSnapshot(n int) *types.Snapshot {
	snap := &types.Snapshot{Metadata: types.Metadata{RepositoryURL: "https://github.com/acme/x"}}
	snap.Tree = append(snap.Tree, types.FileNode{Path: "src", Type: types.NodeDir})
	for i := 0; i < n; i++ {
		snap.Tree = append(snap.Tree, types.FileNode{Path: fmt.Sprintf("src/f%d.go", i), Type: types.NodeFile})
	}
	return snap
}

func TestPreFilter(t *testing.T) {
	cfg := DefaultFilterConfig()

	cases := []struct {
		name   string
		mutate func(*types.Snapshot)
		files  int
		reason string
	}{
		{"passes", nil, 10, ""},
		{"fork", func(s *types.Snapshot) { s.IsFork = true }, 10, "Repository is a fork"},
		{"too few files, directories not counted", nil, 4, "Too few files: 4 < 5"},
		{"too many files", nil, 10001, "Too many files: 10001 > 10000"},
		{"tutorial keyword", func(s *types.Snapshot) { s.Description = "A Django STARTER kit" }, 10, "Contains tutorial keywords in description"},
		{"readme indicator", func(s *types.Snapshot) { s.Readme = "## Getting Started\nrun make" }, 10, "Tutorial indicators in README"},
		{
			"last failing check names the reason",
			func(s *types.Snapshot) { s.IsFork = true; s.Description = "demo app" },
			10,
			"Contains tutorial keywords in description",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := filesSnapshot(tc.files)
			if tc.mutate != nil {
				tc.mutate(snap)
			}
			res := PreFilter(snap, cfg)
			tester.Eq(t, res.Filtered, tc.reason != "")
			tester.Eq(t, res.Reason, tc.reason)
		})
	}
}

func TestPreFilter_Checks(t *testing.T) {
	snap := filesSnapshot(3)
	snap.IsFork = true
	snap.Description = "production service"
	res := PreFilter(snap, DefaultFilterConfig())
	tester.Eq(t, res.Checks, map[string]bool{
		CheckFork:             true,
		CheckTooSmall:         true,
		CheckTutorialKeywords: false,
	})
}

func TestPreFilter_Config(t *testing.T) {
	snap := filesSnapshot(2)
	snap.IsFork = true
	snap.Description = "example"
	cfg := FilterConfig{MinFiles: 1, AllowForks: true}
	tester.False(t, PreFilter(snap, cfg).Filtered, "empty keyword lists and no max")

	tester.True(t, PreFilter(nil, cfg).Filtered)
}
