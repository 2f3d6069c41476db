package extract

import (
	"testing"
	"time"

	"framelabel/internal/signal"
	"framelabel/internal/tester"
	"framelabel/internal/types"
)

var lastCommit = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func snapshot(readme string, manifests map[string]string, paths ...string) *types.Snapshot {
	snap := &types.Snapshot{
		Metadata:   types.Metadata{RepositoryURL: "https://github.com/acme/demo"},
		LastCommit: lastCommit,
		Manifests:  manifests,
		Readme:     readme,
	}
	for _, p := range paths {
		snap.Tree = append(snap.Tree, types.FileNode{Path: p, Type: types.NodeFile})
	}
	return snap
}

func byPriority(sigs []signal.Signal) map[signal.Priority]signal.Signal {
	out := map[signal.Priority]signal.Signal{}
	for _, s := range sigs {
		out[s.Priority()] = s
	}
	return out
}

func TestExtractDjangoProject(t *testing.T) {
	snap := snapshot("# Blog\nA small Django blog.",
		map[string]string{"requirements.txt": "Django>=4.2\ndjangorestframework==3.14\n"},
		"manage.py", "requirements.txt", "README.md",
		"mysite/settings.py", "mysite/urls.py", "mysite/wsgi.py",
		"blog/admin.py", "blog/models.py", "blog/migrations/0001_initial.py",
	)
	managed := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	snap.Tree[0].ModTime = managed

	set := Default().Extract(snap)
	tester.Eq(t, set.Frameworks(), []string{"django"})
	tester.Eq(t, len(set["django"]), 7)

	got := byPriority(set["django"])
	p1 := got[signal.P1]
	tester.Eq(t, p1.FilePath(), "manage.py")
	tester.Eq(t, p1.Evidence(), "manage.py found")
	tester.Eq(t, p1.Source(), signal.SourceEntryFile)
	tester.True(t, p1.IsStrong())
	mod, ok := p1.LastModified()
	tester.True(t, ok)
	tester.Eq(t, mod, managed)

	tester.Eq(t, got[signal.P2].FilePath(), "mysite/settings.py")
	tester.Eq(t, got[signal.P3].FilePath(), "requirements.txt")
	tester.Eq(t, got[signal.P5].Evidence(), "djangorestframework declared in requirements.txt")
	tester.Eq(t, got[signal.P7].Evidence(), "README mentions django")
	tester.Eq(t, got[signal.P7].FilePath(), "README.md")
	tester.True(t, got[signal.P7].IsWeak())

	fallback, ok := got[signal.P2].LastModified()
	tester.True(t, ok)
	tester.Eq(t, fallback, lastCommit, "nodes without a time use the last commit")
}

func TestExtractNextAppRouter(t *testing.T) {
	snap := snapshot("",
		map[string]string{"package.json": `{"dependencies": {"next": "14.0.0", "react": "18.2.0"}}`},
		"package.json", "next.config.js", "app/layout.tsx", "app/page.tsx", "public/favicon.ico",
	)
	set := Default().Extract(snap)
	tester.Eq(t, set.Frameworks(), []string{"nextjs-app", "nextjs-pages"})

	app := byPriority(set["nextjs-app"])
	tester.Eq(t, len(set["nextjs-app"]), 4)
	tester.Eq(t, app[signal.P1].Evidence(), "app/layout.tsx found (App Router)")
	tester.Eq(t, app[signal.P2].Evidence(), "app/ directory found (App Router)")
	tester.Eq(t, app[signal.P2].Source(), signal.SourceDirectory)

	pages := byPriority(set["nextjs-pages"])
	_, hasEntry := pages[signal.P1]
	tester.False(t, hasEntry)
	tester.Eq(t, len(set["nextjs-pages"]), 2)
}

func TestExtractRequiresGate(t *testing.T) {
	bare := snapshot("", map[string]string{"requirements.txt": "requests\n"}, "main.py", "requirements.txt")
	tester.Eq(t, Default().Extract(bare).Len(), 0, "main.py alone is not FastAPI")

	gated := snapshot("", map[string]string{"requirements.txt": "fastapi\nuvicorn\n"}, "main.py", "requirements.txt")
	set := Default().Extract(gated)
	tester.Eq(t, set.Frameworks(), []string{"fastapi"})
	tester.Eq(t, byPriority(set["fastapi"])[signal.P1].FilePath(), "main.py")
}

func TestExtractExcludeAndDepth(t *testing.T) {
	vendored := snapshot("", nil, "node_modules/nuxt/nuxt.config.ts")
	tester.Eq(t, len(Default().Extract(vendored)["nuxt"]), 0)

	snap := snapshot("", nil, "node_modules/nuxt/nuxt.config.ts", "docs/site/nuxt.config.ts")
	sigs := Default().Extract(snap)["nuxt"]
	tester.Eq(t, len(sigs), 1)
	tester.Eq(t, sigs[0].FilePath(), "docs/site/nuxt.config.ts")

	shallow := snapshot("", nil, "a/b/c/manage.py", "z/manage.py")
	tester.Eq(t, Default().Extract(shallow)["django"][0].FilePath(), "z/manage.py", "shallowest match wins")
}

func TestExtractReadmeWordBoundary(t *testing.T) {
	miss := snapshot("An expression parser for regular languages.", nil, "README.md")
	tester.Eq(t, Default().Extract(miss).Len(), 0)

	hit := snapshot("Built with Express.", nil, "README.md")
	sigs := Default().Extract(hit)["express"]
	tester.Eq(t, len(sigs), 1)
	tester.Eq(t, sigs[0].Priority(), signal.P7)
}

func TestExtractUsesExplicitDirs(t *testing.T) {
	snap := snapshot("", map[string]string{"package.json": `{"dependencies": {"@angular/core": "17.0.0"}}`}, "package.json")
	snap.Tree = append(snap.Tree, types.FileNode{Path: "src", Type: types.NodeDir}, types.FileNode{Path: "src/app", Type: types.NodeDir})
	got := byPriority(Default().Extract(snap)["angular"])
	tester.Eq(t, got[signal.P2].FilePath(), "src/app")
	tester.Eq(t, got[signal.P3].FilePath(), "package.json")
}

func TestExtractBadManifestIsSkipped(t *testing.T) {
	snap := snapshot("", map[string]string{
		"package.json":     `{"dependencies": `,
		"requirements.txt": "flask\n",
	}, "package.json", "requirements.txt", "app.py")
	set := Default().Extract(snap)
	tester.Eq(t, set.Frameworks(), []string{"flask"})
}

func TestCustomRules(t *testing.T) {
	e, err := New(Rule{Framework: "svelte", Priority: signal.P1, Files: []string{"svelte.config.js"}})
	tester.NoErr(t, err)
	tester.Eq(t, e.Frameworks(), []string{"svelte"})
	set := e.Extract(snapshot("", nil, "svelte.config.js"))
	tester.Eq(t, set["svelte"][0].Source(), signal.SourcePattern)

	_, err = New(Rule{Framework: "svelte", Priority: signal.P1})
	tester.Err(t, err)

	tester.Eq(t, e.Extract(nil).Len(), 0)
}

func TestDependencies(t *testing.T) {
	snap := snapshot("", map[string]string{
		"package.json":     `{"dependencies": {"express": "^4"}}`,
		"api/package.json": `{"dependencies": {"express": "^5", "cors": "^2"}}`,
	})
	deps := Dependencies(snap)
	tester.Eq(t, names(deps), []string{"express", "cors", "express"})
	tester.Eq(t, deps[0].Manifest, "package.json", "root manifests come first")
}
