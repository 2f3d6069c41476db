package types

import "path"

// ManifestFiles are the dependency manifests collected with a snapshot.
var ManifestFiles = []string{
	"package.json",
	"pom.xml",
	"build.gradle",
	"build.gradle.kts",
	"requirements.txt",
	"pyproject.toml",
	"Pipfile",
	"Cargo.toml",
	"go.mod",
	"composer.json",
	"Gemfile",
	"build.sbt",
	"project.clj",
}

var manifestSet = func() map[string]bool {
	m := make(map[string]bool, len(ManifestFiles))
	for _, f := range ManifestFiles {
		m[f] = true
	}
	return m
}()

// IsManifest reports whether the base name of p is a known manifest.
func IsManifest(p string) bool { return manifestSet[path.Base(p)] }
