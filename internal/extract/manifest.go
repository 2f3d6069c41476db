package extract

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"
)

// Package ecosystems.
const (
	EcosystemNPM      = "npm"
	EcosystemPyPI     = "pypi"
	EcosystemMaven    = "maven"
	EcosystemGo       = "go"
	EcosystemCargo    = "cargo"
	EcosystemComposer = "composer"
	EcosystemGems     = "rubygems"
	EcosystemClojure  = "clojars"
)

// Dependency is one declared package.
type Dependency struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Ecosystem string `json:"ecosystem"`
	Manifest  string `json:"manifest"`
	Dev       bool   `json:"dev,omitempty"`
}

type manifestParser func(content string) ([]Dependency, error)

var parsers = map[string]struct {
	ecosystem string
	parse     manifestParser
}{
	"package.json":     {EcosystemNPM, parsePackageJSON},
	"requirements.txt": {EcosystemPyPI, parseRequirements},
	"pyproject.toml":   {EcosystemPyPI, parsePyproject},
	"Pipfile":          {EcosystemPyPI, parsePipfile},
	"pom.xml":          {EcosystemMaven, parsePom},
	"build.gradle":     {EcosystemMaven, parseGradle},
	"build.gradle.kts": {EcosystemMaven, parseGradle},
	"build.sbt":        {EcosystemMaven, parseSbt},
	"go.mod":           {EcosystemGo, parseGoMod},
	"Cargo.toml":       {EcosystemCargo, parseCargo},
	"composer.json":    {EcosystemComposer, parseComposer},
	"Gemfile":          {EcosystemGems, parseGemfile},
	"project.clj":      {EcosystemClojure, parseProjectClj},
}

// ParseManifest parses one manifest by file name. Unknown names yield nil.
func ParseManifest(name, content string) ([]Dependency, error) {
	p, ok := parsers[path.Base(name)]
	if !ok {
		return nil, nil
	}
	deps, err := p.parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for i := range deps {
		deps[i].Ecosystem = p.ecosystem
		deps[i].Manifest = name
	}
	return deps, nil
}

// npm / composer ------------------------------------------------------------------

func parsePackageJSON(content string) ([]Dependency, error) {
	var pkg struct {
		Dependencies     map[string]string `json:"dependencies"`
		DevDependencies  map[string]string `json:"devDependencies"`
		PeerDependencies map[string]string `json:"peerDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil, err
	}
	out := fromMap(pkg.Dependencies, false)
	out = append(out, fromMap(pkg.PeerDependencies, false)...)
	return append(out, fromMap(pkg.DevDependencies, true)...), nil
}

func parseComposer(content string) ([]Dependency, error) {
	var pkg struct {
		Require    map[string]string `json:"require"`
		RequireDev map[string]string `json:"require-dev"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil, err
	}
	var out []Dependency
	for _, d := range fromMap(pkg.Require, false) {
		// Platform requirements are not packages.
		if d.Name == "php" || strings.HasPrefix(d.Name, "ext-") {
			continue
		}
		out = append(out, d)
	}
	return append(out, fromMap(pkg.RequireDev, true)...), nil
}

func fromMap(m map[string]string, dev bool) []Dependency {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]Dependency, 0, len(names))
	for _, n := range names {
		out = append(out, Dependency{Name: n, Version: m[n], Dev: dev})
	}
	return out
}

// Python -------------------------------------------------------------------------

var reRequirement = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[^\]]*\])?\s*(.*)$`)

// pep508 splits "Django>=4.2; python_version>'3'" into name and version spec.
func pep508(line string) (Dependency, bool) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	m := reRequirement.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Dependency{}, false
	}
	return Dependency{Name: normalizePyName(m[1]), Version: strings.TrimSpace(m[3])}, true
}

func normalizePyName(n string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(n), "_", "-"), ".", "-")
}

func parseRequirements(content string) ([]Dependency, error) {
	var out []Dependency
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		// Options, includes and editable/VCS installs.
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}
		if d, ok := pep508(line); ok {
			out = append(out, d)
		}
	}
	return out, sc.Err()
}

func parsePyproject(content string) ([]Dependency, error) {
	var doc struct {
		Project struct {
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
				Group           map[string]struct {
					Dependencies map[string]any `toml:"dependencies"`
				} `toml:"group"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.Decode(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	var out []Dependency
	for _, line := range doc.Project.Dependencies {
		if d, ok := pep508(line); ok {
			out = append(out, d)
		}
	}
	for _, extra := range sortedKeys(doc.Project.OptionalDependencies) {
		for _, line := range doc.Project.OptionalDependencies[extra] {
			if d, ok := pep508(line); ok {
				d.Dev = true
				out = append(out, d)
			}
		}
	}
	poetry := doc.Tool.Poetry
	out = append(out, fromAnyMap(poetry.Dependencies, false, normalizePyName)...)
	out = append(out, fromAnyMap(poetry.DevDependencies, true, normalizePyName)...)
	for _, g := range sortedKeys(poetry.Group) {
		out = append(out, fromAnyMap(poetry.Group[g].Dependencies, true, normalizePyName)...)
	}
	return dropPython(out), nil
}

func parsePipfile(content string) ([]Dependency, error) {
	var doc struct {
		Packages    map[string]any `toml:"packages"`
		DevPackages map[string]any `toml:"dev-packages"`
	}
	if _, err := toml.Decode(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	out := fromAnyMap(doc.Packages, false, normalizePyName)
	return append(out, fromAnyMap(doc.DevPackages, true, normalizePyName)...), nil
}

func dropPython(deps []Dependency) []Dependency {
	out := deps[:0]
	for _, d := range deps {
		if d.Name != "python" {
			out = append(out, d)
		}
	}
	return out
}

// fromAnyMap reads TOML dependency tables whose values are either version
// strings or inline tables with a "version" key.
func fromAnyMap(m map[string]any, dev bool, norm func(string) string) []Dependency {
	out := make([]Dependency, 0, len(m))
	for _, n := range sortedKeys(m) {
		d := Dependency{Name: n, Dev: dev}
		if norm != nil {
			d.Name = norm(n)
		}
		switch v := m[n].(type) {
		case string:
			d.Version = v
		case map[string]any:
			if s, ok := v["version"].(string); ok {
				d.Version = s
			}
		}
		out = append(out, d)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JVM ----------------------------------------------------------------------------

type pomCoord struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// parsePom records both artifactId and groupId so rules can match either.
func parsePom(content string) ([]Dependency, error) {
	var pom struct {
		Parent       pomCoord   `xml:"parent"`
		Dependencies []pomCoord `xml:"dependencies>dependency"`
		Managed      []pomCoord `xml:"dependencyManagement>dependencies>dependency"`
		Plugins      []pomCoord `xml:"build>plugins>plugin"`
	}
	if err := xml.Unmarshal([]byte(content), &pom); err != nil {
		return nil, err
	}
	var out []Dependency
	add := func(c pomCoord) {
		dev := c.Scope == "test"
		if c.ArtifactID != "" {
			out = append(out, Dependency{Name: c.ArtifactID, Version: c.Version, Dev: dev})
		}
		if c.GroupID != "" {
			out = append(out, Dependency{Name: c.GroupID, Version: c.Version, Dev: dev})
		}
	}
	add(pom.Parent)
	for _, group := range [][]pomCoord{pom.Dependencies, pom.Managed, pom.Plugins} {
		for _, c := range group {
			add(c)
		}
	}
	return dedupe(out), nil
}

var (
	reGradleCoord  = regexp.MustCompile(`["']([A-Za-z0-9_.\-]+):([A-Za-z0-9_.\-]+)(?::([^"'@]+))?["']`)
	reGradlePlugin = regexp.MustCompile(`\bid\s*\(?\s*["']([A-Za-z0-9_.\-]+)["']`)
	reSbtCoord     = regexp.MustCompile(`"([A-Za-z0-9_.\-]+)"\s*%%?\s*"([A-Za-z0-9_.\-]+)"(?:\s*%\s*"([^"]+)")?`)
)

func parseGradle(content string) ([]Dependency, error) {
	var out []Dependency
	for _, m := range reGradlePlugin.FindAllStringSubmatch(content, -1) {
		out = append(out, Dependency{Name: m[1]})
	}
	for _, m := range reGradleCoord.FindAllStringSubmatch(content, -1) {
		out = append(out, Dependency{Name: m[2], Version: m[3]}, Dependency{Name: m[1], Version: m[3]})
	}
	return dedupe(out), nil
}

func parseSbt(content string) ([]Dependency, error) {
	var out []Dependency
	for _, m := range reSbtCoord.FindAllStringSubmatch(content, -1) {
		out = append(out, Dependency{Name: m[2], Version: m[3]}, Dependency{Name: m[1], Version: m[3]})
	}
	return dedupe(out), nil
}

var reCljDep = regexp.MustCompile(`\[([A-Za-z0-9_.\-/]+)\s+"([^"]+)"`)

func parseProjectClj(content string) ([]Dependency, error) {
	var out []Dependency
	for _, m := range reCljDep.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if _, artifact, ok := strings.Cut(name, "/"); ok {
			out = append(out, Dependency{Name: artifact, Version: m[2]})
		}
		out = append(out, Dependency{Name: name, Version: m[2]})
	}
	return dedupe(out), nil
}

// Go / Rust / Ruby ---------------------------------------------------------------

func parseGoMod(content string) ([]Dependency, error) {
	f, err := modfile.ParseLax("go.mod", []byte(content), nil)
	if err != nil {
		return nil, err
	}
	out := make([]Dependency, 0, len(f.Require))
	for _, r := range f.Require {
		out = append(out, Dependency{Name: r.Mod.Path, Version: r.Mod.Version})
	}
	return out, nil
}

func parseCargo(content string) ([]Dependency, error) {
	var doc struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
		Workspace       struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"workspace"`
	}
	if _, err := toml.Decode(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	out := fromAnyMap(doc.Dependencies, false, nil)
	out = append(out, fromAnyMap(doc.Workspace.Dependencies, false, nil)...)
	return append(out, fromAnyMap(doc.DevDependencies, true, nil)...), nil
}

var reGem = regexp.MustCompile(`^\s*gem\s+["']([^"']+)["'](?:\s*,\s*["']([^"']+)["'])?`)

func parseGemfile(content string) ([]Dependency, error) {
	var out []Dependency
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		if m := reGem.FindStringSubmatch(sc.Text()); m != nil {
			out = append(out, Dependency{Name: m[1], Version: m[2]})
		}
	}
	return out, sc.Err()
}

func dedupe(deps []Dependency) []Dependency {
	seen := make(map[string]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
