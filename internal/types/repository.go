package types

import (
	"path"
	"sort"
	"strings"
	"time"
)

// PipelineVersion is stamped on every record produced by this build.
const PipelineVersion = "1.0.0"

// Pipeline stages recorded in Metadata.Stage.
const (
	StageRaw             = "raw"
	StagePreFiltered     = "pre_filtered"
	StageSignalExtracted = "signal_extracted"
	StageScored          = "scored"
	StageLabeled         = "labeled"
	StageAccepted        = "accepted"
	StageRejected        = "rejected"
)

// Metadata travels unchanged through every stage except for Stage itself.
type Metadata struct {
	RepositoryURL   string    `json:"repository_url" msgpack:"repository_url"`
	CommitSHA       string    `json:"commit_sha" msgpack:"commit_sha"`
	CollectedAt     time.Time `json:"collected_at" msgpack:"collected_at"`
	Stage           string    `json:"pipeline_stage" msgpack:"pipeline_stage"`
	PipelineVersion string    `json:"pipeline_version" msgpack:"pipeline_version"`
}

// WithStage returns a copy of m moved to stage.
func (m Metadata) WithStage(stage string) Metadata {
	m.Stage = stage
	if m.PipelineVersion == "" {
		m.PipelineVersion = PipelineVersion
	}
	return m
}

// File tree --------------------------------------------------------------------

type NodeType string

const (
	NodeFile NodeType = "file"
	NodeDir  NodeType = "dir"
)

type FileNode struct {
	Path    string    `json:"path" msgpack:"path"`
	Type    NodeType  `json:"type" msgpack:"type"`
	Size    int64     `json:"size,omitempty" msgpack:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty" msgpack:"mod_time,omitempty"`
}

func (n FileNode) IsDir() bool   { return n.Type == NodeDir }
func (n FileNode) Base() string  { return path.Base(n.Path) }
func (n FileNode) Depth() int    { return strings.Count(strings.Trim(n.Path, "/"), "/") }
func (n FileNode) HasTime() bool { return !n.ModTime.IsZero() }

// Snapshot -----------------------------------------------------------------------

// Snapshot is everything the classifier may look at for one repository:
// structure, manifest text and README. Source bodies are never included.
type Snapshot struct {
	Metadata         Metadata          `json:"metadata" msgpack:"metadata"`
	Name             string            `json:"name" msgpack:"name"`
	Description      string            `json:"description,omitempty" msgpack:"description,omitempty"`
	IsFork           bool              `json:"is_fork" msgpack:"is_fork"`
	Stars            int               `json:"star_count" msgpack:"star_count"`
	Forks            int               `json:"fork_count" msgpack:"fork_count"`
	CommitCount      int               `json:"commit_count,omitempty" msgpack:"commit_count,omitempty"`
	ContributorCount int               `json:"contributor_count,omitempty" msgpack:"contributor_count,omitempty"`
	Language         string            `json:"language,omitempty" msgpack:"language,omitempty"`
	LastCommit       time.Time         `json:"last_commit_date,omitempty" msgpack:"last_commit_date,omitempty"`
	Tree             []FileNode        `json:"file_tree" msgpack:"file_tree"`
	Manifests        map[string]string `json:"manifests,omitempty" msgpack:"manifests,omitempty"`
	Readme           string            `json:"readme_content,omitempty" msgpack:"readme_content,omitempty"`
}

// Key identifies the repository across stores and caches.
func (s *Snapshot) Key() string {
	if s == nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s.Metadata.RepositoryURL)), "/")
}

// Files returns only file entries, in tree order.
func (s *Snapshot) Files() []FileNode {
	out := make([]FileNode, 0, len(s.Tree))
	for _, n := range s.Tree {
		if !n.IsDir() {
			out = append(out, n)
		}
	}
	return out
}

// FileCount counts file entries.
func (s *Snapshot) FileCount() int {
	n := 0
	for _, node := range s.Tree {
		if !node.IsDir() {
			n++
		}
	}
	return n
}

// Lookup finds a node by slash path.
func (s *Snapshot) Lookup(p string) (FileNode, bool) {
	p = strings.Trim(p, "/")
	for _, n := range s.Tree {
		if n.Path == p {
			return n, true
		}
	}
	return FileNode{}, false
}

// SortTree orders the tree by path so snapshots from different sources compare equal.
func (s *Snapshot) SortTree() {
	sort.Slice(s.Tree, func(i, j int) bool { return s.Tree[i].Path < s.Tree[j].Path })
}
