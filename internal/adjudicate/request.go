package adjudicate

import (
	"fmt"

	"framelabel/internal/extract"
	"framelabel/internal/labeling"
	"framelabel/internal/types"
)

const (
	maxTreeEntries         = 30
	maxDepsPerManifest     = 10
	maxSignalsPerFramework = 5
	maxCompeting           = 3
)

// Request is the structured evidence sent alongside the prompt.
type Request struct {
	Repository   Repository          `json:"repository"`
	FileTree     []string            `json:"file_tree"`
	MoreFiles    int                 `json:"more_files,omitempty"`
	Dependencies map[string][]string `json:"dependencies,omitempty"`
	Signals      map[string][]string `json:"signals,omitempty"`
	Scores       map[string]int      `json:"framework_scores,omitempty"`
	Current      Classification      `json:"current_classification"`
}

type Repository struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Classification is the automatic label being reviewed.
type Classification struct {
	PrimaryFramework string   `json:"primary_framework,omitempty"`
	Label            string   `json:"label"`
	ConfidenceLevel  int      `json:"confidence_level"`
	Competing        []string `json:"competing_frameworks,omitempty"`
}

// BuildRequest samples the snapshot and the labeled result into a Request.
// snap may be nil when only signals are known.
func BuildRequest(l labeling.Labeled, snap *types.Snapshot) Request {
	req := Request{
		Current: Classification{
			PrimaryFramework: l.PrimaryFramework,
			Label:            l.Label,
			ConfidenceLevel:  l.ConfidenceLevel,
		},
	}

	if snap != nil {
		req.Repository = Repository{
			URL:         snap.Metadata.RepositoryURL,
			Name:        snap.Name,
			Description: snap.Description,
			Language:    snap.Language,
		}
		req.FileTree = make([]string, 0, min(len(snap.Tree), maxTreeEntries))
		for i, n := range snap.Tree {
			if i == maxTreeEntries {
				req.MoreFiles = len(snap.Tree) - maxTreeEntries
				break
			}
			req.FileTree = append(req.FileTree, fmt.Sprintf("%s: %s", n.Type, n.Path))
		}
		for _, d := range extract.Dependencies(snap) {
			if req.Dependencies == nil {
				req.Dependencies = map[string][]string{}
			}
			if len(req.Dependencies[d.Manifest]) == maxDepsPerManifest {
				continue
			}
			req.Dependencies[d.Manifest] = append(req.Dependencies[d.Manifest], fmt.Sprintf("%s: %s", d.Name, versionOrAny(d.Version)))
		}
	}

	if l.Scored != nil {
		if len(l.Scored.Scores) > 0 {
			req.Scores = make(map[string]int, len(l.Scored.Scores))
			for fw, n := range l.Scored.Scores {
				req.Scores[fw] = n
			}
		}
		for fw, sigs := range l.Scored.Signals {
			if req.Signals == nil {
				req.Signals = map[string][]string{}
			}
			for i, s := range sigs {
				if i == maxSignalsPerFramework {
					break
				}
				req.Signals[fw] = append(req.Signals[fw], fmt.Sprintf("%s %s: %s", s.Type(), s.Priority(), s.Evidence()))
			}
		}
		for i, r := range l.Scored.Ranking {
			if i == maxCompeting {
				break
			}
			req.Current.Competing = append(req.Current.Competing, r.Framework)
		}
	}
	return req
}

func versionOrAny(v string) string {
	if v == "" {
		return "*"
	}
	return v
}
