package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"framelabel/internal/types"
)

type treeResponse struct {
	SHA       string `json:"sha"`
	Truncated bool   `json:"truncated"`
	Tree      []struct {
		Path string         `json:"path"`
		Type types.NodeType `json:"type"`
		Size int64          `json:"size"`
	} `json:"tree"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

type contentResponse struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Inspect collects a raw snapshot: the recursive tree, root manifests and the
// README. Missing manifests or README are not errors.
func (c *Client) Inspect(ctx context.Context, r SearchResult) (*types.Snapshot, error) {
	if r.FullName == "" || !strings.Contains(r.FullName, "/") {
		return nil, fmt.Errorf("inspect: invalid repository name %q", r.FullName)
	}
	branch := r.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	repoPath := "/repos/" + r.FullName

	snap := &types.Snapshot{
		Metadata: types.Metadata{
			RepositoryURL: r.URL(),
			CommitSHA:     branch + "-head",
			CollectedAt:   c.now().UTC(),
		}.WithStage(types.StageRaw),
		Name:        r.Name(),
		Description: r.Description,
		IsFork:      r.IsFork,
		Stars:       r.Stars,
		Forks:       r.Forks,
		Language:    r.Language,
		LastCommit:  firstTime(r.PushedAt, r.UpdatedAt),
	}

	var head commitResponse
	if err := c.getJSON(ctx, repoPath+"/commits/"+url.PathEscape(branch), nil, &head); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("github: %s: head commit unavailable: %v", r.FullName, err)
	} else {
		if head.SHA != "" {
			snap.Metadata.CommitSHA = head.SHA
		}
		if d := head.Commit.Committer.Date; !d.IsZero() {
			snap.LastCommit = d
		}
	}

	var tree treeResponse
	q := url.Values{"recursive": {"1"}}
	if err := c.getJSON(ctx, repoPath+"/git/trees/"+url.PathEscape(branch), q, &tree); err != nil {
		return nil, fmt.Errorf("inspect %s: tree: %w", r.FullName, err)
	}
	if tree.Truncated {
		log.Printf("github: %s: tree truncated by the API", r.FullName)
	}
	for _, e := range tree.Tree {
		n := types.FileNode{Path: strings.Trim(e.Path, "/"), Type: e.Type, Size: e.Size}
		if n.Path == "" {
			continue
		}
		if c.maxDepth > 0 && n.Depth() >= c.maxDepth {
			continue
		}
		snap.Tree = append(snap.Tree, n)
	}
	snap.SortTree()

	for _, name := range rootManifests(snap) {
		body, err := c.content(ctx, repoPath+"/contents/"+url.PathEscape(name), branch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("github: %s: manifest %s: %v", r.FullName, name, err)
			continue
		}
		if snap.Manifests == nil {
			snap.Manifests = map[string]string{}
		}
		snap.Manifests[name] = body
	}

	readme, err := c.content(ctx, repoPath+"/readme", branch)
	switch {
	case err == nil:
		snap.Readme = readme
	case errors.Is(err, ErrNotFound):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		log.Printf("github: %s: readme: %v", r.FullName, err)
	}
	return snap, nil
}

func (c *Client) content(ctx context.Context, path, ref string) (string, error) {
	var res contentResponse
	if err := c.getJSON(ctx, path, url.Values{"ref": {ref}}, &res); err != nil {
		return "", err
	}
	return decodeContent(res.Content, res.Encoding)
}

// rootManifests lists the known manifests present at the repository root,
// in types.ManifestFiles order.
func rootManifests(s *types.Snapshot) []string {
	var out []string
	for _, name := range types.ManifestFiles {
		if n, ok := s.Lookup(name); ok && !n.IsDir() {
			out = append(out, name)
		}
	}
	return out
}

func firstTime(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
