package scan

import (
	"fmt"
	"log"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"framelabel/internal/safeio"
	"framelabel/internal/types"
)

// Snapshot builds a repository snapshot from a local checkout: the file tree
// with modification times, dependency manifests and the root README.
func Snapshot(root string, opts Options) (*types.Snapshot, error) {
	if opts.ManifestLimit <= 0 {
		opts.ManifestLimit = defaultManifestLimit
	}
	if opts.ReadmeLimit <= 0 {
		opts.ReadmeLimit = defaultReadmeLimit
	}
	fsys, err := safeio.Open(root)
	if err != nil {
		return nil, fmt.Errorf("scan: open %s: %w", root, err)
	}

	snap := &types.Snapshot{
		Name:      filepath.Base(fsys.Path()),
		Manifests: map[string]string{},
	}
	var (
		readmes []string
		latest  time.Time
	)
	err = Walk(fsys.Path(), opts, func(fv FileVisit) {
		node := types.FileNode{Path: fv.Path, Type: types.NodeFile, Size: fv.Size, ModTime: fv.ModTime}
		if fv.IsDir {
			node.Type = types.NodeDir
			node.Size = 0
		}
		snap.Tree = append(snap.Tree, node)
		if fv.IsDir {
			return
		}
		if fv.ModTime.After(latest) {
			latest = fv.ModTime
		}
		if fv.Depth == 0 && isReadme(fv.Path) {
			readmes = append(readmes, fv.Path)
		}
		if fv.Depth <= opts.ManifestDepth && types.IsManifest(fv.Path) {
			b, truncated, err := fsys.ReadFile(fv.Path, opts.ManifestLimit)
			if err != nil {
				log.Printf("scan: read manifest %s: %v", fv.Path, err)
				return
			}
			if truncated {
				log.Printf("scan: manifest %s truncated to %d bytes", fv.Path, opts.ManifestLimit)
			}
			snap.Manifests[fv.Path] = string(b)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}

	if name := pickReadme(readmes); name != "" {
		if b, _, err := fsys.ReadFile(name, opts.ReadmeLimit); err == nil {
			snap.Readme = string(b)
		}
	}

	git := readGitInfo(fsys)
	url := git.RemoteURL
	if url == "" {
		url = "file://" + filepath.ToSlash(fsys.Path())
	}
	if git.HeadTime.After(latest) {
		latest = git.HeadTime
	}
	snap.LastCommit = latest
	snap.Metadata = types.Metadata{
		RepositoryURL:   url,
		CommitSHA:       git.CommitSHA,
		CollectedAt:     time.Now().UTC(),
		PipelineVersion: types.PipelineVersion,
	}.WithStage(types.StageRaw)
	if git.Name != "" {
		snap.Name = git.Name
	}
	snap.SortTree()
	return snap, nil
}

func isReadme(p string) bool {
	return strings.HasPrefix(strings.ToLower(path.Base(p)), "readme")
}

// pickReadme prefers README.md, then any other README variant by name.
func pickReadme(names []string) string {
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		mi := strings.EqualFold(names[i], "readme.md")
		mj := strings.EqualFold(names[j], "readme.md")
		if mi != mj {
			return mi
		}
		return names[i] < names[j]
	})
	return names[0]
}
