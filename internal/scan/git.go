package scan

import (
	"bufio"
	"bytes"
	"path"
	"strings"
	"time"

	"framelabel/internal/safeio"
)

type gitInfo struct {
	RemoteURL string
	Name      string
	CommitSHA string
	HeadTime  time.Time
}

// readGitInfo reads HEAD and the origin remote straight from .git without
// shelling out. Missing or unusual layouts yield a zero value.
func readGitInfo(fsys *safeio.Root) gitInfo {
	var info gitInfo
	head, _, err := fsys.ReadFile(".git/HEAD", 4<<10)
	if err != nil {
		return info
	}
	if st, err := fsys.Stat(".git/HEAD"); err == nil {
		info.HeadTime = st.ModTime()
	}
	ref := strings.TrimSpace(string(head))
	if strings.HasPrefix(ref, "ref:") {
		name := strings.TrimSpace(strings.TrimPrefix(ref, "ref:"))
		if b, _, err := fsys.ReadFile(".git/"+name, 1<<10); err == nil {
			info.CommitSHA = strings.TrimSpace(string(b))
		} else if b, _, err := fsys.ReadFile(".git/packed-refs", 1<<20); err == nil {
			info.CommitSHA = packedRef(b, name)
		}
		if info.CommitSHA == "" {
			info.CommitSHA = path.Base(name) + "-head"
		}
	} else {
		info.CommitSHA = ref
	}

	if cfg, _, err := fsys.ReadFile(".git/config", 64<<10); err == nil {
		if raw := originURL(cfg); raw != "" {
			info.RemoteURL, info.Name = NormalizeRemote(raw)
		}
	}
	return info
}

func packedRef(b []byte, name string) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		if sha, ref, ok := strings.Cut(line, " "); ok && ref == name {
			return sha
		}
	}
	return ""
}

func originURL(cfg []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(cfg))
	inOrigin := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok && strings.TrimSpace(k) == "url" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// NormalizeRemote turns ssh and https remotes into an https URL and returns
// the repository name. "git@github.com:acme/shop.git" becomes
// "https://github.com/acme/shop", "shop".
func NormalizeRemote(raw string) (url, name string) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")
	switch {
	case strings.HasPrefix(raw, "git@"):
		host, p, _ := strings.Cut(strings.TrimPrefix(raw, "git@"), ":")
		raw = "https://" + host + "/" + p
	case strings.HasPrefix(raw, "ssh://"):
		rest := strings.TrimPrefix(raw, "ssh://")
		if _, after, ok := strings.Cut(rest, "@"); ok {
			rest = after
		}
		raw = "https://" + rest
	case strings.HasPrefix(raw, "http://"):
		raw = "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw, path.Base(raw)
}
