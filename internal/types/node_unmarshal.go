package types

import (
	"encoding/json"
	"strings"
)

// UnmarshalJSON makes NodeType accept the host's vocabulary as well as ours:
// "file" | "blob" → file, "dir" | "tree" | "directory" → dir.
// Submodule entries ("commit") are kept as files.
func (t *NodeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Tolerate a boolean is_dir flag.
		var isDir bool
		if err2 := json.Unmarshal(data, &isDir); err2 != nil {
			return err
		}
		*t = NodeFile
		if isDir {
			*t = NodeDir
		}
		return nil
	}
	*t = ParseNodeType(s)
	return nil
}

func ParseNodeType(s string) NodeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dir", "tree", "directory", "folder":
		return NodeDir
	default:
		return NodeFile
	}
}
