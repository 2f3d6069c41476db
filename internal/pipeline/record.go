package pipeline

import (
	"fmt"
	"strings"

	"framelabel/internal/extract"
	"framelabel/internal/labeling"
	"framelabel/internal/store"
	"framelabel/internal/types"
)

const embeddingTreeEntries = 30

// EmbeddingInput renders the text embedded for an accepted sample: name,
// description, the first tree entries and the declared dependencies.
func EmbeddingInput(snap *types.Snapshot) string {
	if snap == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", snap.Name)
	fmt.Fprintf(&b, "Description: %s\n", snap.Description)
	b.WriteString("\nDirectory Structure:\n")
	for i, n := range snap.Tree {
		if i == embeddingTreeEntries {
			break
		}
		fmt.Fprintf(&b, "  %s: %s\n", n.Type, n.Path)
	}

	b.WriteString("\nDependencies:")
	var (
		manifest string
		names    []string
	)
	flush := func() {
		if manifest != "" {
			fmt.Fprintf(&b, "\n  %s: %s", manifest, strings.Join(names, ", "))
		}
	}
	for _, d := range extract.Dependencies(snap) {
		if d.Manifest != manifest {
			flush()
			manifest, names = d.Manifest, names[:0]
		}
		names = append(names, d.Name)
	}
	flush()
	return b.String()
}

// BuildRecord turns a labeled repository into its stored form.
func BuildRecord(snap *types.Snapshot, l labeling.Labeled, included bool) store.Record {
	cat := store.CategoryFor(l, included)
	rec := store.Record{
		Category:         cat,
		Label:            l.Label,
		PrimaryFramework: l.PrimaryFramework,
		ConfidenceLevel:  l.ConfidenceLevel,
		Adjudicated:      l.Adjudicated,
		Rationale:        l.Rationale,
	}
	if snap != nil {
		rec.Metadata = snap.Metadata
	}

	if cat == store.CategoryAccepted {
		rec.Metadata = rec.Metadata.WithStage(types.StageAccepted)
		rec.EmbeddingInput = EmbeddingInput(snap)
		rec.EmbeddingMetadata = &store.EmbeddingMetadata{
			TokenCount: len(strings.Fields(rec.EmbeddingInput)),
			Framework:  l.PrimaryFramework,
		}
		return rec
	}

	rec.Metadata = rec.Metadata.WithStage(types.StageRejected)
	rec.RejectionReason = l.RejectionReason
	if rec.RejectionReason == "" {
		rec.RejectionReason = "Label: " + l.Label
	}
	rec.ScoringContext = store.NewScoringContext(l.Scored)
	return rec
}
