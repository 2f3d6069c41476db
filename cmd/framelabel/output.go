package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"framelabel/internal/pipeline"
	"framelabel/internal/store"
)

var (
	acceptedColor  = color.New(color.FgGreen, color.Bold)
	uncertainColor = color.New(color.FgYellow, color.Bold)
	rejectedColor  = color.New(color.FgRed)
	filteredColor  = color.New(color.FgHiBlack)
)

func categoryColor(c store.Category) *color.Color {
	switch c {
	case store.CategoryAccepted:
		return acceptedColor
	case store.CategoryUncertain:
		return uncertainColor
	case "":
		return filteredColor
	}
	return rejectedColor
}

// printOutcome writes a one-line summary plus the per-framework scores.
func printOutcome(w io.Writer, out pipeline.Outcome, verbose bool) {
	if out.Filter.Filtered {
		fmt.Fprintf(w, "%s %s: %s\n", filteredColor.Sprint("filtered"), out.Repository, out.Filter.Reason)
		return
	}
	if out.Labeled == nil {
		return
	}
	l := out.Labeled
	c := out.Category()
	fmt.Fprintf(w, "%s %s: %s (level %d)", categoryColor(c).Sprintf("%-9s", c), out.Repository, l.Label, l.ConfidenceLevel)
	switch {
	case out.Duplicate:
		fmt.Fprint(w, " [duplicate]")
	case out.Stored:
		fmt.Fprint(w, " [stored]")
	}
	fmt.Fprintln(w)
	if l.RejectionReason != "" {
		fmt.Fprintf(w, "  reason: %s\n", l.RejectionReason)
	}
	if l.Rationale != "" {
		fmt.Fprintf(w, "  adjudicator: %s\n", l.Rationale)
	}
	if out.AdjudicationError != "" {
		fmt.Fprintf(w, "  adjudication failed: %s\n", out.AdjudicationError)
	}
	if !verbose || out.Scored == nil {
		return
	}
	fmt.Fprintf(w, "  dominance %.2f, gap %d\n", out.Scored.DominanceRatio, out.Scored.Gap)
	for _, r := range out.Scored.Ranking {
		fmt.Fprintf(w, "  %-20s %4d\n", r.Framework, r.Score)
		for _, sig := range out.Signals[r.Framework] {
			fmt.Fprintf(w, "    %-6s %s %s\n", sig.Type(), sig.Priority(), sig.Evidence())
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
