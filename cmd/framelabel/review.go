package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"framelabel/internal/app"
	"framelabel/internal/llm"
	"framelabel/internal/pipeline"
	"framelabel/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Ask the configured model about stored non-accepted samples",
	Long: `Review sends stored uncertain, rejected or unknown samples to the configured
model and prints its verdict. With --promote, samples whose verdict moves them
to another category are rewritten in the store.`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("category", "all", "category to review (uncertain|rejected|unknown|all)")
	reviewCmd.Flags().Bool("promote", false, "write changed labels back to the store")
	reviewCmd.Flags().Int("limit", 0, "maximum samples to review (0 for all)")
	reviewCmd.Flags().Bool("json", false, "print reviews as JSON")
	reviewCmd.Flags().BoolP("verbose", "v", false, "print the model rationale")
}

type reviewReport struct {
	Reviews []pipeline.Review      `json:"reviews"`
	Summary pipeline.ReviewSummary `json:"summary"`
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	name, _ := flags.GetString("category")
	cats, err := store.ParseCategories(name)
	if err != nil {
		return err
	}
	if cats[0] == store.CategoryAccepted {
		return errors.New("accepted samples are not reviewed")
	}
	if cfg.LLM.Provider == "" || cfg.LLM.Provider == llm.ProviderNone {
		return errors.New("review needs a model: set LLM_PROVIDER")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	promote, _ := flags.GetBool("promote")
	limit, _ := flags.GetInt("limit")
	reviews, err := a.Pipeline.Review(ctx, pipeline.ReviewOptions{Categories: cats, Promote: promote, Limit: limit})
	if err != nil && len(reviews) == 0 {
		return err
	}

	w := cmd.OutOrStdout()
	report := reviewReport{Reviews: reviews, Summary: pipeline.Summarize(reviews)}
	if asJSON, _ := flags.GetBool("json"); asJSON {
		if perr := printJSON(w, report); perr != nil {
			return perr
		}
		return err
	}
	verbose, _ := flags.GetBool("verbose")
	for _, r := range reviews {
		printReview(w, r, verbose)
	}
	printReviewSummary(w, report.Summary)
	return err
}

func printReview(w io.Writer, r pipeline.Review, verbose bool) {
	url := r.Record.Metadata.RepositoryURL
	if r.Verdict == nil {
		fmt.Fprintf(w, "%s %s: review failed: %s\n", filteredColor.Sprintf("%-9s", r.Record.Category), url, r.Error)
		return
	}
	fw := r.Verdict.PrimaryFramework
	if fw == "" {
		fw = "none"
	}
	fmt.Fprintf(w, "%s %s: %s (%s)", categoryColor(r.Record.Category).Sprintf("%-9s", r.Record.Category), url, fw, r.Verdict.Confidence)
	if r.Changed() {
		fmt.Fprintf(w, " -> %s", categoryColor(r.Updated.Category).Sprint(r.Updated.Category))
		if r.Promoted {
			fmt.Fprint(w, " [promoted]")
		}
	}
	fmt.Fprintln(w)
	if verbose && r.Verdict.Rationale != "" {
		fmt.Fprintf(w, "  rationale: %s\n", r.Verdict.Rationale)
	}
}

func printReviewSummary(w io.Writer, s pipeline.ReviewSummary) {
	fmt.Fprintf(w, "reviewed %d, failed %d, changed %d, promoted %d\n", s.Reviewed, s.Failed, s.Changed, s.Promoted)
	fws := make([]string, 0, len(s.Frameworks))
	for fw := range s.Frameworks {
		fws = append(fws, fw)
	}
	sort.Slice(fws, func(i, j int) bool {
		if s.Frameworks[fws[i]] != s.Frameworks[fws[j]] {
			return s.Frameworks[fws[i]] > s.Frameworks[fws[j]]
		}
		return fws[i] < fws[j]
	})
	for _, fw := range fws {
		fmt.Fprintf(w, "  %-20s %4d\n", fw, s.Frameworks[fw])
	}
}
