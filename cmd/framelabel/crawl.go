package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"framelabel/internal/app"
	"framelabel/internal/pipeline"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Search GitHub and label the results",
	Long: `Crawl searches GitHub for popular repositories in each language, inspects
them through the REST API and stores the labeled samples. Repositories already
in the store are skipped.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringSliceP("language", "l", nil, "languages to search (default from policy)")
	crawlCmd.Flags().Int("max-repos", 0, "maximum results per language")
	crawlCmd.Flags().Int("min-stars", 0, "minimum star count")
	crawlCmd.Flags().Int("concurrency", 0, "repositories processed at once")
	crawlCmd.Flags().Bool("adjudicate", false, "send uncertain labels to the configured model")
	crawlCmd.Flags().Bool("json", false, "print the crawl summary as JSON")
	crawlCmd.Flags().BoolP("verbose", "v", false, "print every outcome")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	crawl := &cfg.Policy.Crawl
	if langs, _ := flags.GetStringSlice("language"); len(langs) > 0 {
		crawl.Languages = langs
	}
	if n, _ := flags.GetInt("max-repos"); n > 0 {
		crawl.MaxRepos = n
	}
	if n, _ := flags.GetInt("min-stars"); n > 0 {
		crawl.MinStars = n
	}
	if n, _ := flags.GetInt("concurrency"); n > 0 {
		crawl.Concurrency = n
	}
	if flags.Changed("adjudicate") {
		crawl.Adjudicate, _ = flags.GetBool("adjudicate")
	}
	if len(crawl.Languages) == 0 {
		return fmt.Errorf("no languages to crawl")
	}
	if cfg.GitHub.Token == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: GITHUB_TOKEN is not set; unauthenticated requests are heavily rate limited")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	verbose, _ := flags.GetBool("verbose")
	w := cmd.OutOrStdout()
	var mu sync.Mutex
	stats, err := a.Pipeline.Crawl(ctx, a.GitHub, crawl.Languages, func(out pipeline.Outcome) {
		if !verbose {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printOutcome(w, out, false)
	})
	if asJSON, _ := flags.GetBool("json"); asJSON {
		if perr := printJSON(w, stats); perr != nil {
			return perr
		}
	} else {
		printCrawlStats(w, strings.Join(crawl.Languages, ", "), stats)
	}
	return err
}

func printCrawlStats(w io.Writer, langs string, s pipeline.CrawlStats) {
	fmt.Fprintf(w, "crawled %s: %d found, %d skipped, %d filtered\n", langs, s.Searched, s.Skipped, s.Filtered)
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d  %s %d\n",
		acceptedColor.Sprint("accepted"), s.Accepted,
		uncertainColor.Sprint("uncertain"), s.Uncertain,
		rejectedColor.Sprint("unknown"), s.Unknown,
		rejectedColor.Sprint("rejected"), s.Rejected)
	if s.Duplicates > 0 || s.Errors > 0 {
		fmt.Fprintf(w, "  duplicates %d, errors %d\n", s.Duplicates, s.Errors)
	}
}
