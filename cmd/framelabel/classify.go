package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framelabel/internal/app"
	"framelabel/internal/scan"
	"framelabel/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [dir...]",
	Short: "Classify local checkouts",
	Long: `Classify scans each directory (default ".") and prints its label.
Nothing is written unless --persist is given.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().Bool("json", false, "print the full outcome as JSON")
	classifyCmd.Flags().BoolP("verbose", "v", false, "print scores and signals")
	classifyCmd.Flags().Bool("persist", false, "append records to the sample store")
	classifyCmd.Flags().Bool("adjudicate", false, "send uncertain labels to the configured model")
	classifyCmd.Flags().Int("max-depth", 0, "limit the scanned tree depth (0 keeps the default)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")
	persist, _ := cmd.Flags().GetBool("persist")
	adjudicate, _ := cmd.Flags().GetBool("adjudicate")
	maxDepth, _ := cmd.Flags().GetInt("max-depth")

	if !persist {
		cfg.Samples.Backend = store.BackendMemory
	}
	cfg.Policy.Crawl.Adjudicate = adjudicate

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		args = []string{"."}
	}
	opts := scan.DefaultOptions()
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}
	w := cmd.OutOrStdout()
	for _, dir := range args {
		snap, err := scan.Snapshot(dir, opts)
		if err != nil {
			return err
		}
		out, err := a.Pipeline.Process(ctx, snap)
		if err != nil {
			return fmt.Errorf("classify %s: %w", dir, err)
		}
		if asJSON {
			if err := printJSON(w, out); err != nil {
				return err
			}
			continue
		}
		printOutcome(w, out, verbose)
	}
	return nil
}
