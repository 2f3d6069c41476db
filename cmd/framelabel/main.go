package main

import (
	"os"

	"github.com/spf13/cobra"

	"framelabel/internal/types"
)

var rootCmd = &cobra.Command{
	Use:   "framelabel",
	Short: "Label repositories with their primary framework",
	Long: `framelabel extracts structural framework signals from repositories,
scores and labels them, and writes training samples to the configured store.
Settings come from the environment (.env is read first) and FRAMELABEL_POLICY.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = types.PipelineVersion

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("policy", "", "TOML policy file (overrides FRAMELABEL_POLICY)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
