package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framelabel/internal/app"
	"framelabel/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sample counts per category",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "print counts as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Stats never needs a model.
	cfg.LLM.Provider = "none"
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(w, st)
	}
	for _, c := range store.Categories {
		fmt.Fprintf(w, "%s %d\n", categoryColor(c).Sprintf("%-9s", c), st.Count(c))
	}
	fmt.Fprintf(w, "%-9s %d\n", "total", st.Total)
	return nil
}
