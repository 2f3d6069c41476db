package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"framelabel/internal/config"
)

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	applyColor(cmd)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("policy"); strings.TrimSpace(path) != "" {
		p, err := config.LoadPolicy(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		cfg.PolicyPath, cfg.Policy = path, p
	}
	return cfg, nil
}

func applyColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch strings.ToLower(mode) {
	case "on", "always":
		color.NoColor = false
	case "off", "never":
		color.NoColor = true
	}
}
