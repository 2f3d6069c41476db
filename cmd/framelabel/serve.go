package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"framelabel/internal/app"
	"framelabel/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the labeling API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from PORT or :8080)")
	serveCmd.Flags().StringSlice("allow-origin", nil, "CORS origins to admit (default any)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if origins, _ := cmd.Flags().GetStringSlice("allow-origin"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	mux := server.NewMux(server.NewHandler(a.Pipeline), cfg.AllowedOrigins...)
	return server.New(cfg.Addr, mux).Run(ctx)
}
