package main

import (
	"os"
	"os/signal"
	"syscall"

	"testpilot/internal/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := newDeps(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return server.New(addr, d.runner, cfg.Server.MaxConcurrentRuns).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}
