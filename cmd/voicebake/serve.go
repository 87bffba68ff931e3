package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-voicebake/internal/server"
)

func newServeCmd() *cobra.Command {
	var noPlayback bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voicebake HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var player server.Player
			if !noPlayback {
				ctrl := newController(cfg)
				defer func() { _ = ctrl.Close() }()
				player = ctrl
			}

			srv := server.New(cfg, newExporter(cfg), player).WithLogger(slog.Default())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&noPlayback, "no-playback", false, "Disable the /playback WebSocket endpoint")

	return cmd
}
