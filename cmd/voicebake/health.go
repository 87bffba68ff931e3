package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-voicebake/internal/server"
)

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running voicebake server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			h, err := server.ProbeHTTP(ctx, addr)
			if err != nil {
				return fmt.Errorf("health %s: %w", addr, err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (version %s)\n", h.Status, addr, h.Version)

			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server address to probe (default: server.listen_addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up after this long")

	return cmd
}
