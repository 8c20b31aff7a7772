package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	apihttp "github.com/sawpanic/allostat/internal/interfaces/http"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the tracker over HTTP. Entries are persisted in PostgreSQL when a DSN is
configured and in memory otherwise. Prometheus metrics are exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().Bool("backfill", false, "Recompute all derived state before serving")
	return cmd
}

func runServe(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.manager.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if backfill, _ := cmd.Flags().GetBool("backfill"); backfill {
		if _, err := a.backfill(ctx); err != nil {
			return err
		}
	}

	server := apihttp.NewServer(cfg.HTTP, a.tracker, a.manager.Health(), a.registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
