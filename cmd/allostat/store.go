package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/allostat/internal/pipeline"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show data sufficiency, the latest score and breaker states",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.tracker.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput(out) {
				return printJSON(out, report)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Entries:\t%d (minimum %d)\n", report.Entries, report.MinEntries)
			fmt.Fprintf(tw, "Progress:\t%.0f%%\n", report.Progress.ProgressPercentage)
			if s := report.LatestScore; s != nil {
				fmt.Fprintf(tw, "Latest sALI:\t%.2f on %s (short %.2f, long %.2f, %s)\n",
					s.RawScore, s.Date.Format("2006-01-02"), s.EMAShort, s.EMALong, s.Trend)
			}
			fmt.Fprintf(tw, "Conflicts:\t%d\n", report.Conflicts)

			names := make([]string, 0, len(report.Breakers))
			for name := range report.Breakers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(tw, "Breaker %s:\t%s\n", name, report.Breakers[name])
			}
			return tw.Flush()
		},
	}
}

func newBackfillCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Recompute every stored score, the weights and conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.backfill(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput(out) {
				return printJSON(out, result)
			}
			printBackfill(out, result)
			return nil
		},
	}
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return fmt.Errorf("database is not enabled; set database.dsn or ALLOSTAT_PG_DSN")
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate schema: %w", err)
			}
			log.Info().Msg("Schema migrated")
			return nil
		},
	}
}

// backfill clears the shared weight cache, then recomputes every stored score
// so states cached by an older engine build are never reused
func (a *app) backfill(ctx context.Context) (*pipeline.BackfillResult, error) {
	if a.weightCache != nil {
		if err := a.weightCache.Invalidate(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear weight cache: %w", err)
		}
	}

	result, err := a.tracker.Backfill(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to backfill: %w", err)
	}
	log.Info().Str("status", string(result.Status)).Int("scores", len(result.Scores)).Msg("Backfill complete")
	return result, nil
}
