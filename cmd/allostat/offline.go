package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/explain"
	"github.com/sawpanic/allostat/internal/pipeline"
)

func newScoreCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON file of entries without touching the store",
		Long: `Validate, sort and backfill a JSON array of entries, printing every sALI score
together with the final weights and active conflicts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, opts)
		},
	}
	cmd.Flags().StringP("file", "f", "", "JSON file with an array of entries")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runScore(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	entries, err := loadValidEntries(cmd)
	if err != nil {
		return err
	}

	result, err := newOrchestrator(cfg).Backfill(cmd.Context(), entries)
	if err != nil {
		return fmt.Errorf("failed to score entries: %w", err)
	}
	summary, err := explain.Summarize(result.Scores)
	if err != nil {
		return fmt.Errorf("failed to summarize scores: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput(out) {
		return printJSON(out, scoreReport{BackfillResult: result, Summary: summary})
	}
	printBackfill(out, result)
	printSummary(out, summary)
	return nil
}

// scoreReport is the backfill result with the trail summary alongside
type scoreReport struct {
	*pipeline.BackfillResult
	Summary *explain.TrailSummary `json:"summary"`
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a JSON file of entries for range and date errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.load(); err != nil {
				return err
			}
			entries, err := loadValidEntries(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries valid\n", len(entries))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "JSON file with an array of entries")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newConflictsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect conflict patterns in a JSON file of entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			entries, err := loadValidEntries(cmd)
			if err != nil {
				return err
			}

			patterns, err := newOrchestrator(cfg).Conflicts(entries)
			if err != nil {
				return fmt.Errorf("failed to detect conflicts: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput(out) {
				if patterns == nil {
					patterns = []domain.ConflictPattern{}
				}
				return printJSON(out, patterns)
			}
			printConflicts(out, patterns)
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "JSON file with an array of entries")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// loadValidEntries reads --file, validates every entry and returns them in history order
func loadValidEntries(cmd *cobra.Command) ([]domain.Entry, error) {
	path, _ := cmd.Flags().GetString("file")
	entries, err := readEntriesFile(path)
	if err != nil {
		return nil, err
	}
	if errs := validateAll(domain.NewValidator(), entries); len(errs) > 0 {
		return nil, errs
	}
	domain.SortEntries(entries)
	return entries, nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func printProgress(out io.Writer, p pipeline.Progress) {
	if p.CanCalculate {
		return
	}
	fmt.Fprintf(out, "Insufficient data: %.0f%% of the minimum, %d more entries needed\n",
		p.ProgressPercentage, p.EntriesNeeded)
}

func printBackfill(out io.Writer, result *pipeline.BackfillResult) {
	printProgress(out, result.Progress)

	if len(result.Scores) > 0 {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tENTRY\tRAW\tEMA SHORT\tEMA LONG\tTREND\tCROSSOVER")
		for _, s := range result.Scores {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
				s.Date.Format("2006-01-02"), s.EntryID, s.RawScore, s.EMAShort, s.EMALong, s.Trend, s.Crossover)
		}
		tw.Flush()
	}

	if result.Weights != nil {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "METRIC\tWEIGHT\tCORRELATION\tSTDDEV\tPATTERNS")
		for _, m := range domain.AllMetrics {
			mw := result.Weights.Metrics[m]
			patterns := make([]string, len(mw.ActiveConflictPatterns))
			for i, p := range mw.ActiveConflictPatterns {
				patterns[i] = string(p)
			}
			fmt.Fprintf(tw, "%s\t%.3f\t%+.2f\t%.2f\t%s\n",
				m, result.Weights.NormalizedWeights[m], mw.Correlation, mw.StdDev, strings.Join(patterns, ","))
		}
		tw.Flush()
	}

	if len(result.Conflicts) > 0 {
		fmt.Fprintln(out)
		printConflicts(out, result.Conflicts)
	}
}

func printSummary(out io.Writer, summary *explain.TrailSummary) {
	if summary.Raw.N == 0 {
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "sALI range:\t%.2f to %.2f (mean %.2f, sd %.2f, n %d)\n",
		summary.Raw.Min, summary.Raw.Max, summary.Raw.Mean, summary.Raw.StdDev, summary.Raw.N)
	fmt.Fprintf(tw, "Latest percentile:\t%.0f\n", summary.LatestPercentile)
	fmt.Fprintf(tw, "Spread volatility:\t%.3f\n", summary.SpreadVolatility)
	for _, c := range summary.Crossovers {
		fmt.Fprintf(tw, "Crossover %s:\t%s (%s)\n", c.Direction, c.Date.Format("2006-01-02"), c.EntryID)
	}
	if len(summary.Outliers) > 0 {
		fmt.Fprintf(tw, "Outliers:\t%s\n", strings.Join(summary.Outliers, ","))
	}
	tw.Flush()
}

func printConflicts(out io.Writer, patterns []domain.ConflictPattern) {
	if len(patterns) == 0 {
		fmt.Fprintln(out, "No active conflicts")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPATTERN\tSEVERITY\tDAYS\tDESCRIPTION")
	for _, c := range patterns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", c.Type, c.Pattern, c.Severity, c.DurationDays, c.Description)
	}
	tw.Flush()
}
