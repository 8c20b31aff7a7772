package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/allostat/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	format     string
}

func (o *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	fs.StringVar(&o.format, "format", "auto", "Output format (auto|table|json)")
}

// load reads the configuration and applies the log level override
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := setupLogging(cfg.Log.Level, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// jsonOutput reports whether results should be printed as JSON
func (o *globalOptions) jsonOutput(out io.Writer) bool {
	switch o.format {
	case "json":
		return true
	case "table":
		return false
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// setupLogging uses a console writer on a terminal and JSON lines otherwise
func setupLogging(level string, out *os.File) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if term.IsTerminal(int(out.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     appName,
		Short:   "Adaptive allostatic load scoring",
		Version: version,
		Long: `allostat scores daily wellbeing entries into a smoothed allostatic load index (sALI).

Weights adapt to each metric's correlation with energy, its volatility and the active
conflict patterns. Run 'allostat serve' for the HTTP API, or use the offline
commands ('score', 'validate', 'conflicts') on a JSON file of entries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(opts),
		newScoreCmd(opts),
		newValidateCmd(opts),
		newConflictsCmd(opts),
		newStatusCmd(opts),
		newBackfillCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}
