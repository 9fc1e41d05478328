package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/binwrap/internal/config"
	"github.com/oshokin/binwrap/internal/logger"
	"github.com/oshokin/binwrap/internal/repository/journal"
	"github.com/oshokin/binwrap/internal/service/packager"
	"github.com/oshokin/binwrap/internal/version"
)

var (
	// configPath to the configuration YAML file; empty means the optional default file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string

	// settings is loaded once before any command runs.
	settings *config.Config

	// exitStatus is set by commands that finish successfully but must not exit 0.
	exitStatus int

	// wrapOptions collects the wrap flags.
	wrapOptions packager.Options

	// rootCmd wraps an executable into a launcher source file.
	rootCmd = &cobra.Command{
		Use:   "binwrap <executable>",
		Short: "Wrap an executable into a self-contained Go launcher",
		Long: "Wrap an executable into a single Go source file. Running the file with `go run` " +
			"extracts the executable into <home>/unwrapped, verifies it and runs it with the given arguments.\n\n" +
			"An executable named like a subcommand (run, inspect, history, version) must be given " +
			"with a path, for example ./run.",
		Args:              cobra.ExactArgs(1),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			recorder, closeJournal := openJournal(ctx)
			defer closeJournal()

			options := wrapOptions
			options.Executable = args[0]
			options.Journal = recorder

			if !cmd.Flags().Changed("cache-layout") {
				options.CacheLayout = string(settings.CacheLayout)
			}

			result, err := packager.Run(ctx, &options)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.OutputPath)

			return err
		},
	}
)

// Execute runs the binwrap CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
		os.Exit(1)
	}

	if exitStatus != 0 {
		os.Exit(exitStatus)
	}
}

// loadSettings reads the configuration and applies the log level.
func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	lvl, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	logger.SetLevel(lvl)

	settings = cfg

	return nil
}

// openJournal returns a recorder for the configured journal. The journal file
// is opened on the first record, so a command that fails before recording
// leaves the filesystem untouched. The returned close function is always safe to call.
func openJournal(ctx context.Context) (journal.Recorder, func()) {
	if settings.DisableJournal {
		return nil, func() {}
	}

	j := journal.NewLazy(settings.JournalPath)

	return j, func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close journal", "error", closeErr)
		}
	}
}

var (
	// errJournalDisabled is returned by history when the journal is turned off.
	errJournalDisabled = errors.New("the journal is disabled in the configuration")
	// errUnknownLogLevel is returned for an unrecognized --log-level value.
	errUnknownLogLevel = errors.New("unknown log level")
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel,
		"log level: debug, info, warn, error")

	flags := rootCmd.Flags()
	flags.StringVarP(&wrapOptions.Output, "output", "o", "",
		"launcher path (default <executable>"+packager.OutputSuffix+")")
	flags.StringVarP(&wrapOptions.Target, "target", "t", "",
		"target platform: Windows, Linux or Darwin (default: the current platform)")
	flags.StringArrayVarP(&wrapOptions.Env, "env", "e", nil,
		"environment variable for the executable, KEY=VALUE; repeatable")
	flags.BoolVar(&wrapOptions.PropagateExitCode, "propagate-exit-code", false,
		"make the launcher exit with the executable's exit status")
	flags.StringVar(&wrapOptions.CacheLayout, "cache-layout", "",
		"cache layout: flat or content (default from configuration)")

	rootCmd.AddCommand(runCmd, inspectCmd, historyCmd)
}
