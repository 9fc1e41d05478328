package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/binwrap/internal/service/launcher"
)

// runCmd launches a wrapped executable without a Go toolchain.
var runCmd = &cobra.Command{
	Use:   "run <artifact> [arguments...]",
	Short: "Run the executable embedded in a launcher",
	Long: "Run the executable embedded in a launcher file the way `go run <artifact>` would, " +
		"with cache locking and run history. Everything after the artifact is passed to the executable.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		recorder, closeJournal := openJournal(ctx)
		defer closeJournal()

		options := &launcher.Options{
			ArtifactPath: args[0],
			Args:         args[1:],
			CacheDir:     settings.CacheDir,
			LockTimeout:  settings.LockTimeout,
			Stdout:       cmd.OutOrStdout(),
			Journal:      recorder,
		}

		report, err := launcher.Run(ctx, options)
		if err != nil {
			return err
		}

		exitStatus = report.ExitStatus()

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Flags after the artifact belong to the executable.
	runCmd.Flags().SetInterspersed(false)
}
