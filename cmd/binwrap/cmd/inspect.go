package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/binwrap/internal/artifact"
)

// verifyPayload makes inspect decode the payload and check its checksum.
var verifyPayload bool

// inspectCmd prints launcher metadata.
var inspectCmd = &cobra.Command{
	Use:   "inspect <artifact>",
	Short: "Print the metadata embedded in a launcher",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := artifact.ParseFile(args[0])
		if err != nil {
			return err
		}

		summary := artifact.NewSummary(rec)

		var verifyErr error
		if verifyPayload {
			_, verifyErr = rec.Payload()
			summary.MarkVerified(verifyErr == nil)
		}

		if err = summary.WriteYAML(cmd.OutOrStdout()); err != nil {
			return err
		}

		return verifyErr
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	inspectCmd.Flags().BoolVar(&verifyPayload, "verify", false, "decode the payload and check its checksum")
}
