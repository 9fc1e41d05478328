package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/binwrap/internal/repository/journal"
)

// historyLimit is the number of wraps and runs to list.
var historyLimit int

// historyEntry is the YAML view of the journal.
type historyEntry struct {
	Wraps []wrapRow `yaml:"wraps"`
	Runs  []runRow  `yaml:"runs"`
}

type wrapRow struct {
	ID        string `yaml:"id"`
	FileName  string `yaml:"file_name"`
	Target    string `yaml:"target"`
	Checksum  string `yaml:"checksum"`
	Output    string `yaml:"output"`
	Bytes     int    `yaml:"bytes"`
	WrappedAt string `yaml:"wrapped_at"`
}

type runRow struct {
	ID         string  `yaml:"id"`
	WrapID     string  `yaml:"wrap_id"`
	FileName   string  `yaml:"file_name"`
	Start      string  `yaml:"start"`
	LauncherMS float64 `yaml:"launcher_ms"`
	ExeMS      float64 `yaml:"exe_ms"`
	ExitCode   int     `yaml:"exit_code"`
	StartedAt  string  `yaml:"started_at"`
}

// historyCmd lists recent wraps and runs from the journal.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent wraps and runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settings.DisableJournal {
			return errJournalDisabled
		}

		j, err := journal.Open(settings.JournalPath)
		if err != nil {
			return err
		}

		defer j.Close()

		ctx := cmd.Context()

		wraps, err := j.RecentWraps(ctx, historyLimit)
		if err != nil {
			return err
		}

		runs, err := j.RecentRuns(ctx, historyLimit)
		if err != nil {
			return err
		}

		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)

		if err = encoder.Encode(toHistory(wraps, runs)); err != nil {
			return err
		}

		return encoder.Close()
	},
}

func toHistory(wraps []*journal.Wrap, runs []*journal.Run) *historyEntry {
	entry := &historyEntry{
		Wraps: make([]wrapRow, 0, len(wraps)),
		Runs:  make([]runRow, 0, len(runs)),
	}

	for _, w := range wraps {
		entry.Wraps = append(entry.Wraps, wrapRow{
			ID:        w.ID,
			FileName:  w.FileName,
			Target:    w.Target,
			Checksum:  w.Checksum,
			Output:    w.OutputPath,
			Bytes:     w.PayloadBytes,
			WrappedAt: w.WrappedAt.Local().Format(time.RFC3339),
		})
	}

	for _, r := range runs {
		start := "warm"
		if r.Cold {
			start = "cold"
		}

		entry.Runs = append(entry.Runs, runRow{
			ID:         r.ID,
			WrapID:     r.WrapID,
			FileName:   r.FileName,
			Start:      start,
			LauncherMS: r.LauncherMS,
			ExeMS:      r.ExeMS,
			ExitCode:   r.ExitCode,
			StartedAt:  r.StartedAt.Local().Format(time.RFC3339),
		})
	}

	return entry
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", journal.DefaultLimit, "number of wraps and runs to list")
}
