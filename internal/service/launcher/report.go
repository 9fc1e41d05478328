package launcher

import (
	"fmt"
	"io"
	"time"
)

const benchmarkHeader = "------------Benchmarks-------------"

// Report holds the outcome of one launch.
type Report struct {
	// Cold is true when the executable had to be extracted.
	Cold bool
	// Path is the cached executable that was run.
	Path string
	// LauncherRuntime spans the whole launch.
	LauncherRuntime time.Duration
	// ExeRuntime spans the child process only.
	ExeRuntime time.Duration
	// ExitCode is the child's exit status.
	ExitCode int
	// PropagateExitCode mirrors the record flag.
	PropagateExitCode bool
}

// Start returns "cold" or "warm".
func (r *Report) Start() string {
	if r.Cold {
		return "cold"
	}

	return "warm"
}

// ExitStatus is the status the launcher itself should exit with.
func (r *Report) ExitStatus() int {
	if r.PropagateExitCode {
		return r.ExitCode
	}

	return 0
}

// Print writes the benchmark block.
func (r *Report) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "\n\n%s\nstart: %s\nlauncher runtime: %.3f ms\nexe runtime: %.3f ms\n",
		benchmarkHeader,
		r.Start(),
		milliseconds(r.LauncherRuntime),
		milliseconds(r.ExeRuntime))

	return err
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
