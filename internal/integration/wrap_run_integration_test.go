package integration

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/binwrap/internal/artifact"
	"github.com/oshokin/binwrap/internal/cache"
	"github.com/oshokin/binwrap/internal/codec"
	"github.com/oshokin/binwrap/internal/platform"
	"github.com/oshokin/binwrap/internal/repository/journal"
	"github.com/oshokin/binwrap/internal/service/launcher"
	"github.com/oshokin/binwrap/internal/service/packager"
)

const greeterScript = "#!/bin/sh\necho \"$GREETING, $1\"\n"

// writeScript creates an executable shell script in a fresh directory.
func writeScript(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script payloads need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "greeter")
	require.NoError(t, os.WriteFile(path, []byte(greeterScript), 0o755))

	return path
}

// TestWrapThenRun wraps a script, runs it twice through the module launcher
// and checks the journal history.
func TestWrapThenRun(t *testing.T) {
	exe := writeScript(t)
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j, err := journal.Open(filepath.Join(dir, journal.DefaultFilename))
	require.NoError(t, err)

	defer j.Close()

	result, err := packager.Run(ctx, &packager.Options{
		Executable: exe,
		Env:        []string{"GREETING=Hello"},
		ToolPath:   filepath.Join(dir, "binwrap"),
		Journal:    j,
	})
	require.NoError(t, err)

	var stdout bytes.Buffer

	options := &launcher.Options{
		ArtifactPath: result.OutputPath,
		Args:         []string{"world"},
		CacheDir:     filepath.Join(dir, cache.DirName),
		LockTimeout:  time.Second,
		Detector:     platform.StaticDetector{Platform: platform.Host()},
		Environ:      []string{"PATH=" + os.Getenv("PATH"), "GREETING=Bye"},
		Stdout:       &stdout,
		Journal:      j,
	}

	first, err := launcher.Run(ctx, options)
	require.NoError(t, err)
	require.True(t, first.Cold)

	second, err := launcher.Run(ctx, options)
	require.NoError(t, err)
	require.False(t, second.Cold)

	require.Equal(t, 2, strings.Count(stdout.String(), "Hello, world\n"))

	wraps, err := j.RecentWraps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, wraps, 1)
	require.Equal(t, result.Record.WrapID, wraps[0].ID)
	require.Equal(t, "greeter", wraps[0].FileName)

	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.False(t, runs[0].Cold)
	require.True(t, runs[1].Cold)
	require.Equal(t, result.Record.WrapID, runs[0].WrapID)
}

// TestGeneratedLauncher runs the rendered source with the Go toolchain and
// checks cold start, warm start and recovery from a tampered cache copy.
func TestGeneratedLauncher(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles the generated launcher")
	}

	goBinary, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not in PATH")
	}

	exe := writeScript(t)
	home := t.TempDir()

	result, err := packager.Run(context.Background(), &packager.Options{
		Executable: exe,
		Env:        []string{"GREETING=Hi"},
		ToolPath:   filepath.Join(home, "binwrap"),
	})
	require.NoError(t, err)

	goCache, err := exec.Command(goBinary, "env", "GOCACHE").Output()
	require.NoError(t, err)

	env := append(os.Environ(), "HOME="+home, "GOCACHE="+strings.TrimSpace(string(goCache)))

	runLauncher := func() string {
		t.Helper()

		cmd := exec.Command(goBinary, "run", result.OutputPath, "there")
		cmd.Dir = filepath.Dir(result.OutputPath)
		cmd.Env = env

		output, runErr := cmd.CombinedOutput()
		require.NoError(t, runErr, string(output))

		return string(output)
	}

	cached := filepath.Join(home, cache.DirName, "greeter")

	output := runLauncher()
	require.Contains(t, output, "Hi, there\n")
	require.Contains(t, output, "------------Benchmarks-------------\nstart: cold\n")

	info, err := os.Stat(cached)
	require.NoError(t, err)
	require.Equal(t, cache.ExecutableMode, info.Mode().Perm())

	output = runLauncher()
	require.Contains(t, output, "start: warm\n")

	require.NoError(t, os.Chmod(cached, 0o700))
	require.NoError(t, os.WriteFile(cached, []byte("#!/bin/sh\necho tampered\n"), 0o700))

	output = runLauncher()
	require.Contains(t, output, "start: cold\n")
	require.NotContains(t, output, "tampered")

	restored, err := os.ReadFile(cached)
	require.NoError(t, err)
	require.Equal(t, result.Record.Checksum, codec.Digest(restored))

	parsed, err := artifact.ParseFile(result.OutputPath)
	require.NoError(t, err)
	require.Equal(t, result.Record.Checksum, parsed.Checksum)
}

// TestGeneratedLauncher_PlatformMismatch exits non-zero without creating the cache.
func TestGeneratedLauncher_PlatformMismatch(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles the generated launcher")
	}

	goBinary, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not in PATH")
	}

	exe := writeScript(t)
	home := t.TempDir()

	other := platform.Windows
	if platform.Host() == platform.Windows {
		other = platform.Linux
	}

	result, err := packager.Run(context.Background(), &packager.Options{
		Executable: exe,
		Target:     other.String(),
		ToolPath:   filepath.Join(home, "binwrap"),
	})
	require.NoError(t, err)

	goCache, err := exec.Command(goBinary, "env", "GOCACHE").Output()
	require.NoError(t, err)

	cmd := exec.Command(goBinary, "run", result.OutputPath)
	cmd.Dir = filepath.Dir(result.OutputPath)
	cmd.Env = append(os.Environ(), "HOME="+home, "GOCACHE="+strings.TrimSpace(string(goCache)))

	output, err := cmd.CombinedOutput()
	require.Error(t, err)
	require.Contains(t, string(output),
		"Failed: the executable targets the "+other.String()+" platform but you are running on the "+
			platform.Host().String()+" platform.")
	require.NoDirExists(t, filepath.Join(home, cache.DirName))
}
