package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oshokin/binwrap/internal/artifact"
	"github.com/oshokin/binwrap/internal/cache"
	"github.com/oshokin/binwrap/internal/config"
	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/environ"
	"github.com/oshokin/binwrap/internal/logger"
	"github.com/oshokin/binwrap/internal/platform"
	"github.com/oshokin/binwrap/internal/repository/journal"
)

// Options contains inputs for a launch.
type Options struct {
	// ArtifactPath is the launcher source to run; used by Run only.
	ArtifactPath string
	// Args are passed to the executable unchanged.
	Args []string
	// CacheDir is the cache root; defaults to <home>/unwrapped.
	CacheDir string
	// CacheLayout overrides the record's layout when set.
	CacheLayout string
	// LockTimeout bounds the wait for another process extracting the same entry;
	// zero selects config.DefaultLockTimeout.
	LockTimeout time.Duration
	// Detector reports the running platform; defaults to platform.NewDetector.
	Detector platform.Detector
	// Environ is the ambient environment; defaults to os.Environ.
	Environ []string
	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Journal records the run when set.
	Journal journal.Recorder
}

// ErrPlatformMismatch is matched by *MismatchError.
var ErrPlatformMismatch = errors.New("platform mismatch")

// MismatchError reports a launch on the wrong platform.
type MismatchError struct {
	Target platform.Platform
	Host   platform.Platform
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("the executable targets the %s platform but you are running on the %s platform.",
		e.Target, e.Host)
}

// Is makes errors.Is(err, ErrPlatformMismatch) hold.
func (e *MismatchError) Is(target error) bool {
	return target == ErrPlatformMismatch
}

// Run parses the artifact at opts.ArtifactPath and launches it.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	rec, err := artifact.ParseFile(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}

	return Launch(ctx, rec, opts)
}

// Launch runs the executable embedded in rec and prints the benchmark block
// to opts.Stdout. A non-zero child exit is reported, not returned as an error.
func Launch(ctx context.Context, rec *wrap.Record, opts *Options) (*Report, error) {
	started := time.Now()

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithName(ctx, "launcher")
	ctx = logger.WithKV(ctx, "file", rec.FileName)

	l, err := newLauncher(rec, opts)
	if err != nil {
		return nil, err
	}

	if err = l.checkPlatform(ctx); err != nil {
		return nil, err
	}

	cold, err := l.prepare(ctx)
	if err != nil {
		return nil, err
	}

	exeStarted := time.Now()
	code, err := l.invoke(ctx)
	finished := time.Now()

	if err != nil {
		return nil, err
	}

	report := &Report{
		Cold:              cold,
		Path:              l.path,
		LauncherRuntime:   finished.Sub(started),
		ExeRuntime:        finished.Sub(exeStarted),
		ExitCode:          code,
		PropagateExitCode: rec.PropagateExitCode,
	}

	if err = report.Print(l.stdout); err != nil {
		return nil, fmt.Errorf("print report: %w", err)
	}

	l.recordRun(ctx, report, started)

	return report, nil
}

// launcher holds the resolved state of one launch.
type launcher struct {
	rec         *wrap.Record
	opts        *Options
	path        string
	lockTimeout time.Duration
	detector    platform.Detector
	stdout      io.Writer
}

func newLauncher(rec *wrap.Record, opts *Options) (*launcher, error) {
	if opts == nil {
		opts = new(Options)
	}

	root := opts.CacheDir
	if root == "" {
		defaultRoot, err := cache.DefaultRoot()
		if err != nil {
			return nil, err
		}

		root = defaultRoot
	}

	layout := rec.CacheLayout
	if opts.CacheLayout != "" {
		override, err := wrap.ParseCacheLayout(opts.CacheLayout)
		if err != nil {
			return nil, err
		}

		layout = override
	}

	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = config.DefaultLockTimeout
	}

	detector := opts.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}

	var stdout io.Writer = os.Stdout
	if opts.Stdout != nil {
		stdout = opts.Stdout
	}

	return &launcher{
		rec:         rec,
		opts:        opts,
		path:        cache.Path(root, layout, rec.FileName, rec.Checksum),
		lockTimeout: lockTimeout,
		detector:    detector,
		stdout:      stdout,
	}, nil
}

// checkPlatform refuses to launch on a platform other than the record's target.
func (l *launcher) checkPlatform(ctx context.Context) error {
	info, err := l.detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	logger.DebugKV(ctx, "Detected platform",
		"platform", info.Platform,
		"arch", info.Arch,
		"distro", info.Distro,
		"version", info.Version)

	if info.Platform != l.rec.TargetPlatform {
		return &MismatchError{Target: l.rec.TargetPlatform, Host: info.Platform}
	}

	return nil
}

// prepare makes the cache entry valid and reports whether it was a cold start.
func (l *launcher) prepare(ctx context.Context) (bool, error) {
	lock, err := cache.AcquireLock(ctx, l.path, cache.LockOptions{Timeout: l.lockTimeout})
	if err != nil {
		return false, err
	}

	lockPath := lock.Path()
	logger.DebugKV(ctx, "Acquired cache lock", "lock", lockPath)

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release cache lock", "lock", lockPath, "error", releaseErr)
		}
	}()

	warm, err := cache.Probe(l.path, l.rec.Checksum)
	if err != nil {
		logger.WarnKV(ctx, "Cache probe failed, extracting again", "error", err)
	}

	if warm {
		logger.DebugKV(ctx, "Cache hit", "path", l.path)
		return false, nil
	}

	logger.DebugKV(ctx, "Cache miss, extracting", "path", l.path)

	data, err := l.rec.Payload()
	if err != nil {
		return false, err
	}

	if err = cache.Materialize(l.path, data, l.rec.Checksum); err != nil {
		return false, fmt.Errorf("extract %s: %w", l.rec.FileName, err)
	}

	return true, nil
}

// invoke runs the cached executable and waits for it.
func (l *launcher) invoke(ctx context.Context) (int, error) {
	ambient := l.opts.Environ
	if ambient == nil {
		ambient = os.Environ()
	}

	cmd := exec.Command(commandPath(l.path, runtime.GOOS), l.opts.Args...) //nolint:gosec,noctx // Runs the verified cached executable to completion.
	cmd.Env = environ.Merge(ambient, l.rec.EnvOverlay)
	cmd.Stdin = os.Stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = os.Stderr

	if l.opts.Stdin != nil {
		cmd.Stdin = l.opts.Stdin
	}

	if l.opts.Stderr != nil {
		cmd.Stderr = l.opts.Stderr
	}

	logger.DebugKV(ctx, "Starting executable", "path", cmd.Path, "args", len(l.opts.Args))

	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	if err != nil {
		return -1, fmt.Errorf("run %s: %w", l.path, err)
	}

	return 0, nil
}

// recordRun stores the run in the journal; failures only warn.
func (l *launcher) recordRun(ctx context.Context, report *Report, started time.Time) {
	if l.opts.Journal == nil {
		return
	}

	entry := &journal.Run{
		WrapID:     l.rec.WrapID,
		FileName:   l.rec.FileName,
		Checksum:   l.rec.Checksum,
		Cold:       report.Cold,
		LauncherMS: milliseconds(report.LauncherRuntime),
		ExeMS:      milliseconds(report.ExeRuntime),
		ExitCode:   report.ExitCode,
		StartedAt:  started,
	}

	if err := l.opts.Journal.RecordRun(ctx, entry); err != nil {
		logger.WarnKV(ctx, "Failed to record run in journal", "error", err)
	}
}

// commandPath prefixes a bare relative name with "./" outside Windows so it
// is not looked up in PATH.
func commandPath(path, goos string) string {
	if goos == "windows" || filepath.IsAbs(path) || strings.ContainsAny(path, `/\`) {
		return path
	}

	return "." + string(filepath.Separator) + path
}
