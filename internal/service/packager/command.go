package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/binwrap/internal/artifact"
	"github.com/oshokin/binwrap/internal/codec"
	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/environ"
	"github.com/oshokin/binwrap/internal/fileinfo"
	"github.com/oshokin/binwrap/internal/logger"
	"github.com/oshokin/binwrap/internal/platform"
	"github.com/oshokin/binwrap/internal/repository/journal"
	"github.com/oshokin/binwrap/internal/version"
)

// OutputSuffix is appended to the executable path to name the default output.
const OutputSuffix = ".wrapped.go"

// ArtifactFileMode is the mode of written launchers.
const ArtifactFileMode os.FileMode = 0o644

// Options contains inputs for the packager entry point.
type Options struct {
	// Executable is the binary to wrap.
	Executable string
	// Output is the launcher path; defaults to Executable + OutputSuffix.
	Output string
	// Target is the platform name; defaults to the detected host platform.
	Target string
	// Env holds KEY=VALUE entries for the launcher's environment overlay.
	Env []string
	// PropagateExitCode makes the launcher exit with the executable's status.
	PropagateExitCode bool
	// CacheLayout selects the cache path scheme; empty means flat.
	CacheLayout string
	// ToolPath is the running tool's binary; defaults to os.Executable.
	ToolPath string
	// Detector resolves the host platform when Target is empty.
	Detector platform.Detector
	// Journal records the wrap when set.
	Journal journal.Recorder
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Result describes a written launcher.
type Result struct {
	// Record is what the launcher embeds.
	Record *wrap.Record
	// OutputPath is where the launcher was written.
	OutputPath string
	// Size is the launcher size in bytes.
	Size int
}

// ErrSelfOverwrite is returned when the output path is the running tool.
var ErrSelfOverwrite = errors.New("attempted to overwrite the tool itself")

// errExecutableRequired is returned when no executable is given.
var errExecutableRequired = errors.New("executable path must be provided")

// errNotRegularFile is returned when the executable path is a directory or device.
var errNotRegularFile = errors.New("not a regular file")

// packager holds the resolved options for one wrap.
type packager struct {
	opts   *Options
	output string
	target platform.Platform
	now    time.Time
}

// Run wraps opts.Executable and writes the launcher.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "packager")

	pkg, err := newPackager(ctx, opts)
	if err != nil {
		return nil, err
	}

	return pkg.run(ctx)
}

// newPackager validates options and resolves defaults.
func newPackager(ctx context.Context, opts *Options) (*packager, error) {
	if opts == nil || opts.Executable == "" {
		return nil, errExecutableRequired
	}

	output := opts.Output
	if output == "" {
		output = opts.Executable + OutputSuffix
	}

	target, err := resolveTarget(ctx, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return &packager{
		opts:   opts,
		output: output,
		target: target,
		now:    now().UTC().Truncate(time.Second),
	}, nil
}

// run builds the record, renders it and writes the launcher.
func (p *packager) run(ctx context.Context) (*Result, error) {
	if err := p.ensureNotTool(); err != nil {
		return nil, err
	}

	rec, err := p.buildRecord(ctx)
	if err != nil {
		return nil, err
	}

	src, err := artifact.RenderBytes(rec)
	if err != nil {
		return nil, err
	}

	if err = writeFileAtomically(p.output, src, ArtifactFileMode); err != nil {
		return nil, fmt.Errorf("write launcher: %w", err)
	}

	logger.InfoKV(ctx, "Wrapped executable",
		"executable", p.opts.Executable,
		"output", p.output,
		"target", rec.TargetPlatform,
		"checksum", rec.Checksum,
		"size", len(src))

	p.recordWrap(ctx, rec, len(src))

	return &Result{
		Record:     rec,
		OutputPath: p.output,
		Size:       len(src),
	}, nil
}

// buildRecord reads the executable and collects everything the launcher embeds.
func (p *packager) buildRecord(ctx context.Context) (*wrap.Record, error) {
	info, err := os.Stat(p.opts.Executable)
	if err != nil {
		return nil, fmt.Errorf("stat executable: %w", err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", p.opts.Executable, errNotRegularFile)
	}

	data, err := os.ReadFile(filepath.Clean(p.opts.Executable))
	if err != nil {
		return nil, fmt.Errorf("read executable: %w", err)
	}

	encoded, err := codec.Encode(data)
	if err != nil {
		return nil, err
	}

	overlay, err := environ.Parse(p.opts.Env)
	if err != nil {
		return nil, err
	}

	layout, err := wrap.ParseCacheLayout(p.opts.CacheLayout)
	if err != nil {
		return nil, err
	}

	createdAt, err := fileinfo.CreationTime(p.opts.Executable)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Encoded executable",
		"bytes", len(data),
		"encoded_bytes", len(encoded))

	return &wrap.Record{
		Wrapper:           version.Wrapper(),
		WrapID:            journal.NewID(),
		FileName:          filepath.Base(p.opts.Executable),
		TargetPlatform:    p.target,
		Checksum:          codec.Digest(data),
		ChecksumAlgorithm: codec.Algorithm,
		CreatedAt:         createdAt.Truncate(time.Second),
		WrappedAt:         p.now,
		EnvOverlay:        overlay,
		PropagateExitCode: p.opts.PropagateExitCode,
		CacheLayout:       layout,
		EncodedPayload:    encoded,
	}, nil
}

// ensureNotTool fails when the output would replace the running tool's binary.
func (p *packager) ensureNotTool() error {
	tool := p.opts.ToolPath
	if tool == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate tool binary: %w", err)
		}

		tool = executable
	}

	same, err := samePath(p.output, tool)
	if err != nil {
		return err
	}

	if same {
		return ErrSelfOverwrite
	}

	return nil
}

// recordWrap stores the wrap in the journal; failures only warn.
func (p *packager) recordWrap(ctx context.Context, rec *wrap.Record, size int) {
	if p.opts.Journal == nil {
		return
	}

	output, err := filepath.Abs(p.output)
	if err != nil {
		output = p.output
	}

	entry := &journal.Wrap{
		ID:           rec.WrapID,
		FileName:     rec.FileName,
		Checksum:     rec.Checksum,
		Target:       rec.TargetPlatform.String(),
		OutputPath:   output,
		PayloadBytes: size,
		WrappedAt:    rec.WrappedAt,
	}

	if err = p.opts.Journal.RecordWrap(ctx, entry); err != nil {
		logger.WarnKV(ctx, "Failed to record wrap in journal", "error", err)
	}
}

// resolveTarget parses the requested platform or detects the host.
func resolveTarget(ctx context.Context, opts *Options) (platform.Platform, error) {
	if strings.TrimSpace(opts.Target) != "" {
		return platform.Parse(opts.Target)
	}

	detector := opts.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}

	info, err := detector.Detect(ctx)
	if err != nil {
		return "", fmt.Errorf("detect host platform: %w", err)
	}

	return info.Platform, nil
}
