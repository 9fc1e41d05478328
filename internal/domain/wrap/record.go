package wrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/binwrap/internal/codec"
	"github.com/oshokin/binwrap/internal/platform"
)

// CacheLayout decides where a launcher materializes its executable.
type CacheLayout string

const (
	// LayoutFlat stores the executable at <cache root>/<file name>.
	LayoutFlat CacheLayout = "flat"
	// LayoutContent stores it at <cache root>/<checksum>/<file name>, so
	// different builds with the same name never share a slot.
	LayoutContent CacheLayout = "content"
)

// ParseCacheLayout validates a layout name; empty means LayoutFlat.
func ParseCacheLayout(name string) (CacheLayout, error) {
	switch layout := CacheLayout(strings.ToLower(strings.TrimSpace(name))); layout {
	case "":
		return LayoutFlat, nil
	case LayoutFlat, LayoutContent:
		return layout, nil
	default:
		return "", fmt.Errorf("cache layout %q (want %q or %q): %w", name, LayoutFlat, LayoutContent, ErrInvalidRecord)
	}
}

// ErrInvalidRecord is returned by Validate for incomplete or inconsistent records.
var ErrInvalidRecord = errors.New("invalid wrap record")

// Record is the metadata and payload embedded in one launcher.
type Record struct {
	// Wrapper identifies the tool and version that produced the launcher.
	Wrapper string
	// WrapID uniquely identifies the wrap operation.
	WrapID string
	// FileName is the base name of the wrapped executable and its cache file name.
	FileName string
	// TargetPlatform is the platform the executable was built for.
	TargetPlatform platform.Platform
	// Checksum is the hex digest of the uncompressed executable.
	Checksum string
	// ChecksumAlgorithm names the digest function.
	ChecksumAlgorithm string
	// CreatedAt is the executable's filesystem creation time (informational).
	CreatedAt time.Time
	// WrappedAt is when the launcher was generated (informational).
	WrappedAt time.Time
	// EnvOverlay is merged over the ambient environment of the executable.
	EnvOverlay map[string]string
	// PropagateExitCode makes the launcher exit with the executable's status.
	PropagateExitCode bool
	// CacheLayout selects the cache path scheme.
	CacheLayout CacheLayout
	// EncodedPayload is the compressed, base64-encoded executable.
	EncodedPayload string
}

// Validate checks that the record can be rendered and launched.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is not set: %w", ErrInvalidRecord)
	}

	switch {
	case r.FileName == "":
		return fmt.Errorf("file name is empty: %w", ErrInvalidRecord)
	case strings.ContainsAny(r.FileName, `/\`) || r.FileName == "." || r.FileName == "..":
		return fmt.Errorf("file name %q is not a base name: %w", r.FileName, ErrInvalidRecord)
	case !r.TargetPlatform.Valid():
		return fmt.Errorf("target platform %q: %w", r.TargetPlatform, ErrInvalidRecord)
	case r.ChecksumAlgorithm != codec.Algorithm:
		return fmt.Errorf("checksum algorithm %q (want %q): %w", r.ChecksumAlgorithm, codec.Algorithm, ErrInvalidRecord)
	case r.EncodedPayload == "":
		return fmt.Errorf("payload is empty: %w", ErrInvalidRecord)
	}

	if _, err := codec.ChecksumBytes(r.Checksum); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if _, err := ParseCacheLayout(string(r.CacheLayout)); err != nil {
		return err
	}

	for key := range r.EnvOverlay {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return fmt.Errorf("environment key %q: %w", key, ErrInvalidRecord)
		}
	}

	return nil
}

// Payload decodes the embedded executable and checks it against Checksum.
func (r *Record) Payload() ([]byte, error) {
	data, err := codec.Decode(r.EncodedPayload)
	if err != nil {
		return nil, err
	}

	if sum := codec.Digest(data); sum != r.Checksum {
		return nil, fmt.Errorf("payload checksum %s does not match %s: %w", sum, r.Checksum, ErrChecksumMismatch)
	}

	return data, nil
}

// ErrChecksumMismatch is returned when decoded bytes do not hash to the recorded checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")
