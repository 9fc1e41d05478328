package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/binwrap/internal/codec"
	"github.com/oshokin/binwrap/internal/domain/wrap"
)

const (
	// DirName is the cache directory under the user's home.
	DirName = "unwrapped"

	// ExecutableMode is the mode of a materialized executable.
	ExecutableMode os.FileMode = 0o500

	// DirMode is used when creating cache directories.
	DirMode os.FileMode = 0o755

	ownerWrite os.FileMode = 0o200
)

// DefaultRoot returns <user home>/unwrapped.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, DirName), nil
}

// Path returns where an executable lives under root for the given layout.
func Path(root string, layout wrap.CacheLayout, fileName, checksum string) string {
	if layout == wrap.LayoutContent {
		return filepath.Join(root, checksum, fileName)
	}

	return filepath.Join(root, fileName)
}

// Probe reports whether path holds bytes whose digest equals checksum.
// A missing file is a miss, not an error.
func Probe(path, checksum string) (bool, error) {
	sum, err := codec.DigestFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("probe %s: %w", path, err)
	}

	return sum == checksum, nil
}

// Materialize replaces the file at path with data, verifying it against checksum
// before the swap, and leaves it with ExecutableMode.
func Materialize(path string, data []byte, checksum string) error {
	expected, err := codec.ChecksumBytes(checksum)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), DirMode); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if err = prepareTarget(path); err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: ExecutableMode,
		Checksum:   expected,
		Hash:       codec.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	removeIfExists(sidecar(path, "old"))

	if err = os.Chmod(path, ExecutableMode); err != nil {
		return fmt.Errorf("set executable mode: %w", err)
	}

	return nil
}

// prepareTarget makes sure the replace can proceed: the target exists and is
// writable, and no read-only leftover from an interrupted replace is in the way.
func prepareTarget(path string) error {
	removeIfExists(sidecar(path, "new"))

	info, err := os.Stat(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		file, createErr := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY, 0o600)
		if createErr != nil {
			return fmt.Errorf("create cache file: %w", createErr)
		}

		return file.Close()
	case err != nil:
		return fmt.Errorf("stat cache file: %w", err)
	}

	if err = os.Chmod(path, info.Mode().Perm()|ownerWrite); err != nil {
		return fmt.Errorf("grant write on stale cache file: %w", err)
	}

	return nil
}

// sidecar is the temporary name go-update uses next to path.
func sidecar(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+suffix)
}

func removeIfExists(path string) {
	if _, err := os.Lstat(path); err == nil {
		_ = os.Chmod(path, ownerWrite|0o400)
		_ = os.Remove(path)
	}
}
