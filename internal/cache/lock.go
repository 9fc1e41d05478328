package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
)

const (
	// LockSuffix is appended to a cache path to name its lock file.
	LockSuffix = ".lock"

	// DefaultStaleAfter is the age after which a lock with no verifiable owner is broken.
	DefaultStaleAfter = 10 * time.Minute

	// DefaultPollInterval is the wait between acquisition attempts.
	DefaultPollInterval = 50 * time.Millisecond
)

// ErrLockTimeout is returned when a lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for cache lock")

// LockOptions tunes AcquireLock. Zero values select the defaults.
type LockOptions struct {
	// Timeout bounds the wait; zero means a single attempt after stale cleanup.
	Timeout time.Duration
	// StaleAfter is the age at which a lock whose owner cannot be checked is considered abandoned.
	StaleAfter time.Duration
	// PollInterval is the wait between attempts.
	PollInterval time.Duration
}

// Lock is an advisory lock file held by this process.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock file for the cache entry at path, waiting while
// another live process holds it.
func AcquireLock(ctx context.Context, path string, opts LockOptions) (*Lock, error) {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	lockPath := path + LockSuffix

	if err := os.MkdirAll(filepath.Dir(lockPath), DirMode); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	deadline := time.Now().Add(opts.Timeout)

	for {
		lock, err := tryLock(lockPath)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		if judged, stale := isLockStale(lockPath, opts.StaleAfter); stale {
			breakStaleLock(lockPath, judged)
			continue
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", lockPath, ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}

	if l.path == "" {
		return nil
	}

	err := os.Remove(l.path)
	l.path = ""

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	return nil
}

func tryLock(lockPath string) (*Lock, error) {
	file, err := os.OpenFile(filepath.Clean(lockPath), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		return nil, fmt.Errorf("create lock file: %w", err)
	}

	contents := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))

	if _, err = file.WriteString(contents); err == nil {
		err = file.Sync()
	}

	if err != nil {
		_ = file.Close()
		_ = os.Remove(lockPath)

		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// isLockStale reports whether the lock's owner is gone. The age rule applies
// only when the owner pid cannot be read or looked up. The returned info
// identifies the file that was judged.
func isLockStale(lockPath string, staleAfter time.Duration) (os.FileInfo, bool) {
	file, err := os.Open(filepath.Clean(lockPath))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, false
	}

	if pid, ok := readLockOwner(file); ok {
		if pid == os.Getpid() {
			return info, false
		}

		process, err := ps.FindProcess(pid)
		if err == nil {
			return info, process == nil
		}
	}

	return info, time.Since(info.ModTime()) > staleAfter
}

// breakStaleLock moves the judged lock aside under a unique name before
// removing it, so a waiter never deletes a lock another waiter has just taken.
// A lock that turns out to be a different file is put back.
func breakStaleLock(lockPath string, judged os.FileInfo) {
	aside := fmt.Sprintf("%s.stale.%d.%d", lockPath, os.Getpid(), time.Now().UnixNano())

	if err := os.Rename(lockPath, aside); err != nil {
		return
	}

	defer os.Remove(aside)

	moved, err := os.Stat(aside)
	if err != nil || os.SameFile(judged, moved) {
		return
	}

	_ = os.Link(aside, lockPath)
}

func readLockOwner(r io.Reader) (int, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		value, found := strings.CutPrefix(scanner.Text(), "pid=")
		if !found {
			continue
		}

		pid, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || pid <= 0 {
			return 0, false
		}

		return pid, true
	}

	return 0, false
}
