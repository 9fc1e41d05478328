package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultFilename is the journal database name inside the cache directory.
const DefaultFilename = "binwrap-journal.db"

// timeLayout keeps lexical and chronological order equal.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultLimit is used by the Recent* queries when limit is not positive.
const DefaultLimit = 20

// ErrClosed is returned when the journal is used after Close.
var ErrClosed = errors.New("journal is closed")

// Wrap is one generated launcher.
type Wrap struct {
	ID           string
	FileName     string
	Checksum     string
	Target       string
	OutputPath   string
	PayloadBytes int
	WrappedAt    time.Time
}

// Run is one launch performed by the module launcher.
type Run struct {
	ID         string
	WrapID     string
	FileName   string
	Checksum   string
	Cold       bool
	LauncherMS float64
	ExeMS      float64
	ExitCode   int
	StartedAt  time.Time
}

// Recorder is the write side used by the services.
type Recorder interface {
	RecordWrap(ctx context.Context, entry *Wrap) error
	RecordRun(ctx context.Context, entry *Run) error
}

// Journal is a SQLite-backed Recorder.
type Journal struct {
	db *sql.DB
}

var _ Recorder = (*Journal)(nil)

// NewID returns a time-ordered identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Open creates or opens the journal at path, creating parent directories.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err = db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}

	err := j.db.Close()
	j.db = nil

	return err
}

// RecordWrap stores entry, assigning an ID and timestamp when missing.
func (j *Journal) RecordWrap(ctx context.Context, entry *Wrap) error {
	if j.db == nil {
		return ErrClosed
	}

	if entry.ID == "" {
		entry.ID = NewID()
	}

	if entry.WrappedAt.IsZero() {
		entry.WrappedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO wraps (id, file_name, checksum, target, output_path, payload_bytes, wrapped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		entry.ID,
		entry.FileName,
		entry.Checksum,
		entry.Target,
		entry.OutputPath,
		entry.PayloadBytes,
		formatTime(entry.WrappedAt),
	)
	if err != nil {
		return fmt.Errorf("record wrap: %w", err)
	}

	return nil
}

// RecordRun stores entry, assigning an ID and timestamp when missing.
func (j *Journal) RecordRun(ctx context.Context, entry *Run) error {
	if j.db == nil {
		return ErrClosed
	}

	if entry.ID == "" {
		entry.ID = NewID()
	}

	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, wrap_id, file_name, checksum, cold, launcher_ms, exe_ms, exit_code, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		entry.ID,
		entry.WrapID,
		entry.FileName,
		entry.Checksum,
		entry.Cold,
		entry.LauncherMS,
		entry.ExeMS,
		entry.ExitCode,
		formatTime(entry.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	return nil
}

// RecentWraps returns up to limit wraps, newest first.
func (j *Journal) RecentWraps(ctx context.Context, limit int) ([]*Wrap, error) {
	if j.db == nil {
		return nil, ErrClosed
	}

	limit = normalizeLimit(limit)

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, file_name, checksum, target, output_path, payload_bytes, wrapped_at
		FROM wraps
		ORDER BY wrapped_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query wraps: %w", err)
	}
	defer rows.Close()

	result := make([]*Wrap, 0, limit)

	for rows.Next() {
		var (
			entry     Wrap
			wrappedAt string
		)

		err = rows.Scan(&entry.ID, &entry.FileName, &entry.Checksum, &entry.Target,
			&entry.OutputPath, &entry.PayloadBytes, &wrappedAt)
		if err != nil {
			return nil, fmt.Errorf("scan wrap: %w", err)
		}

		if entry.WrappedAt, err = parseTime(wrappedAt); err != nil {
			return nil, err
		}

		result = append(result, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wraps: %w", err)
	}

	return result, nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if j.db == nil {
		return nil, ErrClosed
	}

	limit = normalizeLimit(limit)

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, wrap_id, file_name, checksum, cold, launcher_ms, exe_ms, exit_code, started_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	result := make([]*Run, 0, limit)

	for rows.Next() {
		var (
			entry     Run
			startedAt string
		)

		err = rows.Scan(&entry.ID, &entry.WrapID, &entry.FileName, &entry.Checksum, &entry.Cold,
			&entry.LauncherMS, &entry.ExeMS, &entry.ExitCode, &startedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if entry.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}

		result = append(result, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return result, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}

	return limit
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse journal timestamp %q: %w", raw, err)
	}

	return parsed, nil
}
