package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/binwrap/internal/cache"
	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/logger"
	"github.com/oshokin/binwrap/internal/repository/journal"
)

// Config holds settings shared by the binwrap commands.
type Config struct {
	// CacheDir is where the module launcher materializes executables.
	CacheDir string `yaml:"cache_dir"`
	// CacheLayout is the default layout for new launchers.
	CacheLayout wrap.CacheLayout `yaml:"cache_layout"`
	// LockTimeout bounds the wait for another process extracting the same entry.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// JournalPath is the SQLite history database.
	JournalPath string `yaml:"journal_path"`
	// DisableJournal turns wrap and run recording off.
	DisableJournal bool `yaml:"disable_journal"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the working directory.
	DefaultConfigFilename = "binwrap.yaml"

	// DefaultLockTimeout is the default wait for the cache lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultLogLevel is used when log_level is empty.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeTimeout is returned for a negative lock timeout.
	errNegativeTimeout = errors.New("lock timeout must not be negative")
	// errUnknownLogLevel is returned for an unrecognized log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a validated configuration with every default applied.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration from path. An empty path selects
// DefaultConfigFilename, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case optional && errors.Is(err, fs.ErrNotExist):
		return Default()
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for empty fields.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	cacheDir, err := expandHome(settings.CacheDir)
	if err != nil {
		return err
	}

	if cacheDir == "" {
		if cacheDir, err = cache.DefaultRoot(); err != nil {
			return err
		}
	}

	settings.CacheDir = cacheDir

	if settings.CacheLayout, err = wrap.ParseCacheLayout(string(settings.CacheLayout)); err != nil {
		return fmt.Errorf("invalid cache layout: %w", err)
	}

	switch {
	case settings.LockTimeout < 0:
		return errNegativeTimeout
	case settings.LockTimeout == 0:
		settings.LockTimeout = DefaultLockTimeout
	}

	if settings.JournalPath, err = expandHome(settings.JournalPath); err != nil {
		return err
	}

	if settings.JournalPath == "" {
		settings.JournalPath = filepath.Join(settings.CacheDir, journal.DefaultFilename)
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%q: %w", settings.LogLevel, errUnknownLogLevel)
	}

	return nil
}

// expandHome resolves a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
