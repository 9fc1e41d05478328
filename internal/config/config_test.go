package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/binwrap/internal/cache"
	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/repository/journal"
)

// TestValidate_Defaults fills every empty field.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	settings := new(Config)
	require.NoError(t, Validate(settings))

	root, err := cache.DefaultRoot()
	require.NoError(t, err)

	require.Equal(t, root, settings.CacheDir)
	require.Equal(t, wrap.LayoutFlat, settings.CacheLayout)
	require.Equal(t, DefaultLockTimeout, settings.LockTimeout)
	require.Equal(t, filepath.Join(root, journal.DefaultFilename), settings.JournalPath)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)
	require.False(t, settings.DisableJournal)
}

// TestValidate checks rejected and normalized values.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))
	require.Error(t, Validate(&Config{CacheLayout: "nested"}))
	require.Error(t, Validate(&Config{LockTimeout: -time.Second}))
	require.Error(t, Validate(&Config{LogLevel: "loud"}))

	settings := &Config{CacheDir: "/var/cache/bw", CacheLayout: "Content", LogLevel: "warning"}
	require.NoError(t, Validate(settings))
	require.Equal(t, wrap.LayoutContent, settings.CacheLayout)
	require.Equal(t, filepath.Join("/var/cache/bw", journal.DefaultFilename), settings.JournalPath)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	settings = &Config{CacheDir: "~/bw-cache"}
	require.NoError(t, Validate(settings))
	require.Equal(t, filepath.Join(home, "bw-cache"), settings.CacheDir)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		CacheDir:       filepath.Join(dir, "cache"),
		CacheLayout:    wrap.LayoutContent,
		LockTimeout:    90 * time.Second,
		DisableJournal: true,
		LogLevel:       "debug",
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
}

// TestLoad_ParsesDurations reads human-written YAML.
func TestLoad_ParsesDurations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	contents := "cache_dir: /opt/bw\nlock_timeout: 2m\nlog_level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/bw", loaded.CacheDir)
	require.Equal(t, 2*time.Minute, loaded.LockTimeout)
	require.Equal(t, "error", loaded.LogLevel)
}

// TestLoad_MissingExplicitFile fails when a named file is absent.
func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSave_Nil refuses a nil configuration.
func TestSave_Nil(t *testing.T) {
	t.Parallel()

	require.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}
