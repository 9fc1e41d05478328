package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParse accepts any casing of the supported names and rejects the rest.
func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string]Platform{
		"linux":    Linux,
		"LINUX":    Linux,
		" Darwin ": Darwin,
		"dArWiN":   Darwin,
		"windows":  Windows,
		"Windows":  Windows,
	}
	for input, want := range cases {
		got, err := Parse(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"", "   ", "plan9", "freebsd", "win"} {
		_, err := Parse(bad)
		require.ErrorIs(t, err, ErrUnsupported, bad)
	}
}

// TestFromGOOS title-cases runtime names, including unsupported ones.
func TestFromGOOS(t *testing.T) {
	t.Parallel()

	require.Equal(t, Linux, FromGOOS("linux"))
	require.Equal(t, Darwin, FromGOOS("darwin"))
	require.Equal(t, Windows, FromGOOS("windows"))
	require.Equal(t, Platform("Freebsd"), FromGOOS("freebsd"))
	require.False(t, FromGOOS("freebsd").Valid())
}

// TestRealDetector reports the runtime platform.
func TestRealDetector(t *testing.T) {
	t.Parallel()

	info, err := NewDetector().Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, Host(), info.Platform)
	require.Equal(t, runtime.GOOS, info.GOOS)
	require.Equal(t, runtime.GOARCH, info.Arch)
}

// TestStaticDetector returns the pinned platform.
func TestStaticDetector(t *testing.T) {
	t.Parallel()

	info, err := StaticDetector{Platform: Windows}.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, Windows, info.Platform)
	require.Equal(t, "windows", info.GOOS)
}
