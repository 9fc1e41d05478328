package artifact

import (
	"bytes"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/binwrap/internal/codec"
	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/platform"
)

func newRecord(t *testing.T, data []byte) *wrap.Record {
	t.Helper()

	encoded, err := codec.Encode(data)
	require.NoError(t, err)

	return &wrap.Record{
		Wrapper:           "binwrap 0.3.0",
		WrapID:            "0192b3c4-d5e6-7f80-9a1b-2c3d4e5f6a7b",
		FileName:          "tool.bin",
		TargetPlatform:    platform.Linux,
		Checksum:          codec.Digest(data),
		ChecksumAlgorithm: codec.Algorithm,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		WrappedAt:         time.Date(2026, 1, 3, 4, 5, 6, 0, time.UTC),
		EnvOverlay:        map[string]string{"GREETING": "hello world", "MODE": "fast"},
		CacheLayout:       wrap.LayoutFlat,
		EncodedPayload:    encoded,
	}
}

// TestRender_IsGoSource checks the launcher is a parseable, ignored main package.
func TestRender_IsGoSource(t *testing.T) {
	t.Parallel()

	src, err := RenderBytes(newRecord(t, []byte("HELLOWORLD")))
	require.NoError(t, err)

	file, err := parser.ParseFile(token.NewFileSet(), "launcher.go", src, parser.ParseComments)
	require.NoError(t, err)
	require.Equal(t, "main", file.Name.Name)

	text := string(src)
	require.True(t, strings.HasPrefix(text, "// Code generated by binwrap 0.3.0; DO NOT EDIT.\n"))
	require.Contains(t, text, "//go:build ignore\n")
	require.Contains(t, text, `checksum          = "3ad621e05dee86432843e6c43278131ee8b7a471"`)
	require.Contains(t, text, `targetPlatform    = "Linux"`)
	require.Contains(t, text, `"GREETING": "hello world",`)
}

// TestRender_RoundTrip parses back exactly what was rendered.
func TestRender_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := map[string]func(r *wrap.Record){
		"defaults":        func(*wrap.Record) {},
		"no env":          func(r *wrap.Record) { r.EnvOverlay = map[string]string{} },
		"quoted name":     func(r *wrap.Record) { r.FileName = `my "tool" v2.exe` },
		"unicode name":    func(r *wrap.Record) { r.FileName = "инструмент 工具" },
		"tricky env":      func(r *wrap.Record) { r.EnvOverlay = map[string]string{"PATH": "/a:/b", "Q": "x\"y\\z\nw", "EMPTY": ""} },
		"windows target":  func(r *wrap.Record) { r.TargetPlatform = platform.Windows },
		"content layout":  func(r *wrap.Record) { r.CacheLayout = wrap.LayoutContent },
		"propagate codes": func(r *wrap.Record) { r.PropagateExitCode = true },
		"zero times":      func(r *wrap.Record) { r.CreatedAt, r.WrappedAt = time.Time{}, time.Time{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			want := newRecord(t, []byte("HELLOWORLD"))
			mutate(want)

			src, err := RenderBytes(want)
			require.NoError(t, err)

			got, err := Parse(src)
			require.NoError(t, err)
			require.Equal(t, want, got)

			payload, err := got.Payload()
			require.NoError(t, err)
			require.Equal(t, []byte("HELLOWORLD"), payload)
		})
	}
}

// TestRender_Invalid refuses records that fail validation.
func TestRender_Invalid(t *testing.T) {
	t.Parallel()

	rec := newRecord(t, []byte("HELLOWORLD"))
	rec.FileName = "../escape"

	var buf bytes.Buffer
	require.ErrorIs(t, Render(&buf, rec), wrap.ErrInvalidRecord)
	require.Zero(t, buf.Len())

	rec = newRecord(t, []byte("HELLOWORLD"))
	rec.Wrapper = "binwrap\npackage evil"
	require.ErrorIs(t, Render(&buf, rec), wrap.ErrInvalidRecord)
}

// TestParse_Malformed rejects sources that are not readable launchers.
func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	src, err := RenderBytes(newRecord(t, []byte("HELLOWORLD")))
	require.NoError(t, err)

	valid := string(src)

	cases := map[string]string{
		"not go":          "this is not go",
		"empty package":   "package main\n",
		"missing payload": strings.Replace(valid, "const payload =", "const other =", 1),
		"bad flag":        strings.Replace(valid, "propagateExitCode = false", `propagateExitCode = "no"`, 1),
		"bad time":        strings.Replace(valid, `"2026-01-02T03:04:05Z"`, `"yesterday"`, 1),
		"bad platform":    strings.Replace(valid, `targetPlatform    = "Linux"`, `targetPlatform    = "Plan9"`, 1),
		"non literal env": strings.Replace(valid, `"MODE": "fast"`, `"MODE": os.Getenv("X")`, 1),
	}

	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(source))
			require.ErrorIs(t, err, ErrMalformedArtifact)
		})
	}
}

// TestParse_HandEditedEnv accepts overlay entries added by hand.
func TestParse_HandEditedEnv(t *testing.T) {
	t.Parallel()

	src, err := RenderBytes(newRecord(t, []byte("HELLOWORLD")))
	require.NoError(t, err)

	edited := strings.Replace(string(src), `"MODE": "fast",`, "\"MODE\": \"fast\",\n\t`RAW`: `value`,", 1)

	rec, err := Parse([]byte(edited))
	require.NoError(t, err)
	require.Equal(t, "value", rec.EnvOverlay["RAW"])
}

// TestParseFile reads a launcher from disk.
func TestParseFile(t *testing.T) {
	t.Parallel()

	want := newRecord(t, []byte("HELLOWORLD"))

	src, err := RenderBytes(want)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tool.bin.wrapped.go")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	got, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.go"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestSummary_Golden pins the inspect output format.
func TestSummary_Golden(t *testing.T) {
	t.Parallel()

	rec := newRecord(t, []byte("HELLOWORLD"))
	rec.EncodedPayload = strings.Repeat("A", 24)

	summary := NewSummary(rec)
	summary.MarkVerified(true)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteYAML(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "summary", buf.Bytes())
}
