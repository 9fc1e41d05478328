package artifact

import (
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/environ"
)

// TimeLayout is the timestamp format written into launchers.
const TimeLayout = time.RFC3339

//go:embed templates/launcher.go.tmpl
var launcherTemplate string

//nolint:gochecknoglobals // Parsed once; the template is immutable.
var launcher = template.Must(template.New("launcher").
	Funcs(template.FuncMap{"quote": strconv.Quote}).
	Parse(launcherTemplate))

// envEntry is one overlay pair in render order.
type envEntry struct {
	Key   string
	Value string
}

// templateData is the flattened, pre-formatted view of a record.
type templateData struct {
	Wrapper           string
	WrapID            string
	Checksum          string
	ChecksumAlgorithm string
	FileName          string
	TargetPlatform    string
	CreatedAt         string
	WrappedAt         string
	PropagateExitCode bool
	ContentAddressed  bool
	Env               []envEntry
	Payload           string
}

// Render writes the launcher source for rec to w.
func Render(w io.Writer, rec *wrap.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if strings.ContainsAny(rec.Wrapper, "\r\n") {
		return fmt.Errorf("wrapper identity %q spans lines: %w", rec.Wrapper, wrap.ErrInvalidRecord)
	}

	data := templateData{
		Wrapper:           rec.Wrapper,
		WrapID:            rec.WrapID,
		Checksum:          rec.Checksum,
		ChecksumAlgorithm: rec.ChecksumAlgorithm,
		FileName:          rec.FileName,
		TargetPlatform:    rec.TargetPlatform.String(),
		CreatedAt:         formatTime(rec.CreatedAt),
		WrappedAt:         formatTime(rec.WrappedAt),
		PropagateExitCode: rec.PropagateExitCode,
		ContentAddressed:  rec.CacheLayout == wrap.LayoutContent,
		Env:               make([]envEntry, 0, len(rec.EnvOverlay)),
		Payload:           rec.EncodedPayload,
	}

	for _, key := range environ.Keys(rec.EnvOverlay) {
		data.Env = append(data.Env, envEntry{Key: key, Value: rec.EnvOverlay[key]})
	}

	if err := launcher.Execute(w, data); err != nil {
		return fmt.Errorf("render launcher: %w", err)
	}

	return nil
}

// RenderBytes is Render into memory.
func RenderBytes(rec *wrap.Record) ([]byte, error) {
	var builder strings.Builder

	if err := Render(&builder, rec); err != nil {
		return nil, err
	}

	return []byte(builder.String()), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(TimeLayout)
}
