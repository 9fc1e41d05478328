package artifact

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/binwrap/internal/domain/wrap"
)

// Summary is the human-readable description of a launcher printed by
// `binwrap inspect`. The payload itself is reduced to its encoded length.
type Summary struct {
	Wrapper           string            `yaml:"wrapper"`
	WrapID            string            `yaml:"wrap_id"`
	FileName          string            `yaml:"file_name"`
	TargetPlatform    string            `yaml:"target_platform"`
	Checksum          string            `yaml:"checksum"`
	ChecksumAlgorithm string            `yaml:"checksum_algorithm"`
	CreatedUTC        string            `yaml:"created_utc"`
	WrappedUTC        string            `yaml:"wrapped_utc"`
	CacheLayout       string            `yaml:"cache_layout"`
	PropagateExitCode bool              `yaml:"propagate_exit_code"`
	PayloadBytes      int               `yaml:"payload_bytes"`
	Env               map[string]string `yaml:"env,omitempty"`
	Verified          *bool             `yaml:"verified,omitempty"`
}

// NewSummary describes rec.
func NewSummary(rec *wrap.Record) *Summary {
	return &Summary{
		Wrapper:           rec.Wrapper,
		WrapID:            rec.WrapID,
		FileName:          rec.FileName,
		TargetPlatform:    rec.TargetPlatform.String(),
		Checksum:          rec.Checksum,
		ChecksumAlgorithm: rec.ChecksumAlgorithm,
		CreatedUTC:        formatTime(rec.CreatedAt),
		WrappedUTC:        formatTime(rec.WrappedAt),
		CacheLayout:       string(rec.CacheLayout),
		PropagateExitCode: rec.PropagateExitCode,
		PayloadBytes:      len(rec.EncodedPayload),
		Env:               rec.EnvOverlay,
	}
}

// MarkVerified records the outcome of a payload integrity check.
func (s *Summary) MarkVerified(ok bool) {
	s.Verified = &ok
}

// WriteYAML writes s as a YAML document.
func (s *Summary) WriteYAML(w io.Writer) error {
	var builder strings.Builder

	encoder := yaml.NewEncoder(&builder)
	encoder.SetIndent(2)

	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
