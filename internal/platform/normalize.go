package platform

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Parse converts a user supplied name such as "linux" or "DARWIN" into a Platform.
func Parse(name string) (Platform, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("empty platform name: %w", ErrUnsupported)
	}

	candidate := Platform(cases.Title(language.Und).String(trimmed))
	if !candidate.Valid() {
		return "", fmt.Errorf("%q (want one of %v): %w", name, All(), ErrUnsupported)
	}

	return candidate, nil
}

// FromGOOS maps a runtime.GOOS value to its title-cased form.
// Values outside the supported set are still title-cased so mismatch
// diagnostics can name them.
func FromGOOS(goos string) Platform {
	return Platform(cases.Title(language.Und).String(goos))
}

// Host returns the platform of the running process.
func Host() Platform {
	return FromGOOS(runtime.GOOS)
}
