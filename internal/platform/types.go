// Package platform names the operating systems a wrapped executable can target
// and detects the one the current process runs on.
//
// Platform values are title-cased ("Linux", "Darwin", "Windows") so they match
// what generated launchers compare against at run time. Detection relies on
// runtime.GOOS; on Linux gopsutil adds distribution details for diagnostics.
package platform

import (
	"context"
	"errors"
)

// Platform is one of the supported target operating systems.
type Platform string

const (
	// Windows is Microsoft Windows (GOOS "windows").
	Windows Platform = "Windows"
	// Linux is any Linux distribution (GOOS "linux").
	Linux Platform = "Linux"
	// Darwin is macOS (GOOS "darwin").
	Darwin Platform = "Darwin"
)

// ErrUnsupported is returned for names outside the supported set.
var ErrUnsupported = errors.New("unsupported platform")

// All returns every supported platform in a stable order.
func All() []Platform {
	return []Platform{Windows, Linux, Darwin}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// Valid reports whether p belongs to the supported set.
func (p Platform) Valid() bool {
	switch p {
	case Windows, Linux, Darwin:
		return true
	default:
		return false
	}
}

// Info describes the host a launcher runs on.
type Info struct {
	Platform Platform // title-cased GOOS
	GOOS     string   // raw runtime.GOOS
	Arch     string   // raw runtime.GOARCH
	Distro   string   // distribution id (Linux only, e.g. "ubuntu")
	Family   string   // distribution family (Linux only, e.g. "debian")
	Version  string   // distribution version (Linux only, e.g. "24.04")
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
