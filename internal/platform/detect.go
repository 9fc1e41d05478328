package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using the Go runtime and gopsutil.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() *RealDetector {
	return &RealDetector{}
}

// Detect returns the host platform. On Linux, distribution details come from
// gopsutil; a failed lookup leaves them empty unless ctx was canceled.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		Platform: FromGOOS(runtime.GOOS),
		GOOS:     runtime.GOOS,
		Arch:     runtime.GOARCH,
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	distro, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}

		return info, nil
	}

	info.Distro = strings.ToLower(strings.TrimSpace(distro))
	info.Family = strings.ToLower(strings.TrimSpace(family))
	info.Version = strings.TrimSpace(version)

	return info, nil
}

// StaticDetector reports a fixed platform. It lets callers pin the detected
// platform, for example to rehearse a launch for another target.
type StaticDetector struct {
	Platform Platform
}

// Detect returns an Info carrying only the fixed platform.
func (d StaticDetector) Detect(context.Context) (*Info, error) {
	return &Info{
		Platform: d.Platform,
		GOOS:     strings.ToLower(string(d.Platform)),
		Arch:     runtime.GOARCH,
	}, nil
}
