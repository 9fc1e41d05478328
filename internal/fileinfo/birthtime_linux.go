package fileinfo

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime asks statx for STATX_BTIME; older kernels and some filesystems omit it.
func birthTime(path string, _ os.FileInfo) (time.Time, bool) {
	var stx unix.Statx_t

	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_STATX_SYNC_AS_STAT, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}

	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
