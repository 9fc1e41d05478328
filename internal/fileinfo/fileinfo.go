// Package fileinfo reads file timestamps the os package does not expose
// portably, chiefly the creation (birth) time of a file.
package fileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreationTime returns when the file at path was created, in UTC.
// Filesystems that do not record a birth time yield the modification time.
func CreationTime(path string) (time.Time, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	created, ok := birthTime(path, info)
	if !ok {
		created = info.ModTime()
	}

	return created.UTC(), nil
}
