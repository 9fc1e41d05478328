// Package environ builds the environment a wrapped executable starts with.
//
// Parse turns KEY=VALUE command line entries into an overlay; Merge lays an
// overlay over an ambient snapshot (os.Environ) without touching either input.
package environ

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrInvalidEntry is returned for overlay entries that are not KEY=VALUE.
var ErrInvalidEntry = errors.New("environment entry must have the form KEY=VALUE")

// Parse builds an overlay from KEY=VALUE entries. Entries split on the first
// "=", so values may contain "=". A later entry replaces an earlier one with
// the same key.
func Parse(entries []string) (map[string]string, error) {
	overlay := make(map[string]string, len(entries))

	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%q: %w", entry, ErrInvalidEntry)
		}

		overlay[key] = value
	}

	return overlay, nil
}

// Merge returns ambient with overlay applied: overlay keys replace ambient
// ones, other ambient entries pass through in their original order, and
// overlay entries follow in key order. Keys compare case-insensitively on
// Windows, where the OS treats them that way.
func Merge(ambient []string, overlay map[string]string) []string {
	return merge(ambient, overlay, runtime.GOOS == "windows")
}

// Keys returns the overlay keys sorted.
func Keys(overlay map[string]string) []string {
	keys := make([]string, 0, len(overlay))
	for key := range overlay {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func merge(ambient []string, overlay map[string]string, foldCase bool) []string {
	normalize := func(key string) string {
		if foldCase {
			return strings.ToUpper(key)
		}

		return key
	}

	overridden := make(map[string]struct{}, len(overlay))
	for key := range overlay {
		overridden[normalize(key)] = struct{}{}
	}

	merged := make([]string, 0, len(ambient)+len(overlay))

	for _, entry := range ambient {
		key, _, _ := strings.Cut(entry, "=")
		if _, found := overridden[normalize(key)]; found {
			continue
		}

		merged = append(merged, entry)
	}

	for _, key := range Keys(overlay) {
		merged = append(merged, key+"="+overlay[key])
	}

	return merged
}
