// Package cache manages the per-user directory where launchers materialize
// their executables.
//
// An entry is warm when the file at its path hashes to the recorded checksum.
// Cold entries are rewritten with an atomic, checksum-verified replace and left
// read-only. Entries are never deleted. A Lock serializes probe and extract for
// one path across processes.
package cache
