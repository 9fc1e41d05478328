// Package version exposes build metadata for binwrap.
//
// Version, Commit and BuildTime are injected via ldflags. Wrapper renders the
// identity string stamped into generated launchers.
package version
