// Package integration holds end-to-end tests that wrap an executable, run the
// result through both launcher runtimes and read the journal back.
package integration
