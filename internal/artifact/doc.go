// Package artifact renders wrap records into launcher source files and reads
// them back.
//
// A launcher is a single Go file (package main, standard library only) with
// the record stored as named constants and an envOverlay map literal. Render
// fills the embedded template; Parse walks the file's syntax tree to recover
// the record, which is what `binwrap run` and `binwrap inspect` operate on.
package artifact
