// Package journal keeps a local SQLite history of wraps and launcher runs.
//
// The packager records one row per generated launcher and the module launcher
// records one row per run. `binwrap history` reads them back newest first.
// Services depend on the Recorder interface so the journal stays optional.
package journal
