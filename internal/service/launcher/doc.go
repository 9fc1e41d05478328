// Package launcher runs a wrapped executable from a launcher artifact.
//
// It follows the same steps as a generated launcher: check the platform,
// probe the cache, extract on a cold start, run the executable with the
// environment overlay and report timings. On top of that it serializes
// extraction with a lock file and records each run in the journal.
package launcher
