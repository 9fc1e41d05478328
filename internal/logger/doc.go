// Package logger wraps zap with a global sugared logger and context helpers.
//
// The console encoder writes to stderr so that stdout stays reserved for the
// wrapped executable and the launcher's benchmark block. Services take the
// logger from their context (WithName, WithKV) and log through the package
// level helpers (Info, InfoKV, Warnf, ...).
package logger
