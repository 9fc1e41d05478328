// Package wrap contains the core domain type of binwrap: the Record that a
// generated launcher carries.
//
// A Record names the wrapped file, its target platform and checksum, the
// environment overlay and the encoded payload. It is rendered into a launcher
// by package artifact and consumed by the launcher service.
package wrap
