// Package packager wraps an executable into a launcher source file.
//
// It digests and encodes the executable, collects its metadata into a wrap
// record, renders the launcher and writes it next to the executable unless an
// output path is given. The tool refuses to write over its own binary.
package packager
