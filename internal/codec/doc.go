// Package codec holds the integrity and transport primitives of a wrap.
//
// Digest fingerprints the raw executable, Encode compresses and base64-encodes
// it into a string safe for a Go string literal, and Decode reverses Encode.
// Decode(Encode(b)) always yields b, so Digest of the decoded bytes equals the
// recorded checksum.
package codec
