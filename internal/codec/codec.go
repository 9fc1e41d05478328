package codec

import (
	"bytes"
	"compress/zlib"
	"crypto"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Register SHA-1 for DefaultChecksumFunction.
	_ "crypto/sha1"
)

const (
	// DefaultChecksumFunction fingerprints wrapped executables.
	// It guards against corruption only, never against tampering.
	DefaultChecksumFunction crypto.Hash = crypto.SHA1

	// Algorithm is the identifier recorded next to every checksum.
	Algorithm = "sha1"

	// compressionLevel is the zlib effort used by Encode.
	compressionLevel = zlib.BestCompression
)

var errHashUnavailable = errors.New("hash function unavailable")

// Stage names the step of Decode that failed.
type Stage string

const (
	// StageBase64 is the text decoding step.
	StageBase64 Stage = "base64"
	// StageZlib is the decompression step.
	StageZlib Stage = "zlib"
)

// DecodeError reports a malformed payload.
type DecodeError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload (%s): %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Digest returns the lowercase hex checksum of data.
func Digest(data []byte) string {
	hasher := DefaultChecksumFunction.New()
	_, _ = hasher.Write(data) // hash.Hash never returns an error.

	return hex.EncodeToString(hasher.Sum(nil))
}

// DigestFile returns the checksum of the file at path without loading it whole.
func DigestFile(path string) (string, error) {
	if !DefaultChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Encode compresses data at the highest zlib level and base64-encodes the result.
func Encode(data []byte) (string, error) {
	var buf bytes.Buffer

	writer, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return "", fmt.Errorf("create compressor: %w", err)
	}

	if _, err = writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("compress payload: %w", err)
	}

	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("flush compressor: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. Malformed input yields a *DecodeError.
func Decode(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecodeError{Stage: StageBase64, Err: err}
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &DecodeError{Stage: StageZlib, Err: err}
	}

	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &DecodeError{Stage: StageZlib, Err: err}
	}

	return data, nil
}

// ChecksumBytes decodes a hex checksum produced by Digest.
func ChecksumBytes(checksum string) ([]byte, error) {
	sum, err := hex.DecodeString(checksum)
	if err != nil {
		return nil, fmt.Errorf("decode checksum %q: %w", checksum, err)
	}

	if len(sum) != DefaultChecksumFunction.Size() {
		return nil, fmt.Errorf("checksum %q has %d bytes, want %d: %w",
			checksum, len(sum), DefaultChecksumFunction.Size(), hex.ErrLength)
	}

	return sum, nil
}
