package framing

import (
	"errors"
	"fmt"
)

// Error categories.
var (
	// ErrMalformedFrame is the parent of every structural rejection: bad
	// ciphertext length, empty plaintext, or nothing left after unpadding.
	ErrMalformedFrame = errors.New("framing: malformed frame")

	// ErrChecksumMismatch is returned when the embedded checksum does not match
	// the recomputed one. Usually foreign traffic or a key mismatch.
	ErrChecksumMismatch = errors.New("framing: checksum mismatch")

	// ErrInvalidKey is returned when the key is not 16, 24 or 32 bytes long.
	ErrInvalidKey = errors.New("framing: invalid key length")

	// ErrEmptyMessage is returned when encoding a message that is empty after trimming.
	ErrEmptyMessage = errors.New("framing: empty message")

	// ErrInvalidEncoding is returned when a transport encoding (base64) cannot be decoded.
	ErrInvalidEncoding = errors.New("framing: invalid transport encoding")
)

// Structural rejections. Each matches ErrMalformedFrame with errors.Is.
var (
	// ErrTooShort means the ciphertext length is zero or not a multiple of the block size.
	ErrTooShort = fmt.Errorf("%w: ciphertext is not a positive multiple of the block size", ErrMalformedFrame)

	// ErrEmptyPlaintext means decryption produced no bytes.
	ErrEmptyPlaintext = fmt.Errorf("%w: empty decryption result", ErrMalformedFrame)

	// ErrTooShortAfterStrip means fewer than ChecksumSize bytes remained after unpadding.
	ErrTooShortAfterStrip = fmt.Errorf("%w: too short after removing padding", ErrMalformedFrame)
)

// Rejection reason labels, stable for logs and metrics.
const (
	ReasonTooShort           = "too_short"
	ReasonEmptyPlaintext     = "empty_plaintext"
	ReasonTooShortAfterStrip = "too_short_after_strip"
	ReasonChecksumMismatch   = "checksum_mismatch"
	ReasonInvalidKey         = "invalid_key"
	ReasonInvalidEncoding    = "invalid_encoding"
	ReasonUnknown            = "unknown"
)

// Reason maps a decode error to its label. It returns "" for a nil error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTooShort):
		return ReasonTooShort
	case errors.Is(err, ErrEmptyPlaintext):
		return ReasonEmptyPlaintext
	case errors.Is(err, ErrTooShortAfterStrip):
		return ReasonTooShortAfterStrip
	case errors.Is(err, ErrChecksumMismatch):
		return ReasonChecksumMismatch
	case errors.Is(err, ErrInvalidKey):
		return ReasonInvalidKey
	case errors.Is(err, ErrInvalidEncoding):
		return ReasonInvalidEncoding
	default:
		return ReasonUnknown
	}
}
