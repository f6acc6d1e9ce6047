package ble

import (
	"errors"
	"fmt"
)

// Domain errors for the BLE decoder package.
var (
	// ErrUnsupportedFormat is returned when a payload is not one of the
	// supported formats or versions. Callers normally drop the advertisement.
	ErrUnsupportedFormat = errors.New("ble: unsupported format")

	// ErrNoDecoder is returned when no route matches a scan result.
	ErrNoDecoder = errors.New("ble: no decoder for advertisement")

	// ErrInvalidRoute is returned when registering a route without a
	// manufacturer id or service UUID.
	ErrInvalidRoute = errors.New("ble: invalid route")
)

// Format rejections. Each matches ErrUnsupportedFormat with errors.Is.
var (
	// ErrTruncatedBuffer means the payload is shorter than its layout requires.
	ErrTruncatedBuffer = fmt.Errorf("%w: truncated buffer", ErrUnsupportedFormat)

	// ErrUnknownField means a BTHome stream carried a field id missing from
	// the descriptor table.
	ErrUnknownField = fmt.Errorf("%w: unknown field", ErrUnsupportedFormat)

	// ErrEncrypted means the payload is flagged as encrypted.
	ErrEncrypted = fmt.Errorf("%w: encrypted payload", ErrUnsupportedFormat)
)

// truncated wraps ErrTruncatedBuffer with what was being read.
func truncated(format string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncatedBuffer, format, need, have)
}

// Rejection reason labels, stable for logs and metrics.
const (
	ReasonNoDecoder         = "no_decoder"
	ReasonTruncated         = "truncated"
	ReasonUnknownField      = "unknown_field"
	ReasonEncrypted         = "encrypted"
	ReasonUnsupportedFormat = "unsupported_format"
	ReasonUnknown           = "unknown"
)

// Reason maps a decode error to its label. It returns "" for a nil error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoDecoder):
		return ReasonNoDecoder
	case errors.Is(err, ErrTruncatedBuffer):
		return ReasonTruncated
	case errors.Is(err, ErrUnknownField):
		return ReasonUnknownField
	case errors.Is(err, ErrEncrypted):
		return ReasonEncrypted
	case errors.Is(err, ErrUnsupportedFormat):
		return ReasonUnsupportedFormat
	default:
		return ReasonUnknown
	}
}
