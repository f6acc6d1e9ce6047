package wire

import "errors"

var (
	// ErrShortBuffer is returned when a read would run past the end of the buffer.
	ErrShortBuffer = errors.New("wire: buffer too short")

	// ErrInvalidHex is returned when a hex string cannot be decoded.
	ErrInvalidHex = errors.New("wire: invalid hex string")
)
