package reading

import "errors"

var (
	// ErrNotFound is returned when no reading exists for an address.
	ErrNotFound = errors.New("reading: not found")

	// ErrInvalidReading is returned when a reading lacks an address or kind.
	ErrInvalidReading = errors.New("reading: invalid reading")
)
