package ble

import "errors"

// Domain errors for the BLE bridge package.
var (
	// ErrInvalidScan is returned when a scan message cannot be parsed.
	ErrInvalidScan = errors.New("ble: invalid scan message")

	// ErrSourceClosed is returned when a scan source has been closed.
	ErrSourceClosed = errors.New("ble: scan source closed")
)
