package lora

import "errors"

// Domain errors for the LoRa bridge package.
var (
	// ErrInvalidCoverCommand is returned when a message is not of the form c<id>:<pos>.
	ErrInvalidCoverCommand = errors.New("lora: invalid cover command")

	// ErrInvalidSensorUpdate is returned when a message is not of the form snr-<kind><id>:<value>.
	ErrInvalidSensorUpdate = errors.New("lora: invalid sensor update")

	// ErrCoverNotAllowed is returned when a cover id is not in the configured allow-list.
	ErrCoverNotAllowed = errors.New("lora: cover not allowed")

	// ErrNotConnected is returned when the transport is not ready to send.
	ErrNotConnected = errors.New("lora: transport not connected")

	// ErrSendFailed is returned when the transport could not transmit a frame.
	ErrSendFailed = errors.New("lora: send failed")

	// ErrPayloadTooLarge is returned when a frame exceeds the radio payload limit.
	ErrPayloadTooLarge = errors.New("lora: payload too large")

	// ErrInvalidEvent is returned when a device notification cannot be parsed.
	ErrInvalidEvent = errors.New("lora: invalid event")

	// ErrInvalidReceive is returned when a +RCV line from the radio module is malformed.
	ErrInvalidReceive = errors.New("lora: invalid receive line")
)
