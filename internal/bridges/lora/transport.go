package lora

import (
	"context"
	"time"
)

// Frame is one payload received from the radio.
type Frame struct {
	// Payload is the base64 text carried on the link.
	Payload string

	// RSSI and SNR are reported by the radio when available.
	RSSI int
	SNR  float64

	// Source identifies the sender (radio address or device topic).
	Source string

	ReceivedAt time.Time
}

// Transport moves base64 frames over the radio link.
type Transport interface {
	// Start opens the link and delivers every received frame to onFrame.
	// onFrame may be called from a transport goroutine.
	Start(ctx context.Context, onFrame func(Frame)) error

	// Send transmits one base64 payload.
	Send(ctx context.Context, payload string) error

	// IsConnected reports whether the link is ready.
	IsConnected() bool

	// Address names the link for health reports.
	Address() string

	// ConnectedSince returns when the link came up, or the zero time.
	ConnectedSince() time.Time

	// Close shuts the link down. Safe to call more than once.
	Close() error
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// Logger is the logging interface used by the bridge and its transports.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
