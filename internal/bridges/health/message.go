package health

import (
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// Status represents the operational status of a bridge.
type Status string

const (
	// StatusHealthy indicates the bridge is operating normally.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates the bridge is operating with issues.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates the bridge is not operating correctly.
	StatusUnhealthy Status = "unhealthy"

	// StatusOffline indicates the bridge is not connected (from LWT).
	StatusOffline Status = "offline"

	// StatusStarting indicates the bridge is starting up.
	StatusStarting Status = "starting"

	// StatusStopping indicates the bridge is shutting down.
	StatusStopping Status = "stopping"
)

// Message is the health payload.
// Topic: graylogic/health/{bridge}
// QoS: 1, Retained: Yes
type Message struct {
	// Bridge is the bridge identifier (e.g., "lora").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status Status `json:"status"`

	// Version is the gateway software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection describes the radio-side link.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational counters.
	Statistics *Statistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of devices the bridge has seen or is configured for.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the radio-side link of a bridge.
type ConnectionStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	// Address names the link, e.g. a device topic or serial port.
	Address string `json:"address"`

	// ConnectedSince is when the link was established.
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
}

// Statistics contains operational counters.
type Statistics struct {
	// MessagesReceived counts frames or advertisements accepted.
	MessagesReceived uint64 `json:"messages_received"`

	// MessagesSent counts frames transmitted.
	MessagesSent uint64 `json:"messages_sent"`

	// Errors counts transport and publish failures.
	Errors uint64 `json:"errors"`

	// Rejections counts dropped input per reason label.
	Rejections map[string]uint64 `json:"rejections,omitempty"`
}

// Snapshot is the bridge-side state a Reporter turns into a Message.
type Snapshot struct {
	Connected      bool
	Address        string
	ConnectedSince time.Time
	Devices        int
	Stats          Statistics
}

// NewMessage creates a health status message from a snapshot.
func NewMessage(bridge, version string, status Status, snap Snapshot, startTime time.Time) Message {
	msg := Message{
		Bridge:         bridge,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: snap.Devices,
	}

	conn := &ConnectionStatus{Status: "disconnected", Address: snap.Address}
	if snap.Connected {
		conn.Status = "connected"
		if !snap.ConnectedSince.IsZero() {
			since := snap.ConnectedSince.UTC()
			conn.ConnectedSince = &since
		}
	}
	msg.Connection = conn

	stats := snap.Stats
	msg.Statistics = &stats

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for a bridge.
func NewLWTMessage(bridge string) Message {
	return Message{
		Bridge:    bridge,
		Timestamp: time.Now().UTC(),
		Status:    StatusOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic returns the health topic of a bridge.
// Example: graylogic/health/lora
func Topic(bridge string) string {
	return mqtt.Topics{}.BridgeHealth(bridge)
}
