package health

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

// mockSource implements Source for testing.
type mockSource struct {
	mu   sync.Mutex
	snap Snapshot
}

func (m *mockSource) HealthSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *mockSource) set(snap Snapshot) {
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
}

func decode(t *testing.T, payload []byte) Message {
	t.Helper()
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("failed to unmarshal health message: %v", err)
	}
	return msg
}

func TestNewReporter(t *testing.T) {
	hr := NewReporter(Config{
		Bridge:   "lora",
		Version:  "1.0.0",
		Interval: 5 * time.Second,
	})

	if hr.bridge != "lora" {
		t.Errorf("bridge = %q, want lora", hr.bridge)
	}
	if hr.version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", hr.version)
	}
	if hr.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", hr.interval)
	}
}

func TestReporterDefaultInterval(t *testing.T) {
	hr := NewReporter(Config{Bridge: "ble"})
	if hr.interval != DefaultInterval {
		t.Errorf("default interval = %v, want %v", hr.interval, DefaultInterval)
	}
}

func TestReporterPublishNow(t *testing.T) {
	pub := newMockPublisher(true)
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &mockSource{snap: Snapshot{
		Connected:      true,
		Address:        "shellyplus1-a8032ab12345",
		ConnectedSince: since,
		Devices:        3,
		Stats: Statistics{
			MessagesReceived: 10,
			MessagesSent:     4,
			Rejections:       map[string]uint64{"checksum_mismatch": 2},
		},
	}}

	hr := NewReporter(Config{Bridge: "lora", Version: "2.0.0", Publisher: pub, Source: src})
	if err := hr.PublishNow(); err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	msg := messages[0]
	if msg.topic != "graylogic/health/lora" {
		t.Errorf("topic = %q, want graylogic/health/lora", msg.topic)
	}
	if msg.qos != 1 || !msg.retained {
		t.Errorf("qos = %d retained = %v, want 1 and retained", msg.qos, msg.retained)
	}

	h := decode(t, msg.payload)
	if h.Bridge != "lora" || h.Version != "2.0.0" {
		t.Errorf("Bridge/Version = %q/%q", h.Bridge, h.Version)
	}
	if h.Status != StatusHealthy {
		t.Errorf("Status = %q, want %q", h.Status, StatusHealthy)
	}
	if h.DevicesManaged != 3 {
		t.Errorf("DevicesManaged = %d, want 3", h.DevicesManaged)
	}
	if h.Connection == nil || h.Connection.Status != "connected" || h.Connection.Address != "shellyplus1-a8032ab12345" {
		t.Errorf("Connection = %+v", h.Connection)
	}
	if h.Connection.ConnectedSince == nil || !h.Connection.ConnectedSince.Equal(since) {
		t.Errorf("ConnectedSince = %v, want %v", h.Connection.ConnectedSince, since)
	}
	if h.Statistics == nil || h.Statistics.MessagesReceived != 10 || h.Statistics.Rejections["checksum_mismatch"] != 2 {
		t.Errorf("Statistics = %+v", h.Statistics)
	}
}

func TestReporterDegradedWhenLinkDown(t *testing.T) {
	pub := newMockPublisher(true)
	src := &mockSource{snap: Snapshot{Connected: false, Address: "/dev/ttyUSB0"}}

	hr := NewReporter(Config{Bridge: "lora", Publisher: pub, Source: src})
	if err := hr.PublishNow(); err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}

	h := decode(t, pub.getMessages()[0].payload)
	if h.Status != StatusDegraded {
		t.Errorf("Status = %q, want %q", h.Status, StatusDegraded)
	}
	if h.Reason != "radio link disconnected" {
		t.Errorf("Reason = %q", h.Reason)
	}
	if h.Connection.Status != "disconnected" || h.Connection.ConnectedSince != nil {
		t.Errorf("Connection = %+v", h.Connection)
	}
}

func TestReporterDegradedWhenMQTTDisconnected(t *testing.T) {
	hr := NewReporter(Config{Bridge: "ble", Publisher: newMockPublisher(false)})

	status, reason := hr.Status()
	if status != StatusDegraded {
		t.Errorf("Status = %q, want %q", status, StatusDegraded)
	}
	if reason != "MQTT disconnected" {
		t.Errorf("Reason = %q, want 'MQTT disconnected'", reason)
	}
}

func TestReporterHealthyWithoutSource(t *testing.T) {
	hr := NewReporter(Config{Bridge: "ble", Publisher: newMockPublisher(true)})
	if status, _ := hr.Status(); status != StatusHealthy {
		t.Errorf("Status = %q, want healthy", status)
	}
}

func TestReporterPublishStarting(t *testing.T) {
	pub := newMockPublisher(true)
	hr := NewReporter(Config{Bridge: "ble", Publisher: pub})

	if err := hr.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting failed: %v", err)
	}

	h := decode(t, pub.getMessages()[0].payload)
	if h.Status != StatusStarting {
		t.Errorf("Status = %q, want %q", h.Status, StatusStarting)
	}
}

func TestReporterTracksSource(t *testing.T) {
	pub := newMockPublisher(true)
	src := &mockSource{}
	hr := NewReporter(Config{Bridge: "ble", Publisher: pub, Source: src})

	src.set(Snapshot{Connected: true, Devices: 10})
	hr.PublishNow() //nolint:errcheck
	src.set(Snapshot{Connected: true, Devices: 20})
	hr.PublishNow() //nolint:errcheck

	messages := pub.getMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if got := decode(t, messages[0].payload).DevicesManaged; got != 10 {
		t.Errorf("first DevicesManaged = %d, want 10", got)
	}
	if got := decode(t, messages[1].payload).DevicesManaged; got != 20 {
		t.Errorf("second DevicesManaged = %d, want 20", got)
	}
}

func TestReporterStartStop(t *testing.T) {
	pub := newMockPublisher(true)
	hr := NewReporter(Config{
		Bridge:    "lifecycle",
		Interval:  50 * time.Millisecond,
		Publisher: pub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hr.Start(ctx)
	time.Sleep(150 * time.Millisecond)
	hr.Stop()
	hr.Stop() // second call is a no-op

	messages := pub.getMessages()
	// initial + at least one periodic + stopping
	if len(messages) < 3 {
		t.Errorf("expected at least 3 messages, got %d", len(messages))
	}

	last := decode(t, messages[len(messages)-1].payload)
	if last.Status != StatusStopping {
		t.Errorf("last Status = %q, want %q", last.Status, StatusStopping)
	}
}

func TestReporterWithNoPublisher(t *testing.T) {
	hr := NewReporter(Config{Bridge: "no-publisher"})
	if err := hr.PublishNow(); err != nil {
		t.Errorf("PublishNow with nil publisher should not error: %v", err)
	}
}

func TestNewLWTMessage(t *testing.T) {
	msg := NewLWTMessage("lora")
	if msg.Bridge != "lora" || msg.Status != StatusOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("LWT = %+v", msg)
	}
}

func TestUptime(t *testing.T) {
	msg := NewMessage("ble", "1", StatusHealthy, Snapshot{}, time.Now().Add(-90*time.Second))
	if msg.UptimeSeconds < 89 || msg.UptimeSeconds > 91 {
		t.Errorf("UptimeSeconds = %d, want ~90", msg.UptimeSeconds)
	}
}
