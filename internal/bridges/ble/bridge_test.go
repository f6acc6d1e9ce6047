package ble

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/health"
	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/reading"
)

const (
	sensorAddr   = "bc:02:6e:c3:ce:cc"
	bthomeReport = `{"addr":"BC:02:6E:C3:CE:CC","rssi":-60,"ts":"2026-03-01T12:00:00Z","service_data":{"fcd2":"400021016402ca08"}}`
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu         sync.Mutex
	published  []mockPublish
	connected  bool
	handlers   map[string]func(topic string, payload []byte)
	publishErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// PublishedTo returns the messages published on topic.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers payload to the handler subscribed on topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler := m.handlers[topic]
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

// mockStore implements ReadingStore.
type mockStore struct {
	mu    sync.Mutex
	saved []reading.Reading
	err   error
}

func (s *mockStore) Save(_ context.Context, r reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

// mockRecorder implements ReadingRecorder.
type mockRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *mockRecorder) WriteReading(_, kind string, _ int, _ map[string]any, _ time.Time) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

// failingDeduper implements Deduper with a broken shared store.
type failingDeduper struct{}

func (failingDeduper) Fresh(context.Context, string, bleadv.Record) (bool, error) {
	return false, errors.New("connection refused")
}

const scanTopic = "graylogic/scan/ble/+"

func newTestBridge(t *testing.T, opts BridgeOptions) (*Bridge, *MockMQTTClient) {
	t.Helper()
	client := NewMockMQTTClient()
	opts.MQTTClient = client
	if opts.ScanTopic == "" && opts.Stream == nil {
		opts.ScanTopic = scanTopic
	}
	b, err := NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return b, client
}

func mustScan(t *testing.T, payload string) *bleadv.ScanResult {
	t.Helper()
	res, err := ParseScanMessage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseScanMessage() error = %v", err)
	}
	return res
}

func TestNewBridgeValidation(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{ScanTopic: scanTopic}); err == nil {
		t.Error("NewBridge() without MQTT client succeeded")
	}
	if _, err := NewBridge(BridgeOptions{MQTTClient: NewMockMQTTClient()}); err == nil {
		t.Error("NewBridge() without scan topic or stream succeeded")
	}
}

func TestHandleScanPublishesState(t *testing.T) {
	store := &mockStore{}
	recorder := &mockRecorder{}
	b, client := newTestBridge(t, BridgeOptions{Store: store, Recorder: recorder})

	r, ok := b.HandleScan(context.Background(), mustScan(t, bthomeReport))
	if !ok {
		t.Fatal("HandleScan() rejected a valid BTHome report")
	}
	if r.Address != sensorAddr || r.Kind != string(bleadv.KindBTHome) || r.RSSI != -60 {
		t.Errorf("reading = %+v", r)
	}
	if r.Data["temperature"] != 22.5 || r.Data["battery"] != 100.0 {
		t.Errorf("reading data = %v", r.Data)
	}

	states := client.PublishedTo(StateTopic(sensorAddr))
	if len(states) != 1 {
		t.Fatalf("published %d states, want 1", len(states))
	}
	if !states[0].Retained {
		t.Error("state not retained")
	}
	var got reading.Reading
	if err := json.Unmarshal(states[0].Payload, &got); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if !got.ReceivedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("state timestamp = %v", got.ReceivedAt)
	}

	if len(store.saved) != 1 || len(recorder.kinds) != 1 {
		t.Errorf("saved %d readings, recorded %d", len(store.saved), len(recorder.kinds))
	}
	if b.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d", b.DeviceCount())
	}
}

func TestHandleScanDuplicates(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{})
	ctx := context.Background()

	b.HandleScan(ctx, mustScan(t, bthomeReport))
	if _, ok := b.HandleScan(ctx, mustScan(t, bthomeReport)); ok {
		t.Error("repeated packet id accepted")
	}

	next := `{"addr":"bc:02:6e:c3:ce:cc","service_data":{"fcd2":"400022016402ca08"}}`
	if _, ok := b.HandleScan(ctx, mustScan(t, next)); !ok {
		t.Error("new packet id rejected")
	}

	stats := b.Stats()
	if stats.Scans != 3 || stats.Accepted != 2 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n := len(client.PublishedTo(StateTopic(sensorAddr))); n != 2 {
		t.Errorf("published %d states, want 2", n)
	}
}

func TestHandleScanDedupeFailsOpen(t *testing.T) {
	b, _ := newTestBridge(t, BridgeOptions{Deduper: failingDeduper{}})

	if _, ok := b.HandleScan(context.Background(), mustScan(t, bthomeReport)); !ok {
		t.Error("reading dropped while the shared store was down")
	}
	if b.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", b.Stats().Errors)
	}
}

func TestHandleScanAllowList(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{Addresses: []string{"AA-BB-CC-DD-EE-FF"}})

	if _, ok := b.HandleScan(context.Background(), mustScan(t, bthomeReport)); ok {
		t.Error("device outside the allow-list accepted")
	}
	allowed := `{"addr":"aa:bb:cc:dd:ee:ff","service_data":{"fcd2":"400164"}}`
	if _, ok := b.HandleScan(context.Background(), mustScan(t, allowed)); !ok {
		t.Error("allowed device rejected")
	}

	if b.Stats().Filtered != 1 {
		t.Errorf("Filtered = %d, want 1", b.Stats().Filtered)
	}
	if len(client.PublishedTo(StateTopic(sensorAddr))) != 0 {
		t.Error("state published for a filtered device")
	}
}

func TestHandleScanRejections(t *testing.T) {
	tests := []struct {
		name   string
		scan   string
		reason string
	}{
		{"unknown device", `{"addr":"aa:bb:cc:dd:ee:01","manufacturer_data":{"004c":"0215"}}`, bleadv.ReasonNoDecoder},
		{"truncated bthome", `{"addr":"aa:bb:cc:dd:ee:02","service_data":{"fcd2":"4002ca"}}`, bleadv.ReasonTruncated},
		{"encrypted bthome", `{"addr":"aa:bb:cc:dd:ee:03","service_data":{"fcd2":"410164"}}`, bleadv.ReasonEncrypted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestBridge(t, BridgeOptions{})
			if _, ok := b.HandleScan(context.Background(), mustScan(t, tt.scan)); ok {
				t.Fatal("HandleScan() accepted an undecodable advertisement")
			}
			if got := b.Stats().Rejections[tt.reason]; got != 1 {
				t.Errorf("Rejections = %v, want %s=1", b.Stats().Rejections, tt.reason)
			}
			client.mu.Lock()
			n := len(client.published)
			client.mu.Unlock()
			if n != 0 {
				t.Errorf("published %d messages for a rejected advertisement", n)
			}
		})
	}
}

func TestScanTopicIngest(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	client.SimulateMessage(scanTopic, []byte(bthomeReport))
	client.SimulateMessage(scanTopic, []byte("not json"))

	if len(client.PublishedTo(StateTopic(sensorAddr))) != 1 {
		t.Error("scan message did not produce a state")
	}
	if b.Stats().Rejections[ReasonInvalidScan] != 1 {
		t.Errorf("Rejections = %v", b.Stats().Rejections)
	}
	if len(client.PublishedTo(health.Topic(BridgeName))) == 0 {
		t.Error("no health published on start")
	}
}

func TestButtonActionFires(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{
		Buttons: []ButtonBinding{{
			Address: "e2:15:00:05:68:53",
			Actions: map[int]ButtonAction{1: {Topic: "shellies/light/command", Payload: "toggle"}},
		}},
	})
	ctx := context.Background()

	press := `{"addr":"e2:15:00:05:68:53","manufacturer_data":{"03da":"0a00000003"}}`
	release := `{"addr":"e2:15:00:05:68:53","manufacturer_data":{"03da":"0b00000002"}}`
	b.HandleScan(ctx, mustScan(t, press))
	b.HandleScan(ctx, mustScan(t, release))

	actions := client.PublishedTo("shellies/light/command")
	if len(actions) != 1 || string(actions[0].Payload) != "toggle" {
		t.Fatalf("actions = %+v, want one toggle", actions)
	}

	events := client.PublishedTo(ButtonEventTopic())
	if len(events) != 2 {
		t.Fatalf("button events = %d, want 2", len(events))
	}
	var first, second ButtonEventMessage
	json.Unmarshal(events[0].Payload, &first)  //nolint:errcheck
	json.Unmarshal(events[1].Payload, &second) //nolint:errcheck
	if !first.Fired || !first.Pressed || first.Button != 1 || first.Sequence != 10 {
		t.Errorf("press event = %+v", first)
	}
	if second.Fired || second.Pressed {
		t.Errorf("release event = %+v, want unfired release", second)
	}
}

func TestStoreErrorCounted(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{Store: &mockStore{err: errors.New("disk full")}})

	if _, ok := b.HandleScan(context.Background(), mustScan(t, bthomeReport)); !ok {
		t.Error("reading rejected because the store failed")
	}
	if b.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", b.Stats().Errors)
	}
	if len(client.PublishedTo(StateTopic(sensorAddr))) != 1 {
		t.Error("state not published")
	}
}

func TestHealthSnapshot(t *testing.T) {
	b, client := newTestBridge(t, BridgeOptions{})
	b.HandleScan(context.Background(), mustScan(t, bthomeReport))
	b.HandleScan(context.Background(), mustScan(t, `{"addr":"aa:bb:cc:dd:ee:01"}`))

	snap := b.HealthSnapshot()
	if !snap.Connected || snap.Address != scanTopic || snap.Devices != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Stats.MessagesReceived != 1 || snap.Stats.Rejections[bleadv.ReasonNoDecoder] != 1 {
		t.Errorf("snapshot stats = %+v", snap.Stats)
	}

	client.Disconnect(0)
	if b.Health().Status != health.StatusDegraded {
		t.Errorf("Status = %q, want degraded", b.Health().Status)
	}
}

func TestStatsCopy(t *testing.T) {
	b, _ := newTestBridge(t, BridgeOptions{})
	b.HandleScan(context.Background(), mustScan(t, `{"addr":"aa:bb:cc:dd:ee:01"}`))

	s := b.Stats()
	s.Rejections[bleadv.ReasonNoDecoder] = 99
	if b.Stats().Rejections[bleadv.ReasonNoDecoder] != 1 {
		t.Error("Stats() returned a shared rejection map")
	}
}
