package lora

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/framing"
)

// Key shared by the sender and receiver scripts of the cover link.
const testKeyHex = "dd469421e5f4089a1418ea24ba37c61bdd469421e5f4089a1418ea24ba37c61b"

const (
	testDevice      = "shellyplus1-lora"
	testCoverDevice = "shellyplus2pm-cover"
	testSource      = "radiogw-test"
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

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// mockRecorder implements FrameRecorder.
type mockRecorder struct {
	mu     sync.Mutex
	frames []recordedFrame
}

type recordedFrame struct {
	direction string
	reason    string
	size      int
}

func (r *mockRecorder) WriteLoRaFrame(direction, reason string, size int, _ time.Time) {
	r.mu.Lock()
	r.frames = append(r.frames, recordedFrame{direction, reason, size})
	r.mu.Unlock()
}

func (r *mockRecorder) all() []recordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedFrame(nil), r.frames...)
}

func testCodec(t *testing.T, keyHex string) *framing.Codec {
	t.Helper()
	key, err := framing.ParseKey(keyHex)
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	codec, err := framing.NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec
}

type testBridge struct {
	bridge   *Bridge
	mqtt     *MockMQTTClient
	recorder *mockRecorder
}

func newTestBridge(t *testing.T, covers []int) *testBridge {
	t.Helper()

	client := NewMockMQTTClient()
	recorder := &mockRecorder{}
	b, err := NewBridge(BridgeOptions{
		Codec:            testCodec(t, testKeyHex),
		Transport:        NewMQTTTransport(client, testDevice, 100, testSource),
		MQTTClient:       client,
		CoverDeviceTopic: testCoverDevice,
		Covers:           covers,
		RPCSource:        testSource,
		Version:          "test",
		HealthInterval:   time.Hour,
		Recorder:         recorder,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	return &testBridge{bridge: b, mqtt: client, recorder: recorder}
}

// notification wraps a base64 frame the way the LoRa add-on reports it.
func notification(data string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"src":    testDevice,
		"dst":    "user_1",
		"method": "NotifyEvent",
		"params": map[string]any{
			"ts": 1700000000.12,
			"events": []map[string]any{{
				"component": "lora:100",
				"id":        100,
				"event":     "lora_received",
				"info":      map[string]any{"data": data, "rssi": -52, "snr": 7.5},
			}},
		},
	})
	return payload
}

func encodeFrame(t *testing.T, keyHex, msg string) string {
	t.Helper()
	ct, err := testCodec(t, keyHex).Encode(msg)
	if err != nil {
		t.Fatalf("Encode(%q) error = %v", msg, err)
	}
	return framing.EncodeBase64(ct)
}

func TestNewBridgeValidation(t *testing.T) {
	codec := testCodec(t, testKeyHex)
	client := NewMockMQTTClient()
	transport := NewMQTTTransport(client, testDevice, 100, testSource)

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing codec", BridgeOptions{Transport: transport, MQTTClient: client}},
		{"missing transport", BridgeOptions{Codec: codec, MQTTClient: client}},
		{"missing mqtt", BridgeOptions{Codec: codec, Transport: transport}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() error = nil")
			}
		})
	}

	b, err := NewBridge(BridgeOptions{Codec: codec, Transport: transport, MQTTClient: client})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if !strings.HasPrefix(b.rpcSource, "radiogw-") {
		t.Errorf("default rpc source = %q", b.rpcSource)
	}
}

func TestBridgeSendPublishesSendBytes(t *testing.T) {
	tb := newTestBridge(t, nil)

	if err := tb.bridge.SendCover(context.Background(), OpenCover(0)); err != nil {
		t.Fatalf("SendCover() error = %v", err)
	}

	sent := tb.mqtt.PublishedTo(testDevice + "/rpc")
	if len(sent) != 1 {
		t.Fatalf("published %d rpc requests, want 1", len(sent))
	}
	if sent[0].QoS != 1 || sent[0].Retained {
		t.Errorf("rpc qos/retained = %d/%v", sent[0].QoS, sent[0].Retained)
	}

	var req struct {
		ID     string          `json:"id"`
		Src    string          `json:"src"`
		Method string          `json:"method"`
		Params SendBytesParams `json:"params"`
	}
	if err := json.Unmarshal(sent[0].Payload, &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Method != MethodLoRaSendBytes || req.Src != testSource || req.ID == "" {
		t.Errorf("request = %+v", req)
	}
	if req.Params.ID != 100 {
		t.Errorf("component id = %d, want 100", req.Params.ID)
	}

	ct, err := framing.DecodeBase64(req.Params.Data)
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	msg, err := testCodec(t, testKeyHex).Decode(ct)
	if err != nil || msg != "c0:100" {
		t.Errorf("decoded = %q, %v; want c0:100", msg, err)
	}

	if s := tb.bridge.Stats(); s.Sent != 1 {
		t.Errorf("Sent = %d, want 1", s.Sent)
	}
	if frames := tb.recorder.all(); len(frames) != 1 || frames[0].direction != DirectionTx || frames[0].size != len(ct) {
		t.Errorf("recorded = %+v", frames)
	}
}

func TestBridgeSendRejectsBlankMessage(t *testing.T) {
	tb := newTestBridge(t, nil)

	if err := tb.bridge.Send(context.Background(), "   "); !errors.Is(err, framing.ErrEmptyMessage) {
		t.Errorf("Send() error = %v, want ErrEmptyMessage", err)
	}
	if err := tb.bridge.SendCover(context.Background(), CoverCommand{ID: 0, Position: 150}); !errors.Is(err, ErrInvalidCoverCommand) {
		t.Errorf("SendCover() error = %v, want ErrInvalidCoverCommand", err)
	}
	if sent := tb.mqtt.PublishedTo(testDevice + "/rpc"); len(sent) != 0 {
		t.Errorf("published %d requests for invalid input", len(sent))
	}
}

func TestBridgeSendWhileDisconnected(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.mqtt.Disconnect(0)

	if err := tb.bridge.Send(context.Background(), "hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if s := tb.bridge.Stats(); s.Errors != 1 || s.Sent != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBridgeReceiveCoverCommand(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, "c1:40")))

	events := tb.mqtt.PublishedTo("graylogic/event/lora/message")
	if len(events) != 1 {
		t.Fatalf("published %d message events, want 1", len(events))
	}
	var ev MessageEvent
	if err := json.Unmarshal(events[0].Payload, &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ev.Message != "c1:40" || ev.Source != testDevice || ev.RSSI != -52 || ev.SNR != 7.5 {
		t.Errorf("event = %+v", ev)
	}

	rpc := tb.mqtt.PublishedTo(testCoverDevice + "/rpc")
	if len(rpc) != 1 {
		t.Fatalf("published %d cover requests, want 1", len(rpc))
	}
	var req struct {
		Src    string             `json:"src"`
		Method string             `json:"method"`
		Params GoToPositionParams `json:"params"`
	}
	if err := json.Unmarshal(rpc[0].Payload, &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Method != MethodCoverGoToPosition || req.Src != testSource || req.Params != (GoToPositionParams{ID: 1, Pos: 40}) {
		t.Errorf("cover request = %+v", req)
	}

	states := tb.mqtt.PublishedTo("graylogic/state/lora/cover-1")
	if len(states) != 1 || !states[0].Retained {
		t.Fatalf("cover state = %+v, want one retained message", states)
	}
	var state CoverState
	if err := json.Unmarshal(states[0].Payload, &state); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if state.ID != 1 || state.Position != 40 || state.Device != testCoverDevice || state.Source != "radio" {
		t.Errorf("state = %+v", state)
	}

	if s := tb.bridge.Stats(); s.Received != 1 || len(s.Rejections) != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestBridgeReceivePlainMessage(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, "temperature 21.5")))

	if got := len(tb.mqtt.PublishedTo("graylogic/event/lora/message")); got != 1 {
		t.Errorf("published %d events, want 1", got)
	}
	if got := len(tb.mqtt.PublishedTo(testCoverDevice + "/rpc")); got != 0 {
		t.Errorf("plain message produced %d cover requests", got)
	}
}

func TestBridgeReceiveNonCoverColonMessage(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, "climate:on")))

	if got := len(tb.mqtt.PublishedTo("graylogic/event/lora/message")); got != 1 {
		t.Errorf("published %d events, want 1", got)
	}
	if s := tb.bridge.Stats(); s.Received != 1 || len(s.Rejections) != 0 {
		t.Errorf("stats = %+v, want no rejections", s)
	}
}

func TestBridgeReceiveSensorUpdate(t *testing.T) {
	tests := []struct {
		msg      string
		topic    string
		kind     SensorKind
		value    float64
		unit     string
		contact  bool
	}{
		{msg: "snr-tm0:21.5", topic: "graylogic/state/lora/sensor-tm0", kind: SensorTemperature, value: 21.5, unit: "°C"},
		{msg: "snr-hm1:48", topic: "graylogic/state/lora/sensor-hm1", kind: SensorHumidity, value: 48, unit: "%"},
		{msg: "snr-dw2:1", topic: "graylogic/state/lora/sensor-dw2", kind: SensorDoorWindow, value: 1, contact: true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			tb := newTestBridge(t, nil)

			tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, tt.msg)))

			if got := len(tb.mqtt.PublishedTo("graylogic/event/lora/message")); got != 1 {
				t.Errorf("published %d message events, want 1", got)
			}
			states := tb.mqtt.PublishedTo(tt.topic)
			if len(states) != 1 || !states[0].Retained || states[0].QoS != 1 {
				t.Fatalf("sensor state = %+v, want one retained QoS 1 message", states)
			}
			var state SensorState
			if err := json.Unmarshal(states[0].Payload, &state); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if state.Kind != tt.kind || state.Value != tt.value || state.Unit != tt.unit || state.Source != testDevice {
				t.Errorf("state = %+v", state)
			}
			if tt.contact && (state.Open == nil || !*state.Open) {
				t.Errorf("state.Open = %v, want open contact", state.Open)
			}
			if !tt.contact && state.Open != nil {
				t.Errorf("state.Open = %v, want unset for %s", *state.Open, tt.kind)
			}
			if got := len(tb.mqtt.PublishedTo(testCoverDevice + "/rpc")); got != 0 {
				t.Errorf("sensor update produced %d cover requests", got)
			}
		})
	}
}

func TestBridgeRejectsInvalidSensorUpdate(t *testing.T) {
	tb := newTestBridge(t, nil)

	for _, msg := range []string{"snr-lx0:300", "snr-tm0:warm"} {
		tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, msg)))
	}

	s := tb.bridge.Stats()
	if s.Rejections[ReasonInvalidSensorUpdate] != 2 {
		t.Errorf("rejections = %v, want 2 %s", s.Rejections, ReasonInvalidSensorUpdate)
	}
	for _, topic := range []string{"graylogic/state/lora/sensor-lx0", "graylogic/state/lora/sensor-tm0"} {
		if got := len(tb.mqtt.PublishedTo(topic)); got != 0 {
			t.Errorf("published %d states to %s", got, topic)
		}
	}
}

func TestBridgeRejections(t *testing.T) {
	tests := []struct {
		name   string
		data   func(t *testing.T) string
		reason string
	}{
		{
			name:   "not base64",
			data:   func(*testing.T) string { return "!!not-base64!!" },
			reason: framing.ReasonInvalidEncoding,
		},
		{
			name:   "partial block",
			data:   func(*testing.T) string { return framing.EncodeBase64(make([]byte, 10)) },
			reason: framing.ReasonTooShort,
		},
		{
			name: "foreign key",
			data: func(t *testing.T) string {
				return encodeFrame(t, "000102030405060708090a0b0c0d0e0f", "c0:100")
			},
			reason: framing.ReasonChecksumMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)

			tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(tt.data(t)))

			if got := len(tb.mqtt.PublishedTo("graylogic/event/lora/message")); got != 0 {
				t.Errorf("rejected frame produced %d events", got)
			}
			if got := len(tb.mqtt.PublishedTo(testCoverDevice + "/rpc")); got != 0 {
				t.Errorf("rejected frame produced %d cover requests", got)
			}

			s := tb.bridge.Stats()
			if s.Received != 0 || s.Rejections[tt.reason] != 1 {
				t.Errorf("stats = %+v, want one %s rejection", s, tt.reason)
			}

			frames := tb.recorder.all()
			if len(frames) != 1 || frames[0].direction != DirectionRx || frames[0].reason != tt.reason {
				t.Errorf("recorded = %+v", frames)
			}
		})
	}
}

func TestBridgeCoverAllowList(t *testing.T) {
	tb := newTestBridge(t, []int{0})

	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, "c3:100")))
	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification(encodeFrame(t, testKeyHex, "c0:abc")))

	if got := len(tb.mqtt.PublishedTo(testCoverDevice + "/rpc")); got != 0 {
		t.Errorf("published %d cover requests, want 0", got)
	}

	s := tb.bridge.Stats()
	if s.Rejections[ReasonCoverNotAllowed] != 1 || s.Rejections[ReasonInvalidCoverCommand] != 1 {
		t.Errorf("rejections = %v", s.Rejections)
	}
	// Both frames decoded fine, so both are announced.
	if s.Received != 2 {
		t.Errorf("Received = %d, want 2", s.Received)
	}
}

func TestBridgeMQTTCommands(t *testing.T) {
	tb := newTestBridge(t, nil)

	tb.mqtt.SimulateMessage("graylogic/command/lora/send", []byte(`{"message":"hello"}`))
	tb.mqtt.SimulateMessage("graylogic/command/lora/cover", []byte(`{"id":0,"position":0}`))
	tb.mqtt.SimulateMessage("graylogic/command/lora/cover", []byte(`not json`))

	sent := tb.mqtt.PublishedTo(testDevice + "/rpc")
	if len(sent) != 2 {
		t.Fatalf("published %d SendBytes requests, want 2", len(sent))
	}

	var req struct {
		Params SendBytesParams `json:"params"`
	}
	if err := json.Unmarshal(sent[1].Payload, &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	ct, _ := framing.DecodeBase64(req.Params.Data)
	if msg, err := testCodec(t, testKeyHex).Decode(ct); err != nil || msg != "c0:0" {
		t.Errorf("cover command decoded = %q, %v", msg, err)
	}
}

func TestBridgeHealthSnapshot(t *testing.T) {
	tb := newTestBridge(t, []int{0, 1})

	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification("%%%"))

	snap := tb.bridge.HealthSnapshot()
	if !snap.Connected || snap.Address != testDevice || snap.Devices != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Stats.Rejections[framing.ReasonInvalidEncoding] != 1 {
		t.Errorf("rejections = %v", snap.Stats.Rejections)
	}

	health := tb.bridge.Health()
	if health.Bridge != BridgeName || health.Status != "healthy" {
		t.Errorf("health = %+v", health)
	}

	starting := tb.mqtt.PublishedTo("graylogic/health/lora")
	if len(starting) == 0 {
		t.Error("no health published on start")
	}
}

func TestBridgeStatsCopy(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.mqtt.SimulateMessage(testDevice+"/events/rpc", notification("%%%"))

	s := tb.bridge.Stats()
	s.Rejections[framing.ReasonInvalidEncoding] = 99

	if got := tb.bridge.Stats().Rejections[framing.ReasonInvalidEncoding]; got != 1 {
		t.Errorf("Stats() aliases internal map: %d", got)
	}
}
