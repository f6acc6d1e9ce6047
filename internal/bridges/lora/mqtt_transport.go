package lora

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// MQTTTransport reaches the radio through a Shelly device with the LoRa
// add-on, using Gen2 RPC over MQTT.
type MQTTTransport struct {
	mqtt        MQTTClient
	deviceTopic string
	componentID int
	src         string

	mu             sync.RWMutex
	started        bool
	connectedSince time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// NewMQTTTransport creates a transport for the LoRa component componentID on
// the Shelly device publishing under deviceTopic. src is the RPC reply prefix
// the device answers on.
func NewMQTTTransport(client MQTTClient, deviceTopic string, componentID int, src string) *MQTTTransport {
	return &MQTTTransport{
		mqtt:        client,
		deviceTopic: deviceTopic,
		componentID: componentID,
		src:         src,
	}
}

// SetLogger sets the logger for this transport.
func (t *MQTTTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// Start subscribes to the device's notification and reply topics.
func (t *MQTTTransport) Start(_ context.Context, onFrame func(Frame)) error {
	topics := mqtt.Topics{}

	eventTopic := topics.ShellyEvents(t.deviceTopic)
	err := t.mqtt.Subscribe(eventTopic, 1, func(_ string, payload []byte) {
		t.handleNotification(payload, onFrame)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventTopic, err)
	}

	replyTopic := topics.ShellyResponse(t.src)
	if err := t.mqtt.Subscribe(replyTopic, 1, t.handleResponse); err != nil {
		return fmt.Errorf("subscribe to %s: %w", replyTopic, err)
	}

	t.mu.Lock()
	t.started = true
	t.connectedSince = time.Now()
	t.mu.Unlock()

	t.logDebug("lora mqtt transport started", "events", eventTopic, "replies", replyTopic)
	return nil
}

// Send publishes a Lora.SendBytes request carrying payload.
func (t *MQTTTransport) Send(_ context.Context, payload string) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	req := NewRPCRequest(t.src, MethodLoRaSendBytes, SendBytesParams{ID: t.componentID, Data: payload})
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrSendFailed, err)
	}

	if err := t.mqtt.Publish(mqtt.Topics{}.ShellyRPC(t.deviceTopic), body, 1, false); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// IsConnected reports whether the transport has started and MQTT is up.
func (t *MQTTTransport) IsConnected() bool {
	t.mu.RLock()
	started := t.started
	t.mu.RUnlock()
	return started && t.mqtt.IsConnected()
}

// Address returns the device topic.
func (t *MQTTTransport) Address() string { return t.deviceTopic }

// ConnectedSince returns when Start completed.
func (t *MQTTTransport) ConnectedSince() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connectedSince
}

// Close marks the transport stopped. The MQTT client is owned by the caller.
func (t *MQTTTransport) Close() error {
	t.mu.Lock()
	t.started = false
	t.mu.Unlock()
	return nil
}

func (t *MQTTTransport) handleNotification(payload []byte, onFrame func(Frame)) {
	events, err := ParseLoRaEvents(payload, t.componentID)
	if err != nil {
		t.logDebug("ignoring device notification", "error", err)
		return
	}
	now := time.Now()
	for _, ev := range events {
		onFrame(Frame{
			Payload:    ev.Data,
			RSSI:       ev.RSSI,
			SNR:        ev.SNR,
			Source:     t.deviceTopic,
			ReceivedAt: now,
		})
	}
}

// handleResponse logs RPC failures reported by the device.
func (t *MQTTTransport) handleResponse(_ string, payload []byte) {
	var resp RPCResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.logDebug("ignoring malformed rpc response", "error", err)
		return
	}
	if resp.Error != nil {
		t.logWarn("device rejected rpc request",
			"id", resp.ID,
			"device", resp.Src,
			"code", resp.Error.Code,
			"message", resp.Error.Message)
	}
}

func (t *MQTTTransport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

func (t *MQTTTransport) logDebug(msg string, kv ...any) {
	if l := t.getLogger(); l != nil {
		l.Debug(msg, kv...)
	}
}

func (t *MQTTTransport) logWarn(msg string, kv ...any) {
	if l := t.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}
