package lora

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/health"
	"github.com/nerrad567/gray-logic-radio/internal/framing"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// commandTimeout bounds a send triggered by an MQTT command.
const commandTimeout = 5 * time.Second

// Bridge runs both ends of the encrypted LoRa link.
// It handles:
//   - Encoding outgoing messages and cover commands onto the Transport
//   - Decoding received frames, dropping and counting rejections
//   - Forwarding received cover commands to a Shelly device as RPC
//   - Republishing sensor value pushes as retained state
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	codec     *framing.Codec
	transport Transport
	mqtt      MQTTClient
	recorder  FrameRecorder
	health    *health.Reporter

	coverDevice string
	covers      coverAllowList
	coverCount  int
	rpcSource   string

	stats   Stats
	statsMu sync.Mutex

	// Shutdown coordination
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// FrameRecorder stores per-frame telemetry. Satisfied by *influxdb.Client.
// Optional; if nil the bridge records nothing.
type FrameRecorder interface {
	WriteLoRaFrame(direction, reason string, size int, ts time.Time)
}

// Stats are the bridge counters.
type Stats struct {
	Received   uint64            `json:"received"`
	Sent       uint64            `json:"sent"`
	Errors     uint64            `json:"errors"`
	Rejections map[string]uint64 `json:"rejections"`
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Codec encodes and decodes frames with the shared key.
	Codec *framing.Codec

	// Transport carries frames over the radio.
	Transport Transport

	// MQTTClient publishes events, cover RPC and health.
	MQTTClient MQTTClient

	// CoverDeviceTopic is the Shelly device that received cover commands drive.
	// Empty disables cover forwarding.
	CoverDeviceTopic string

	// Covers is the allow-list of cover ids. Empty allows any id.
	Covers []int

	// RPCSource is the src of cover RPC requests. Defaults to a generated id.
	RPCSource string

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default 30s.
	HealthInterval time.Duration

	// Recorder is optional frame telemetry.
	Recorder FrameRecorder

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	rpcSource := opts.RPCSource
	if rpcSource == "" {
		rpcSource = DefaultRPCSource()
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		codec:       opts.Codec,
		transport:   opts.Transport,
		mqtt:        opts.MQTTClient,
		recorder:    opts.Recorder,
		coverDevice: opts.CoverDeviceTopic,
		covers:      newCoverAllowList(opts.Covers),
		coverCount:  len(opts.Covers),
		rpcSource:   rpcSource,
		stats:       Stats{Rejections: make(map[string]uint64)},
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		logger:      opts.Logger,
	}

	b.health = health.NewReporter(health.Config{
		Bridge:    BridgeName,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Source:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// DefaultRPCSource returns a unique RPC src for this process.
func DefaultRPCSource() string {
	return "radiogw-" + uuid.NewString()[:8]
}

// Start opens the transport, subscribes to command topics and starts health
// reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.transport.Start(ctx, b.handleFrame); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	if err := b.mqtt.Subscribe(SendCommandTopic(), 1, b.handleSendCommand); err != nil {
		return fmt.Errorf("subscribe to send commands: %w", err)
	}
	if err := b.mqtt.Subscribe(CoverCommandTopic(), 1, b.handleCoverCommand); err != nil {
		return fmt.Errorf("subscribe to cover commands: %w", err)
	}

	b.health.Start(ctx)

	b.logInfo("lora bridge started",
		"link", b.transport.Address(),
		"cover_device", b.coverDevice)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.health.Stop()

		if err := b.transport.Close(); err != nil {
			b.logError("failed to close transport", err)
		}

		b.logInfo("lora bridge stopped")
	})
}

// Send encodes msg and transmits it.
//
// Returns:
//   - error: framing.ErrEmptyMessage for a blank message, or a transport error
func (b *Bridge) Send(ctx context.Context, msg string) error {
	ct, err := b.codec.Encode(msg)
	if err != nil {
		return err
	}

	if err := b.transport.Send(ctx, framing.EncodeBase64(ct)); err != nil {
		b.countError()
		return err
	}

	b.statsMu.Lock()
	b.stats.Sent++
	b.statsMu.Unlock()

	b.record(DirectionTx, "", len(ct), time.Now())
	b.logDebug("lora frame sent", "bytes", len(ct))
	return nil
}

// SendCover transmits a cover command to the remote receiver.
func (b *Bridge) SendCover(ctx context.Context, cmd CoverCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return b.Send(ctx, cmd.String())
}

// Stats returns a copy of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	s := b.stats
	s.Rejections = maps.Clone(b.stats.Rejections)
	return s
}

// HealthSnapshot implements health.Source.
func (b *Bridge) HealthSnapshot() health.Snapshot {
	s := b.Stats()
	return health.Snapshot{
		Connected:      b.transport.IsConnected(),
		Address:        b.transport.Address(),
		ConnectedSince: b.transport.ConnectedSince(),
		Devices:        b.coverCount,
		Stats: health.Statistics{
			MessagesReceived: s.Received,
			MessagesSent:     s.Sent,
			Errors:           s.Errors,
			Rejections:       s.Rejections,
		},
	}
}

// Health returns the current health message.
func (b *Bridge) Health() health.Message {
	return b.health.Message()
}

// SetLogger sets the logger for this bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

// handleFrame decodes one received frame.
func (b *Bridge) handleFrame(frame Frame) {
	if frame.ReceivedAt.IsZero() {
		frame.ReceivedAt = time.Now()
	}

	ct, err := framing.DecodeBase64(frame.Payload)
	if err != nil {
		b.reject(framing.Reason(err), len(frame.Payload), frame, err)
		return
	}

	msg, err := b.codec.Decode(ct)
	if err != nil {
		b.reject(framing.Reason(err), len(ct), frame, err)
		return
	}

	b.statsMu.Lock()
	b.stats.Received++
	b.statsMu.Unlock()
	b.record(DirectionRx, "", len(ct), frame.ReceivedAt)

	b.logDebug("lora message received", "message", msg, "source", frame.Source, "rssi", frame.RSSI)
	b.publishEvent(msg, frame)

	switch {
	case IsCoverCommand(msg):
		b.applyCover(msg, frame)
	case IsSensorUpdate(msg):
		b.applySensor(msg, frame)
	}
}

// applySensor republishes a sensor value push as retained state.
func (b *Bridge) applySensor(msg string, frame Frame) {
	update, err := ParseSensorUpdate(msg)
	if err != nil {
		b.countRejection(ReasonInvalidSensorUpdate)
		b.logDebug("lora sensor update rejected", "reason", ReasonInvalidSensorUpdate, "error", err)
		return
	}

	state := SensorState{
		Kind:      update.Kind,
		ID:        update.ID,
		Value:     update.Value,
		Unit:      update.Kind.Unit(),
		Source:    frame.Source,
		Timestamp: frame.ReceivedAt.UTC(),
	}
	if update.Kind == SensorDoorWindow {
		open := update.Value == ContactOpen
		state.Open = &open
	}

	payload, err := json.Marshal(state)
	if err != nil {
		b.logError("failed to marshal sensor state", err)
		return
	}
	if err := b.mqtt.Publish(SensorStateTopic(update.Kind, update.ID), payload, 1, true); err != nil {
		b.countError()
		b.logError("failed to publish sensor state", err)
		return
	}

	b.logDebug("lora sensor update", "kind", update.Kind, "sensor", update.ID, "value", update.Value)
}

func (b *Bridge) publishEvent(msg string, frame Frame) {
	payload, err := json.Marshal(MessageEvent{
		Message:   msg,
		Source:    frame.Source,
		RSSI:      frame.RSSI,
		SNR:       frame.SNR,
		Timestamp: frame.ReceivedAt.UTC(),
	})
	if err != nil {
		b.logError("failed to marshal message event", err)
		return
	}
	if err := b.mqtt.Publish(MessageTopic(), payload, 1, false); err != nil {
		b.countError()
		b.logError("failed to publish message event", err)
	}
}

// applyCover forwards a received cover command to the cover device.
func (b *Bridge) applyCover(msg string, frame Frame) {
	cmd, err := ParseCoverCommand(msg)
	if err != nil {
		b.countRejection(ReasonInvalidCoverCommand)
		b.logDebug("lora cover command rejected", "reason", ReasonInvalidCoverCommand, "error", err)
		return
	}
	if !b.covers.permits(cmd.ID) {
		b.countRejection(ReasonCoverNotAllowed)
		b.logDebug("lora cover command rejected", "reason", ReasonCoverNotAllowed, "cover", cmd.ID)
		return
	}
	if b.coverDevice == "" {
		b.logDebug("no cover device configured, ignoring cover command", "cover", cmd.ID)
		return
	}

	req := NewRPCRequest(b.rpcSource, MethodCoverGoToPosition, GoToPositionParams{ID: cmd.ID, Pos: cmd.Position})
	body, err := json.Marshal(req)
	if err != nil {
		b.logError("failed to marshal cover request", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.ShellyRPC(b.coverDevice), body, 1, false); err != nil {
		b.countError()
		b.logError("failed to publish cover request", err)
		return
	}

	state, err := json.Marshal(CoverState{
		ID:        cmd.ID,
		Position:  cmd.Position,
		Device:    b.coverDevice,
		Source:    "radio",
		Timestamp: frame.ReceivedAt.UTC(),
	})
	if err != nil {
		b.logError("failed to marshal cover state", err)
		return
	}
	if err := b.mqtt.Publish(CoverStateTopic(cmd.ID), state, 1, true); err != nil {
		b.countError()
		b.logError("failed to publish cover state", err)
		return
	}

	b.logInfo("cover moved", "cover", cmd.ID, "position", cmd.Position, "device", b.coverDevice)
}

func (b *Bridge) handleSendCommand(_ string, payload []byte) {
	var cmd SendCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logWarn("invalid send command", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.Send(ctx, cmd.Message); err != nil {
		b.logError("send command failed", err)
	}
}

func (b *Bridge) handleCoverCommand(_ string, payload []byte) {
	var cmd CoverCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logWarn("invalid cover command", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.SendCover(ctx, cmd); err != nil {
		b.logError("cover command failed", err)
	}
}

func (b *Bridge) reject(reason string, size int, frame Frame, err error) {
	b.countRejection(reason)
	b.record(DirectionRx, reason, size, frame.ReceivedAt)
	b.logDebug("lora frame rejected", "reason", reason, "source", frame.Source, "error", err)
}

func (b *Bridge) countRejection(reason string) {
	b.statsMu.Lock()
	b.stats.Rejections[reason]++
	b.statsMu.Unlock()
}

func (b *Bridge) countError() {
	b.statsMu.Lock()
	b.stats.Errors++
	b.statsMu.Unlock()
}

func (b *Bridge) record(direction, reason string, size int, ts time.Time) {
	if b.recorder != nil {
		b.recorder.WriteLoRaFrame(direction, reason, size, ts)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, kv ...any) {
	if l := b.getLogger(); l != nil {
		l.Info(msg, kv...)
	}
}

func (b *Bridge) logDebug(msg string, kv ...any) {
	if l := b.getLogger(); l != nil {
		l.Debug(msg, kv...)
	}
}

func (b *Bridge) logWarn(msg string, kv ...any) {
	if l := b.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if l := b.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
