package ble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/health"
	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/reading"
)

// storeTimeout bounds persistence of one reading.
const storeTimeout = 5 * time.Second

// Bridge turns scanner advertisements into Gray Logic readings.
// It handles:
//   - Ingesting scan results from MQTT and an optional stream source
//   - Decoding, duplicate suppression and address filtering
//   - Publishing state, storing readings and firing button actions
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt       MQTTClient
	dispatcher *bleadv.Dispatcher
	dedupe     Deduper
	buttons    *ButtonRouter
	store      ReadingStore
	recorder   ReadingRecorder
	allow      map[string]struct{}
	scanTopic  string
	stream     ScanSource
	health     *health.Reporter

	devices   map[string]struct{}
	devicesMu sync.RWMutex

	stats   Stats
	statsMu sync.Mutex

	// Shutdown coordination
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
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

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ScanSource is a push source of raw scan messages, such as WebSocketSource.
type ScanSource interface {
	Start(ctx context.Context, handler func(payload []byte)) error
	IsConnected() bool
	Address() string
	ConnectedSince() time.Time
	Close() error
}

// ReadingStore persists readings. Satisfied by *reading.SQLiteRepository.
// Optional; if nil readings are only published.
type ReadingStore interface {
	Save(ctx context.Context, r reading.Reading) error
}

// ReadingRecorder stores reading telemetry. Satisfied by *influxdb.Client.
// Optional.
type ReadingRecorder interface {
	WriteReading(address, kind string, rssi int, fields map[string]any, ts time.Time)
}

// Stats are the bridge counters.
type Stats struct {
	Scans      uint64            `json:"scans"`
	Accepted   uint64            `json:"accepted"`
	Duplicates uint64            `json:"duplicates"`
	Filtered   uint64            `json:"filtered"`
	Errors     uint64            `json:"errors"`
	Rejections map[string]uint64 `json:"rejections"`
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient publishes state and receives scan results.
	MQTTClient MQTTClient

	// ScanTopic is subscribed for JSON scan messages. Empty disables MQTT ingest.
	ScanTopic string

	// Stream is an optional additional scan source.
	Stream ScanSource

	// Dispatcher decodes advertisements. Defaults to bleadv.NewDispatcher().
	Dispatcher *bleadv.Dispatcher

	// Deduper suppresses repeated packets. Defaults to a MemoryDeduper.
	Deduper Deduper

	// Buttons binds PTM215B switches to MQTT actions.
	Buttons []ButtonBinding

	// Addresses is the device allow-list. Empty accepts every device.
	Addresses []string

	// Store and Recorder are optional sinks.
	Store    ReadingStore
	Recorder ReadingRecorder

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default 30s.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.ScanTopic == "" && opts.Stream == nil {
		return nil, fmt.Errorf("scan topic or stream is required")
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = bleadv.NewDispatcher()
	}
	dedupe := opts.Deduper
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}

	var allow map[string]struct{}
	if len(opts.Addresses) > 0 {
		allow = make(map[string]struct{}, len(opts.Addresses))
		for _, a := range opts.Addresses {
			allow[bleadv.NormalizeAddress(a)] = struct{}{}
		}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:       opts.MQTTClient,
		dispatcher: dispatcher,
		dedupe:     dedupe,
		buttons:    NewButtonRouter(opts.Buttons),
		store:      opts.Store,
		recorder:   opts.Recorder,
		allow:      allow,
		scanTopic:  opts.ScanTopic,
		stream:     opts.Stream,
		devices:    make(map[string]struct{}),
		stats:      Stats{Rejections: make(map[string]uint64)},
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
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

// Start subscribes to scan results, starts the stream and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if b.scanTopic != "" {
		if err := b.mqtt.Subscribe(b.scanTopic, 0, b.handleScanMessage); err != nil {
			return fmt.Errorf("subscribe to scan results: %w", err)
		}
		b.logInfo("subscribed to scan results", "topic", b.scanTopic)
	}

	if b.stream != nil {
		if err := b.stream.Start(ctx, b.handleStreamMessage); err != nil {
			return fmt.Errorf("start scan stream: %w", err)
		}
	}

	b.health.Start(ctx)

	b.logInfo("ble bridge started",
		"allow_list", len(b.allow),
		"buttons", b.buttons.Len())
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()

		if b.stream != nil {
			if err := b.stream.Close(); err != nil {
				b.logError("failed to close scan stream", err)
			}
		}

		b.health.Stop()
		b.logInfo("ble bridge stopped")
	})
}

// HandleScan runs one scan result through filtering, decoding, duplicate
// suppression and the sinks.
//
// Returns:
//   - reading.Reading: The accepted reading
//   - bool: False if the scan was filtered, rejected or a duplicate
func (b *Bridge) HandleScan(ctx context.Context, res *bleadv.ScanResult) (reading.Reading, bool) {
	b.statsMu.Lock()
	b.stats.Scans++
	b.statsMu.Unlock()

	address := bleadv.NormalizeAddress(res.Address)
	if b.allow != nil {
		if _, ok := b.allow[address]; !ok {
			b.statsMu.Lock()
			b.stats.Filtered++
			b.statsMu.Unlock()
			return reading.Reading{}, false
		}
	}

	rec, route, err := b.dispatcher.Decode(res)
	if err != nil {
		reason := bleadv.Reason(err)
		b.countRejection(reason)
		if !errors.Is(err, bleadv.ErrNoDecoder) {
			b.logDebug("advertisement rejected", "address", address, "route", route, "reason", reason, "error", err)
		}
		return reading.Reading{}, false
	}

	fresh, err := b.dedupe.Fresh(ctx, address, rec)
	if err != nil {
		// Shared store unavailable: let the reading through.
		b.countError()
		b.logWarn("duplicate check failed", "address", address, "error", err)
		fresh = true
	}
	if !fresh {
		b.statsMu.Lock()
		b.stats.Duplicates++
		b.statsMu.Unlock()
		return reading.Reading{}, false
	}

	ts := res.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	r := reading.Reading{
		Address:    address,
		Kind:       string(rec.Kind()),
		RSSI:       res.RSSI,
		Data:       rec.Fields(),
		ReceivedAt: ts.UTC(),
	}

	b.statsMu.Lock()
	b.stats.Accepted++
	b.statsMu.Unlock()
	b.devicesMu.Lock()
	b.devices[address] = struct{}{}
	b.devicesMu.Unlock()

	b.publishState(r)
	if ev, ok := rec.(*bleadv.ButtonEvent); ok {
		b.handleButton(address, ev, r.ReceivedAt)
	}
	b.persist(ctx, r)

	return r, true
}

// Stats returns a copy of the bridge counters.
func (b *Bridge) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	s := b.stats
	s.Rejections = maps.Clone(b.stats.Rejections)
	return s
}

// DeviceCount returns the number of distinct devices accepted so far.
func (b *Bridge) DeviceCount() int {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()
	return len(b.devices)
}

// HealthSnapshot implements health.Source.
func (b *Bridge) HealthSnapshot() health.Snapshot {
	s := b.Stats()
	snap := health.Snapshot{
		Connected: b.mqtt.IsConnected(),
		Address:   b.scanTopic,
		Devices:   b.DeviceCount(),
		Stats: health.Statistics{
			MessagesReceived: s.Accepted,
			Errors:           s.Errors,
			Rejections:       s.Rejections,
		},
	}
	if b.stream != nil {
		snap.Connected = b.stream.IsConnected()
		snap.Address = b.stream.Address()
		snap.ConnectedSince = b.stream.ConnectedSince()
	}
	return snap
}

// Health returns the current health message.
func (b *Bridge) Health() health.Message {
	return b.health.Message()
}

func (b *Bridge) handleScanMessage(_ string, payload []byte) {
	res, err := ParseScanMessage(payload)
	if err != nil {
		b.countRejection(ReasonInvalidScan)
		b.logDebug("invalid scan message", "error", err)
		return
	}
	b.HandleScan(b.ctx, res)
}

func (b *Bridge) handleStreamMessage(payload []byte) {
	res, err := ParseWebSocketMessage(payload)
	if err != nil {
		b.countRejection(ReasonInvalidScan)
		b.logDebug("invalid stream message", "error", err)
		return
	}
	b.HandleScan(b.ctx, res)
}

func (b *Bridge) publishState(r reading.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		b.logError("failed to marshal reading", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(r.Address), payload, 1, true); err != nil {
		b.countError()
		b.logError("failed to publish state", err)
	}
}

func (b *Bridge) handleButton(address string, ev *bleadv.ButtonEvent, ts time.Time) {
	action, fire := b.buttons.Route(address, ev)

	payload, err := json.Marshal(ButtonEventMessage{
		Address:   address,
		Button:    ev.Button,
		Pressed:   ev.Pressed,
		Action:    ev.Action,
		Sequence:  ev.SequenceCounter,
		Fired:     fire,
		Timestamp: ts,
	})
	if err == nil {
		if err := b.mqtt.Publish(ButtonEventTopic(), payload, 1, false); err != nil {
			b.countError()
			b.logError("failed to publish button event", err)
		}
	}

	if !fire {
		return
	}
	if err := b.mqtt.Publish(action.Topic, []byte(action.Payload), 1, action.Retain); err != nil {
		b.countError()
		b.logError("failed to publish button action", err)
		return
	}
	b.logInfo("button action fired", "address", address, "button", ev.Button, "topic", action.Topic)
}

func (b *Bridge) persist(ctx context.Context, r reading.Reading) {
	if b.recorder != nil {
		b.recorder.WriteReading(r.Address, r.Kind, r.RSSI, r.Data, r.ReceivedAt)
	}
	if b.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := b.store.Save(ctx, r); err != nil {
		b.countError()
		b.logError("failed to store reading", err)
	}
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
