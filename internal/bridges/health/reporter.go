package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultInterval is used when no reporting interval is configured.
const DefaultInterval = 30 * time.Second

// Reporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type Reporter struct {
	bridge    string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	source    Source

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Publisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type Publisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// Source reports the bridge's current link state and counters.
type Source interface {
	HealthSnapshot() Snapshot
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// Config holds configuration for the health reporter.
type Config struct {
	// Bridge is the bridge identifier used in the topic and payload.
	Bridge string

	// Version is the gateway software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher Publisher

	// Source provides link state and counters. Optional.
	Source Source
}

// NewReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *Reporter: Ready to start (call Start to begin reporting)
func NewReporter(cfg Config) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reporter{
		bridge:    cfg.Bridge,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *Reporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times.
func (h *Reporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(StatusStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *Reporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *Reporter) PublishStarting() error {
	return h.publishStatus(StatusStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *Reporter) PublishNow() error {
	status, reason := h.Status()
	return h.publishStatus(status, reason)
}

// Status evaluates the current bridge status.
func (h *Reporter) Status() (Status, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return StatusDegraded, "MQTT disconnected"
	}
	if h.source != nil && !h.source.HealthSnapshot().Connected {
		return StatusDegraded, "radio link disconnected"
	}
	return StatusHealthy, ""
}

// Message builds the current health message without publishing it.
func (h *Reporter) Message() Message {
	status, reason := h.Status()
	return h.buildMessage(status, reason)
}

func (h *Reporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *Reporter) buildMessage(status Status, reason string) Message {
	var snap Snapshot
	if h.source != nil {
		snap = h.source.HealthSnapshot()
	}
	msg := NewMessage(h.bridge, h.version, status, snap, h.startTime)
	if reason != "" {
		msg.Reason = reason
	}
	return msg
}

func (h *Reporter) publishStatus(status Status, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}

	return h.publisher.Publish(Topic(h.bridge), payload, 1, true)
}

func (h *Reporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
