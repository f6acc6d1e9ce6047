package lora

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// RYLR896 AT protocol constants.
const (
	// MaxSerialPayload is the largest payload AT+SEND accepts.
	MaxSerialPayload = 240

	rcvPrefix = "+RCV="
	errPrefix = "+ERR="
	okReply   = "+OK"

	defaultSerialReadTimeout = time.Second
	defaultReconnectDelay    = time.Second
	defaultMaxReconnectDelay = 30 * time.Second
	serialReadChunk          = 256
	maxSerialLine            = 1024
)

// SerialConfig configures an RYLR896 module on a UART.
type SerialConfig struct {
	Port        string
	Baud        int
	Address     int // peer address used by AT+SEND
	ReadTimeout time.Duration

	// ReconnectDelay is the first wait before reopening a port whose read
	// failed. It doubles per failed attempt up to MaxReconnectDelay.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// SerialTransport drives an RYLR896 LoRa module with AT commands.
// A read failure closes the port and reopens it with backoff until Close.
type SerialTransport struct {
	cfg  SerialConfig
	open func(*serial.Config) (io.ReadWriteCloser, error)

	port           io.ReadWriteCloser
	connectedSince time.Time
	reconnects     uint64
	mu             sync.RWMutex
	writeMu        sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewSerialTransport creates a transport for the module described by cfg.
// The port is opened by Start.
func NewSerialTransport(cfg SerialConfig) *SerialTransport {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultSerialReadTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(defaultMaxReconnectDelay, cfg.ReconnectDelay)
	}
	return &SerialTransport{
		cfg:  cfg,
		open: openSerialPort,
		done: make(chan struct{}),
	}
}

func openSerialPort(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(c)
}

// SetLogger sets the logger for this transport.
func (t *SerialTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// Start opens the serial port and begins reading +RCV lines.
func (t *SerialTransport) Start(ctx context.Context, onFrame func(Frame)) error {
	port, err := t.openPort()
	if err != nil {
		return fmt.Errorf("opening %s: %w", t.cfg.Port, err)
	}

	t.mu.Lock()
	t.port = port
	t.connectedSince = time.Now()
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx, port, onFrame)

	t.logInfo("lora serial transport started", "port", t.cfg.Port, "baud", t.cfg.Baud)
	return nil
}

func (t *SerialTransport) openPort() (io.ReadWriteCloser, error) {
	return t.open(&serial.Config{
		Name:        t.cfg.Port,
		Baud:        t.cfg.Baud,
		ReadTimeout: t.cfg.ReadTimeout,
	})
}

// Send writes an AT+SEND command for payload.
func (t *SerialTransport) Send(_ context.Context, payload string) error {
	if len(payload) > MaxSerialPayload {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxSerialPayload)
	}

	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()
	if port == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	cmd := FormatSend(t.cfg.Address, payload)
	n, err := port.Write([]byte(cmd))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if n != len(cmd) {
		return fmt.Errorf("%w: short write %d of %d bytes", ErrSendFailed, n, len(cmd))
	}
	return nil
}

// IsConnected reports whether the port is open.
func (t *SerialTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.port != nil
}

// Address returns the serial port name.
func (t *SerialTransport) Address() string { return t.cfg.Port }

// ConnectedSince returns when the port was last opened.
func (t *SerialTransport) ConnectedSince() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connectedSince
}

// Reconnects returns how many times the port was reopened after a failure.
func (t *SerialTransport) Reconnects() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reconnects
}

// Close stops the read loop and any pending reopen, then closes the port.
func (t *SerialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		port := t.port
		t.port = nil
		t.mu.Unlock()

		if port != nil {
			err = port.Close()
		}
		t.wg.Wait()
	})
	return err
}

// run reads from port until it fails, then swaps in a reopened port.
func (t *SerialTransport) run(ctx context.Context, port io.ReadWriteCloser, onFrame func(Frame)) {
	defer t.wg.Done()

	for {
		err := t.readLoop(ctx, port, onFrame)
		if err == nil || t.stopping(ctx) {
			return
		}

		t.logError("serial read failed", err)
		t.dropPort(port)

		if port = t.reopen(ctx); port == nil {
			return
		}
	}
}

// readLoop returns nil once the transport is stopping and the read error
// otherwise.
func (t *SerialTransport) readLoop(ctx context.Context, port io.Reader, onFrame func(Frame)) error {
	var pending []byte
	chunk := make([]byte, serialReadChunk)

	for {
		if t.stopping(ctx) {
			return nil
		}

		n, err := port.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			pending = t.drainLines(pending, onFrame)
		}
		if err != nil {
			// A read timeout surfaces as io.EOF with no data.
			if errors.Is(err, io.EOF) {
				continue
			}
			return err
		}
	}
}

// dropPort detaches and closes port unless Close already took it.
func (t *SerialTransport) dropPort(port io.ReadWriteCloser) {
	t.mu.Lock()
	owned := t.port == port
	if owned {
		t.port = nil
	}
	t.mu.Unlock()

	if !owned {
		return
	}
	if err := port.Close(); err != nil {
		t.logDebug("closing failed serial port", "error", err)
	}
}

// reopen retries opening the port with doubling delays. It returns nil when
// the transport stops first.
func (t *SerialTransport) reopen(ctx context.Context) io.ReadWriteCloser {
	delay := t.cfg.ReconnectDelay

	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-t.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		port, err := t.openPort()
		if err != nil {
			t.logWarn("serial reopen failed", "port", t.cfg.Port, "attempt", attempt, "error", err)
			delay = min(delay*2, t.cfg.MaxReconnectDelay)
			continue
		}

		t.mu.Lock()
		if t.stopping(ctx) {
			t.mu.Unlock()
			port.Close()
			return nil
		}
		t.port = port
		t.connectedSince = time.Now()
		t.reconnects++
		t.mu.Unlock()

		t.logInfo("lora serial port reopened", "port", t.cfg.Port, "attempts", attempt)
		return port
	}
}

func (t *SerialTransport) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-t.done:
		return true
	default:
		return false
	}
}

// drainLines handles every complete line in buf and returns the remainder.
func (t *SerialTransport) drainLines(buf []byte, onFrame func(Frame)) []byte {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(buf[:i]), "\r")
		buf = buf[i+1:]
		t.handleLine(line, onFrame)
	}
	if len(buf) > maxSerialLine {
		t.logWarn("discarding oversized serial line", "bytes", len(buf))
		return buf[:0]
	}
	return buf
}

func (t *SerialTransport) handleLine(line string, onFrame func(Frame)) {
	switch {
	case line == "" || line == okReply:
	case strings.HasPrefix(line, errPrefix):
		t.logWarn("radio module error", "code", strings.TrimPrefix(line, errPrefix))
	case strings.HasPrefix(line, rcvPrefix):
		frame, err := ParseReceive(line)
		if err != nil {
			t.logWarn("ignoring malformed receive line", "error", err)
			return
		}
		onFrame(frame)
	default:
		t.logDebug("ignoring serial line", "line", line)
	}
}

// FormatSend renders an AT+SEND command, e.g. "AT+SEND=2,4,abcd\r\n".
func FormatSend(address int, payload string) string {
	return "AT+SEND=" + strconv.Itoa(address) + "," + strconv.Itoa(len(payload)) + "," + payload + "\r\n"
}

// ParseReceive parses a "+RCV=<addr>,<len>,<data>,<rssi>,<snr>" line.
//
// Returns:
//   - Frame: Payload, RSSI, SNR and the sender address as Source
//   - error: ErrInvalidReceive if the line is malformed or the length disagrees
func ParseReceive(line string) (Frame, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), rcvPrefix)
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing %s prefix", ErrInvalidReceive, rcvPrefix)
	}

	parts := strings.Split(body, ",")
	if len(parts) < 5 {
		return Frame{}, fmt.Errorf("%w: want 5 fields, got %d", ErrInvalidReceive, len(parts))
	}

	last := len(parts) - 1
	addr := parts[0]
	if _, err := strconv.Atoi(addr); err != nil {
		return Frame{}, fmt.Errorf("%w: address %q", ErrInvalidReceive, addr)
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: length %q", ErrInvalidReceive, parts[1])
	}
	data := strings.Join(parts[2:last-1], ",")
	if len(data) != size {
		return Frame{}, fmt.Errorf("%w: length %d does not match %d data bytes", ErrInvalidReceive, size, len(data))
	}
	rssi, err := strconv.Atoi(parts[last-1])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: rssi %q", ErrInvalidReceive, parts[last-1])
	}
	snr, err := strconv.ParseFloat(parts[last], 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: snr %q", ErrInvalidReceive, parts[last])
	}

	return Frame{
		Payload:    data,
		RSSI:       rssi,
		SNR:        snr,
		Source:     addr,
		ReceivedAt: time.Now(),
	}, nil
}

func (t *SerialTransport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

func (t *SerialTransport) logInfo(msg string, kv ...any) {
	if l := t.getLogger(); l != nil {
		l.Info(msg, kv...)
	}
}

func (t *SerialTransport) logDebug(msg string, kv ...any) {
	if l := t.getLogger(); l != nil {
		l.Debug(msg, kv...)
	}
}

func (t *SerialTransport) logWarn(msg string, kv ...any) {
	if l := t.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}

func (t *SerialTransport) logError(msg string, err error) {
	if l := t.getLogger(); l != nil {
		l.Error(msg, "error", err)
	}
}
