package ble

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket source defaults.
const (
	defaultReconnectDelay = 5 * time.Second
	defaultWSReadLimit    = 4096
	wsHandshakeTimeout    = 10 * time.Second
)

// WebSocketSource reads scan messages from a scanner's WebSocket stream,
// redialling after the connection drops.
type WebSocketSource struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	readLimit      int64

	mu             sync.Mutex
	conn           *websocket.Conn
	connectedSince time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewWebSocketSource creates a source for url (ws:// or wss://).
func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{
		url:            url,
		dialer:         &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
		reconnectDelay: defaultReconnectDelay,
		readLimit:      defaultWSReadLimit,
		done:           make(chan struct{}),
	}
}

// SetLogger sets the logger for this source.
func (s *WebSocketSource) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Start dials in the background and hands every text or binary message to
// handler. It returns immediately.
func (s *WebSocketSource) Start(ctx context.Context, handler func(payload []byte)) error {
	select {
	case <-s.done:
		return ErrSourceClosed
	default:
	}

	s.wg.Add(1)
	go s.run(ctx, handler)
	return nil
}

// IsConnected reports whether a connection is open.
func (s *WebSocketSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ConnectedSince returns when the current connection was opened.
func (s *WebSocketSource) ConnectedSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedSince
}

// Address returns the stream URL.
func (s *WebSocketSource) Address() string { return s.url }

// Close stops the source and closes the connection.
func (s *WebSocketSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.conn != nil {
			//nolint:errcheck // Best-effort during shutdown
			s.conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
	return nil
}

func (s *WebSocketSource) run(ctx context.Context, handler func(payload []byte)) {
	defer s.wg.Done()

	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logWarn("scanner websocket dial failed", "url", s.url, "error", err)
		} else {
			s.serve(conn, handler)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

// serve reads from conn until it fails or the source is closed.
func (s *WebSocketSource) serve(conn *websocket.Conn, handler func(payload []byte)) {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		conn.Close() //nolint:errcheck
		return
	default:
	}
	s.conn = conn
	s.connectedSince = time.Now()
	s.mu.Unlock()

	s.logInfo("scanner websocket connected", "url", s.url)

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close() //nolint:errcheck
	}()

	conn.SetReadLimit(s.readLimit)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logWarn("scanner websocket read failed", "url", s.url, "error", err)
			}
			return
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			handler(msg)
		}
	}
}

func (s *WebSocketSource) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *WebSocketSource) logInfo(msg string, kv ...any) {
	if l := s.getLogger(); l != nil {
		l.Info(msg, kv...)
	}
}

func (s *WebSocketSource) logWarn(msg string, kv ...any) {
	if l := s.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}
