package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/health"
	"github.com/nerrad567/gray-logic-radio/internal/bridges/lora"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-radio/internal/reading"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LoRaSender transmits over the encrypted LoRa link. Satisfied by *lora.Bridge.
type LoRaSender interface {
	Send(ctx context.Context, msg string) error
	SendCover(ctx context.Context, cmd lora.CoverCommand) error
}

// ReadingQuerier reads stored BLE readings. Satisfied by *reading.SQLiteRepository.
type ReadingQuerier interface {
	Latest(ctx context.Context, address string) ([]reading.Reading, error)
	List(ctx context.Context) ([]reading.Reading, error)
	History(ctx context.Context, address string, limit int) ([]reading.Reading, error)
}

// HealthSource reports the health of one bridge. Satisfied by both bridges.
type HealthSource interface {
	Health() health.Message
}

// Subscriber receives MQTT messages for the event stream. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// mqttStatsReporter is implemented by *mqtt.Client; the health report
// includes its counters when the subscriber provides them.
type mqttStatsReporter interface {
	Stats() mqtt.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	LoRa     LoRaSender     // optional
	Readings ReadingQuerier // optional
	MQTT     Subscriber     // optional; feeds the event stream
	Version  string
}

// Server is the HTTP API server of the gateway.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	lora     LoRaSender
	readings ReadingQuerier
	mqtt     Subscriber
	version  string
	started  time.Time
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()

	bridges   map[string]HealthSource
	bridgesMu sync.RWMutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger is required, every other dependency is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		lora:     deps.LoRa,
		readings: deps.Readings,
		mqtt:     deps.MQTT,
		version:  deps.Version,
		started:  time.Now(),
		hub:      NewHub(deps.Config.WebSocket, deps.Logger),
		bridges:  make(map[string]HealthSource),
	}, nil
}

// RegisterBridge adds a bridge to the health report.
func (s *Server) RegisterBridge(name string, src HealthSource) {
	s.bridgesMu.Lock()
	s.bridges[name] = src
	s.bridgesMu.Unlock()
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to bridge topics for the event
// stream, and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context of the hub and relay goroutines
//
// Returns:
//   - error: If the event stream cannot be wired
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.subscribeEvents(); err != nil {
		s.logger.Warn("failed to subscribe to bridge events for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
