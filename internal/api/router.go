package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/health"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-radio/internal/panel"
)

// panelPath is where the monitor page is mounted.
const panelPath = "/monitor"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/lora", func(r chi.Router) {
			r.Post("/send", s.handleLoRaSend)
			r.Post("/cover", s.handleLoRaCover)
		})

		r.Route("/ble/readings", func(r chi.Router) {
			r.Get("/", s.handleListReadings)
			r.Get("/{address}", s.handleGetReadings)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	if s.cfg.Panel.Enabled {
		monitor := panel.Handler(s.cfg.Panel.Dir, panelPath)
		toPanel := func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, panelPath+"/", http.StatusFound)
		}
		r.Get("/", toPanel)
		r.Get(panelPath, toPanel)
		r.Handle(panelPath+"/*", monitor)
	}

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status        string                    `json:"status"`
	Version       string                    `json:"version"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	Bridges       map[string]health.Message `json:"bridges"`
	StreamClients int                       `json:"stream_clients"`
	StreamDropped uint64                    `json:"stream_dropped"`
	MQTT          *mqtt.Stats               `json:"mqtt,omitempty"`
}

// handleHealth returns the gateway status and the health of every bridge.
// The overall status is the worst of the bridge statuses.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.bridgesMu.RLock()
	names := make([]string, 0, len(s.bridges))
	for name := range s.bridges {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Bridges:       make(map[string]health.Message, len(names)),
		StreamClients: s.hub.ClientCount(),
		StreamDropped: s.hub.Dropped(),
	}
	for _, name := range names {
		msg := s.bridges[name].Health()
		resp.Bridges[name] = msg
		if msg.Status != health.StatusHealthy && msg.Status != health.StatusStarting {
			resp.Status = "degraded"
		}
	}
	s.bridgesMu.RUnlock()

	if sr, ok := s.mqtt.(mqttStatsReporter); ok {
		stats := sr.Stats()
		resp.MQTT = &stats
		if !stats.Connected {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
