package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/reading"
)

// History page limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// readingsResponse is the body of GET /api/v1/ble/readings.
type readingsResponse struct {
	Readings []reading.Reading `json:"readings"`
	Count    int               `json:"count"`
}

// deviceReadingsResponse is the body of GET /api/v1/ble/readings/{address}.
type deviceReadingsResponse struct {
	Address string            `json:"address"`
	Latest  []reading.Reading `json:"latest"`
	History []reading.Reading `json:"history"`
}

// handleListReadings returns the latest reading of every device.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	if s.readings == nil {
		writeUnavailable(w, "reading store is not enabled")
		return
	}

	list, err := s.readings.List(r.Context())
	if err != nil {
		s.logger.Error("listing readings failed", "error", err)
		writeInternalError(w, "failed to list readings")
		return
	}
	if list == nil {
		list = []reading.Reading{}
	}
	writeJSON(w, http.StatusOK, readingsResponse{Readings: list, Count: len(list)})
}

// handleGetReadings returns the latest readings and recent history of one
// device. ?limit= bounds the history (default 50, max 1000).
func (s *Server) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	if s.readings == nil {
		writeUnavailable(w, "reading store is not enabled")
		return
	}

	address := ble.NormalizeAddress(chi.URLParam(r, "address"))

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	latest, err := s.readings.Latest(r.Context(), address)
	if errors.Is(err, reading.ErrNotFound) {
		writeNotFound(w, "no readings for "+address)
		return
	}
	if err != nil {
		s.logger.Error("reading lookup failed", "address", address, "error", err)
		writeInternalError(w, "failed to read device")
		return
	}

	history, err := s.readings.History(r.Context(), address, limit)
	if err != nil {
		s.logger.Error("history lookup failed", "address", address, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if history == nil {
		history = []reading.Reading{}
	}

	writeJSON(w, http.StatusOK, deviceReadingsResponse{Address: address, Latest: latest, History: history})
}
