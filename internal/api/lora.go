package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-radio/internal/bridges/lora"
	"github.com/nerrad567/gray-logic-radio/internal/framing"
)

// sendRequest is the body of POST /api/v1/lora/send.
type sendRequest struct {
	Message string `json:"message"`
}

// coverRequest is the body of POST /api/v1/lora/cover. Pointers tell a
// missing field from zero.
type coverRequest struct {
	ID       *int `json:"id"`
	Position *int `json:"position"`
}

// sendResponse acknowledges a transmitted frame.
type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleLoRaSend encrypts and transmits a free-form message.
func (s *Server) handleLoRaSend(w http.ResponseWriter, r *http.Request) {
	if s.lora == nil {
		writeUnavailable(w, "lora bridge is not enabled")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.lora.Send(r.Context(), req.Message); err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sendResponse{Status: "sent", Message: req.Message})
}

// handleLoRaCover builds a cover command and transmits it.
func (s *Server) handleLoRaCover(w http.ResponseWriter, r *http.Request) {
	if s.lora == nil {
		writeUnavailable(w, "lora bridge is not enabled")
		return
	}

	var req coverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == nil || req.Position == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "id and position are required")
		return
	}

	cmd := lora.CoverCommand{ID: *req.ID, Position: *req.Position}
	if err := s.lora.SendCover(r.Context(), cmd); err != nil {
		s.writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sendResponse{Status: "sent", Message: cmd.String()})
}

// writeSendError maps a LoRa send failure to a response.
func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, framing.ErrEmptyMessage),
		errors.Is(err, lora.ErrInvalidCoverCommand),
		errors.Is(err, lora.ErrPayloadTooLarge):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, lora.ErrNotConnected):
		writeUnavailable(w, err.Error())
	default:
		s.logger.Error("lora send failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "lora transmit failed")
	}
}
