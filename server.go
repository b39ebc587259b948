package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"i4.energy/across/wioe5/at"
	"i4.energy/across/wioe5/modem"
)

// Device is the part of the modem the HTTP server drives.
type Device interface {
	SetPort(ctx context.Context, port uint8) error
	SendData(ctx context.Context, data, rx []byte) (modem.Downlink, error)
	MaxPayload() int
	Joined() bool
	RSSI() int
	Version() string
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance. Requests are serialized since the module
// runs one transaction at a time.
type Server struct {
	Logger *slog.Logger
	Modem  Device

	mu sync.Mutex
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /uplink", s.handleUplink)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleUplink sends a hex encoded payload and returns the downlink the
// module received in its receive windows, if any.
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	type UplinkRequest struct {
		Payload string `json:"payload"`
		Port    uint8  `json:"port"`
	}

	type UplinkResponse struct {
		Downlink string `json:"downlink,omitempty"`
		Port     int    `json:"port,omitempty"`
		RSSI     int    `json:"rssi"`
	}

	var req UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Payload == "" || len(req.Payload)%2 != 0 {
		s.sendError(w, "'payload' must be a non-empty hex string", http.StatusBadRequest)
		return
	}

	data := make([]byte, len(req.Payload)/2)
	if at.DecodeRun(data, req.Payload, len(data)) != len(data) {
		s.sendError(w, "'payload' must be a non-empty hex string", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) > s.Modem.MaxPayload() {
		s.sendError(w, modem.ErrEncodingTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	if req.Port != 0 {
		if err := s.Modem.SetPort(r.Context(), req.Port); err != nil {
			s.Logger.Error("Failed to set port", "error", err, "port", req.Port)
			s.sendError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	rx := make([]byte, s.Modem.MaxPayload())
	d, err := s.Modem.SendData(r.Context(), data, rx)
	switch {
	case errors.Is(err, modem.ErrNotJoined):
		s.Logger.Warn("Uplink rejected, not joined", "error", err)
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, modem.ErrTimeout):
		s.Logger.Error("Uplink timed out", "error", err)
		s.sendError(w, err.Error(), http.StatusGatewayTimeout)
		return
	case err != nil:
		s.Logger.Error("Failed to send uplink", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Uplink sent successfully", "payload_length", len(data), "downlink_length", d.N, "rssi", d.RSSI)

	resp := UplinkResponse{Port: d.Port, RSSI: d.RSSI}
	if d.N > 0 {
		resp.Downlink = at.EncodeHex(rx[:d.N])
	}
	s.sendJSON(w, resp, http.StatusOK)
}

// handleStatus reports what the gateway knows about the module.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		Joined     bool   `json:"joined"`
		RSSI       int    `json:"rssi"`
		Version    string `json:"version"`
		MaxPayload int    `json:"max_payload"`
	}

	s.mu.Lock()
	resp := StatusResponse{
		Joined:     s.Modem.Joined(),
		RSSI:       s.Modem.RSSI(),
		Version:    s.Modem.Version(),
		MaxPayload: s.Modem.MaxPayload(),
	}
	s.mu.Unlock()

	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}
