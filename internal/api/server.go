// Package api is the HTTP surface of the advisor: message turns, room
// memory, market and price reports, and a per-room WebSocket reply stream.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/actions"
	"github.com/orchardfi/advisor/internal/engine"
	"github.com/orchardfi/advisor/internal/market"
	"github.com/orchardfi/advisor/internal/memory"
)

type Server struct {
	Engine    *engine.Engine
	Store     *memory.Store
	Market    *market.Provider
	Hub       *Hub
	StartedAt time.Time
	Log       zerolog.Logger
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/market", s.handleMarket)
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/rooms/", s.handleRooms)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.StartedAt).String(),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	snapshots := s.Market.Snapshots(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"assets": snapshots,
		"report": s.Market.Report(r.Context()),
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	prices, err := s.Market.Prices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

// handleRooms dispatches /api/rooms/{room}/{messages|memory|ws}.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) != 2 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}
	roomID := segments[0]

	switch segments[1] {
	case "messages":
		s.handleMessages(w, r, roomID)
	case "memory":
		s.handleMemory(w, r, roomID)
	case "ws":
		s.handleRoomWS(w, r, roomID)
	default:
		http.NotFound(w, r)
	}
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req messageRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text is required"})
		return
	}

	replies, err := s.Engine.HandleMessage(r.Context(), actions.Message{
		RoomID: roomID,
		UserID: req.UserID,
		Text:   req.Text,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("room_id", roomID).Msg("turn failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if s.Hub != nil {
		s.Hub.Publish(roomID, replies)
	}
	writeJSON(w, http.StatusOK, map[string]any{"replies": replies})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	records, err := s.Store.ByRoom(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}
