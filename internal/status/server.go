// Package status is the local HTTP control surface of the client: health,
// a state snapshot, manual re-sync and device selection.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"musicroom-sync-client/internal/device"
	"musicroom-sync-client/internal/playback"
	"musicroom-sync-client/internal/provider"
	"musicroom-sync-client/internal/room"
)

type Snapshot struct {
	Transport     string `json:"transport"`
	Handshake     string `json:"handshake"`
	RoomPhase     string `json:"roomPhase"`
	UserID        string `json:"userId,omitempty"`
	RoomID        string `json:"roomId,omitempty"`
	CurrentTrack  string `json:"currentTrack,omitempty"`
	Playing       bool   `json:"playing"`
	PositionMs    int64  `json:"positionMs"`
	QueueLength   int    `json:"queueLength"`
	RTTMs         int64  `json:"rttMs"`
	OffsetMs      int64  `json:"offsetMs"`
	Device        string `json:"device,omitempty"`
	Syncing       bool   `json:"syncing"`
	KeepSynced    bool   `json:"keepSynced"`
	PickerVisible bool   `json:"pickerVisible"`
}

type Devices struct {
	Current string            `json:"current,omitempty"`
	Pending bool              `json:"pending"`
	Error   string            `json:"error,omitempty"`
	Devices []provider.Device `json:"devices"`
}

// Backend is what the surface drives. client.Client implements it.
type Backend interface {
	Snapshot(ctx context.Context) Snapshot
	Devices() Devices
	SyncNow(ctx context.Context) error
	SelectDevice(ctx context.Context, id string) error
	SetPickerVisible(visible bool)
}

type Server struct {
	b   Backend
	log zerolog.Logger
}

func NewServer(b Backend, log zerolog.Logger) *Server {
	return &Server{b: b, log: log}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/sync", s.handleSync)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", s.handleDevices)
		r.Post("/picker", s.handlePicker)
		r.Post("/{id}/select", s.handleSelect)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "musicroom-sync-client",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.b.Snapshot(r.Context()))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.b.SyncNow(r.Context()); err != nil {
		s.log.Info().Err(err).Msg("manual sync")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": true})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.b.Devices())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "device id is required")
		return
	}
	if err := s.b.SelectDevice(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.b.Devices())
}

type pickerRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) handlePicker(w http.ResponseWriter, r *http.Request) {
	var req pickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.b.SetPickerVisible(req.Visible)
	writeJSON(w, http.StatusOK, map[string]any{"visible": req.Visible})
}

func statusFor(err error) int {
	var perr *provider.Error
	switch {
	case errors.Is(err, device.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, room.ErrPrecondition),
		errors.Is(err, playback.ErrInProgress),
		errors.Is(err, playback.ErrStale):
		return http.StatusConflict
	case errors.Is(err, playback.ErrSyncExhausted):
		return http.StatusGatewayTimeout
	case errors.As(err, &perr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
