// Package server exposes the current heart-rate snapshot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/state"
)

const wsPushInterval = 200 * time.Millisecond

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	HeartRate     uint16  `json:"heart_rate"`
	Timestamp     float64 `json:"timestamp"`
	DeviceName    string  `json:"device_name"`
	DeviceAddress string  `json:"device_address"`
	IsConnected   bool    `json:"is_connected"`
	LastUpdate    float64 `json:"last_update"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	IsConnected   bool    `json:"is_connected"`
	DeviceName    string  `json:"device_name"`
	LastHeartbeat float64 `json:"last_heartbeat"`
}

// Server serves read-only status endpoints backed by a state.Store.
type Server struct {
	store    *state.Store
	logger   *logrus.Logger
	httpSrv  *http.Server
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(store *state.Store, logger *logrus.Logger, listen string) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:    listen,
		Handler: mux,
	}
	return s
}

// Handler returns the routing handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// mapped to nil so a graceful shutdown does not read as a failure.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("listen", s.httpSrv.Addr).Info("Status endpoint listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) status() StatusResponse {
	snap := s.store.Snapshot()
	resp := StatusResponse{
		DeviceName:    snap.DeviceName,
		DeviceAddress: snap.DeviceAddress,
		IsConnected:   snap.Connected,
	}
	if snap.LastSample != nil {
		resp.HeartRate = snap.LastSample.BPM
		resp.Timestamp = float64(snap.LastSample.ObservedAt.UnixNano()) / float64(time.Second)
		resp.LastUpdate = s.now().Sub(snap.LastSample.ObservedAt).Seconds()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.store.Snapshot()
	resp := HealthResponse{
		IsConnected: snap.Connected,
		DeviceName:  snap.DeviceName,
	}
	if snap.LastSample != nil {
		resp.LastHeartbeat = float64(snap.LastSample.ObservedAt.UnixNano()) / float64(time.Second)
	}
	writeJSON(w, resp)
}

// handleWebSocket pushes the status snapshot on a fixed interval until the
// client goes away. The socket is push-only.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.status()); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
