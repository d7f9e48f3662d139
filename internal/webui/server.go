// Package webui serves the live view and the session control API.
package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/review3/liveness-cam/internal/metrics"
	"github.com/review3/liveness-cam/internal/session"
	"github.com/review3/liveness-cam/pkg/types"
)

const statusInterval = 2 * time.Second

// Server exposes the monitor page, the MJPEG stream and the session API.
type Server struct {
	controller  *session.Controller
	broadcaster *FrameBroadcaster
	metrics     *metrics.Metrics
	started     time.Time
}

// NewServer wires the web UI around a session controller and its frame
// broadcaster.
func NewServer(controller *session.Controller, broadcaster *FrameBroadcaster, m *metrics.Metrics) *Server {
	return &Server{
		controller:  controller,
		broadcaster: broadcaster,
		metrics:     m,
		started:     time.Now(),
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/detections", s.handleDetections)
	mux.HandleFunc("/api/session/start", s.handleSessionStart)
	mux.HandleFunc("/api/session/stop", s.handleSessionStop)
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.broadcaster.Subscribe()
	s.metrics.StreamClients.Store(uint64(s.broadcaster.ClientCount()))
	defer func() {
		s.broadcaster.Unsubscribe(id)
		s.metrics.StreamClients.Store(uint64(s.broadcaster.ClientCount()))
	}()

	streamMJPEG(w, r, frameCh)
}

func (s *Server) statusPayload() map[string]any {
	snap := s.controller.Snapshot()
	return map[string]any{
		"session": snap,
		"stats": map[string]any{
			"frames_captured":      s.metrics.FramesCaptured.Load(),
			"frames_rendered":      s.metrics.FramesRendered.Load(),
			"prediction_cycles":    s.metrics.PredictionCycles.Load(),
			"prediction_failures":  s.metrics.PredictionFailures.Load(),
			"prediction_in_flight": s.metrics.PredictionInFlight.Load(),
			"uptime_seconds":       int(time.Since(s.started).Seconds()),
		},
		"timestamp": float64(time.Now().Unix()),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.statusPayload()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	detections := snap.Detections
	if detections == nil {
		detections = []types.Detection{}
	}
	writeJSON(w, detections)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.Start(); err != nil {
		writeJSONWithStatus(w, map[string]any{
			"error":   err.Error(),
			"session": s.controller.Snapshot(),
		}, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"session": s.controller.Snapshot()})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.controller.Stop()
	writeJSON(w, map[string]any{"session": s.controller.Snapshot()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"active":         s.controller.Active(),
		"stream_clients": s.broadcaster.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}
