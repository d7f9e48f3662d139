package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Frame pipeline counters
	FramesCaptured atomic.Uint64
	FramesRendered atomic.Uint64
	FramesDropped  atomic.Uint64

	// Prediction cycle counters
	PredictionCycles   atomic.Uint64
	PredictionFailures atomic.Uint64
	PredictionInFlight atomic.Int64

	// Latency tracking
	PredictionLatencyMs atomic.Uint64 // Last prediction round-trip in ms
	RenderLatencyMs     atomic.Uint64 // Last frame composition in ms

	// Session state
	SessionActive   atomic.Uint64 // 0 = stopped, 1 = active
	SessionsStarted atomic.Uint64
	DetectionsShown atomic.Uint64 // Detections in the current overlay

	// Stream clients
	StreamClients atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, value func() float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			value,
		))
	}

	gauge("livenesscam_frames_captured_total",
		"Total frames read from the camera source",
		func() float64 { return float64(m.FramesCaptured.Load()) })

	gauge("livenesscam_frames_rendered_total",
		"Total annotated frames composed and published",
		func() float64 { return float64(m.FramesRendered.Load()) })

	gauge("livenesscam_frames_dropped_total",
		"Total frames dropped by the capture pipeline",
		func() float64 { return float64(m.FramesDropped.Load()) })

	gauge("livenesscam_prediction_cycles_total",
		"Total prediction cycles issued",
		func() float64 { return float64(m.PredictionCycles.Load()) })

	gauge("livenesscam_prediction_failures_total",
		"Total failed prediction cycles (transport, status, or decode)",
		func() float64 { return float64(m.PredictionFailures.Load()) })

	gauge("livenesscam_prediction_in_flight",
		"Prediction requests currently in flight",
		func() float64 { return float64(m.PredictionInFlight.Load()) })

	gauge("livenesscam_prediction_latency_ms",
		"Last prediction round-trip latency in milliseconds",
		func() float64 { return float64(m.PredictionLatencyMs.Load()) })

	gauge("livenesscam_render_latency_ms",
		"Last frame composition latency in milliseconds",
		func() float64 { return float64(m.RenderLatencyMs.Load()) })

	gauge("livenesscam_session_active",
		"Capture session active (0=stopped, 1=active)",
		func() float64 { return float64(m.SessionActive.Load()) })

	gauge("livenesscam_sessions_started_total",
		"Total capture sessions started",
		func() float64 { return float64(m.SessionsStarted.Load()) })

	gauge("livenesscam_detections_shown",
		"Detections drawn on the current overlay",
		func() float64 { return float64(m.DetectionsShown.Load()) })

	gauge("livenesscam_stream_clients",
		"Connected MJPEG stream clients",
		func() float64 { return float64(m.StreamClients.Load()) })
}

// UpdatePredictionLatency records the round-trip time of a prediction cycle.
func (m *Metrics) UpdatePredictionLatency(d time.Duration) {
	m.PredictionLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateRenderLatency records the time spent composing one frame.
func (m *Metrics) UpdateRenderLatency(d time.Duration) {
	m.RenderLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
