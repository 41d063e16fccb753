package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesCaptured  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesDropped   atomic.Uint64
	FramesEncoded   atomic.Uint64

	// Detection counters
	DetectionsTotal atomic.Uint64
	StatsResets     atomic.Uint64

	// Error counters
	CaptureErrors   atomic.Uint64
	InferenceErrors atomic.Uint64
	EncodeErrors    atomic.Uint64

	// Latency tracking
	InferenceLatencyMs atomic.Uint64
	EncodeLatencyMs    atomic.Uint64

	// Client tracking
	StreamClients atomic.Uint64
	EventClients  atomic.Uint64

	// Recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingBytes  atomic.Uint64
	RecordingFrames atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"monitor_frames_captured_total", "Total frames read from the camera source", m.FramesCaptured.Load},
		{"monitor_frames_processed_total", "Total frames run through detection", m.FramesProcessed.Load},
		{"monitor_frames_dropped_total", "Total frames dropped before processing", m.FramesDropped.Load},
		{"monitor_frames_encoded_total", "Total annotated frames encoded to JPEG", m.FramesEncoded.Load},
		{"monitor_detections_total", "Total objects detected across all frames", m.DetectionsTotal.Load},
		{"monitor_stats_resets_total", "Total cumulative statistics resets", m.StatsResets.Load},
		{"monitor_capture_errors_total", "Total camera read errors", m.CaptureErrors.Load},
		{"monitor_inference_errors_total", "Total inference errors", m.InferenceErrors.Load},
		{"monitor_encode_errors_total", "Total JPEG encode errors", m.EncodeErrors.Load},
		{"monitor_inference_latency_ms", "Latest inference latency in milliseconds", m.InferenceLatencyMs.Load},
		{"monitor_encode_latency_ms", "Latest encode latency in milliseconds", m.EncodeLatencyMs.Load},
		{"monitor_stream_clients", "Active MJPEG stream clients", m.StreamClients.Load},
		{"monitor_event_clients", "Active SSE event clients", m.EventClients.Load},
		{"monitor_recording_active", "Recording active (0=inactive, 1=active)", m.RecordingActive.Load},
		{"monitor_recording_bytes", "Raw frame bytes handed to the recorder", m.RecordingBytes.Load},
		{"monitor_recording_frames", "Total frames written to recordings", m.RecordingFrames.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// UpdateInferenceLatency records the duration of the latest inference pass.
func (m *Metrics) UpdateInferenceLatency(d time.Duration) {
	m.InferenceLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateEncodeLatency records the duration of the latest JPEG encode.
func (m *Metrics) UpdateEncodeLatency(d time.Duration) {
	m.EncodeLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
