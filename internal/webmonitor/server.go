// Package webmonitor serves the browser dashboard: the MJPEG live view,
// detection statistics endpoints, and recording control.
package webmonitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/internal/metrics"
	"github.com/dj-oyu/yolo-live-monitor/internal/recorder"
	"github.com/dj-oyu/yolo-live-monitor/internal/stats"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// StreamInfo describes the live stream geometry for recording control.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64
}

// Server serves the web monitor endpoints.
type Server struct {
	log        *logger.Logger
	monitor    *Monitor
	aggregator *stats.Aggregator
	recorder   *recorder.Recorder
	metrics    *metrics.Metrics
	stream     StreamInfo
	topLimit   int

	frames     *FrameBroadcaster
	statsChan  *EventBroadcaster
	detections *EventBroadcaster
}

// NewServer wires the monitor server to the pipeline components.
func NewServer(
	log *logger.Logger,
	monitor *Monitor,
	aggregator *stats.Aggregator,
	rec *recorder.Recorder,
	m *metrics.Metrics,
	stream StreamInfo,
	topLimit int,
	frames *FrameBroadcaster,
	statsChan *EventBroadcaster,
	detections *EventBroadcaster,
) *Server {
	return &Server{
		log:        log,
		monitor:    monitor,
		aggregator: aggregator,
		recorder:   rec,
		metrics:    m,
		stream:     stream,
		topLimit:   topLimit,
		frames:     frames,
		statsChan:  statsChan,
		detections: detections,
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/stream", s.handleStatsStream)
	mux.HandleFunc("/api/stats/reset", s.handleStatsReset)
	mux.HandleFunc("/api/detections/stream", s.handleDetectionsStream)
	mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.HandleFunc("/healthz", s.handleHealth)

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
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)

	s.metrics.StreamClients.Add(1)
	defer s.metrics.StreamClients.Add(^uint64(0))

	streamMJPEGFromChannel(r.Context(), w, frameCh, s.log)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	monitorStats, latestStats, latestDetection := s.monitor.Snapshot()
	payload := map[string]any{
		"monitor":          monitorStats,
		"stats":            latestStats,
		"latest_detection": latestDetection,
		"cumulative_total": s.aggregator.Total(),
		"distinct_labels":  s.aggregator.Distinct(),
		"top":              s.aggregator.Top(s.topLimit),
		"timestamp":        float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.statsChan.Subscribe()
	defer s.statsChan.Unsubscribe(id)

	s.metrics.EventClients.Add(1)
	defer s.metrics.EventClients.Add(^uint64(0))

	// Send the current state right away so the dashboard is not blank
	// until the next frame arrives.
	var initial []byte
	if _, latest, _ := s.monitor.Snapshot(); latest != nil {
		if data, err := json.Marshal(latest); err == nil {
			initial = data
		}
	}

	streamEventsFromChannel(r.Context(), w, eventCh, initial, s.log)
}

func (s *Server) handleStatsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.aggregator.Reset()
	s.monitor.ClearStats()
	s.metrics.StatsResets.Add(1)
	s.log.Info("Server", "Detection statistics reset")

	// Push an empty stats event so connected dashboards clear immediately.
	event := types.StatsEvent{
		FrameNumber: s.monitor.FrameNumber(),
		Timestamp:   float64(time.Now().Unix()),
		Frame:       []types.TallyEntry{},
		Cumulative:  []types.TallyEntry{},
	}
	if data, err := json.Marshal(event); err == nil {
		s.statsChan.Publish(data)
	}

	writeJSON(w, map[string]any{
		"status":     "reset",
		"cumulative": []types.TallyEntry{},
		"reset_at":   float64(time.Now().Unix()),
	})
}

func (s *Server) handleDetectionsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.detections.Subscribe()
	defer s.detections.Unsubscribe(id)

	s.metrics.EventClients.Add(1)
	defer s.metrics.EventClients.Add(^uint64(0))

	streamEventsFromChannel(r.Context(), w, eventCh, nil, s.log)
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.recorder.Start(s.stream.Width, s.stream.Height, s.stream.FPS); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	s.metrics.RecordingActive.Store(1)

	payload := map[string]any{
		"status":     "recording",
		"file":       s.recorder.GetStatus().Filename,
		"started_at": float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.recorder.GetStatus()
	if err := s.recorder.Stop(); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	s.metrics.RecordingActive.Store(0)

	payload := map[string]any{
		"status":     "stopped",
		"file":       status.Filename,
		"stats":      s.recorder.GetStatus(),
		"stopped_at": float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.recorder.GetStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": s.monitorUptime(),
	})
}

func (s *Server) monitorUptime() float64 {
	monitorStats, _, _ := s.monitor.Snapshot()
	return monitorStats.UptimeSeconds
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
