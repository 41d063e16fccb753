package webmonitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// Monitor keeps the latest pipeline state for the HTTP API: the most recent
// stats and detection events plus throughput counters.
type Monitor struct {
	startTime time.Time

	mu              sync.Mutex
	framesProcessed uint64
	latestStats     *types.StatsEvent
	latestDetection *types.DetectionEvent

	// Sliding window for FPS calculation.
	windowStart  time.Time
	windowFrames int
	currentFPS   float64
}

// MonitorStats summarizes pipeline throughput.
type MonitorStats struct {
	FramesProcessed uint64  `json:"frames_processed"`
	CurrentFPS      float64 `json:"current_fps"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

func NewMonitor() *Monitor {
	now := time.Now()
	return &Monitor{
		startTime:   now,
		windowStart: now,
	}
}

// RecordStats stores the latest stats event and advances the FPS window.
func (m *Monitor) RecordStats(event types.StatsEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.framesProcessed++
	m.latestStats = &event

	m.windowFrames++
	if elapsed := time.Since(m.windowStart); elapsed >= time.Second {
		m.currentFPS = float64(m.windowFrames) / elapsed.Seconds()
		m.windowStart = time.Now()
		m.windowFrames = 0
	}
}

// RecordDetection stores the latest detection event.
func (m *Monitor) RecordDetection(event types.DetectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestDetection = &event
}

// ClearStats drops the stored stats event after a counter reset so the API
// does not serve stale tallies.
func (m *Monitor) ClearStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestStats = nil
}

// Snapshot returns the throughput stats and the latest events.
func (m *Monitor) Snapshot() (MonitorStats, *types.StatsEvent, *types.DetectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := MonitorStats{
		FramesProcessed: m.framesProcessed,
		CurrentFPS:      m.currentFPS,
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
	}
	return stats, m.latestStats, m.latestDetection
}

// FrameNumber returns the frame number of the latest stats event, or zero.
func (m *Monitor) FrameNumber() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestStats == nil {
		return 0
	}
	return m.latestStats.FrameNumber
}
