// Package recorder writes the annotated frame stream to MP4 files.
package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	vidio "github.com/AlexEidt/Vidio"

	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// Recorder records annotated frames to timestamped MP4 files. Frames are
// handed off on a buffered channel so the pipeline never blocks on disk.
type Recorder struct {
	log      *logger.Logger
	basePath string

	mu           sync.RWMutex
	writer       *vidio.VideoWriter
	filename     string
	recording    bool
	frameCount   uint64
	bytesWritten uint64
	startTime    time.Time

	frameChan chan *types.Frame
	wg        sync.WaitGroup
}

// Status reports the recorder state for the HTTP API.
type Status struct {
	Recording  bool      `json:"recording"`
	Filename   string    `json:"filename,omitempty"`
	FrameCount uint64    `json:"frame_count"`
	DurationMS int64     `json:"duration_ms"`
	StartTime  time.Time `json:"start_time,omitzero"`
}

// New creates a recorder writing into basePath.
func New(basePath string, log *logger.Logger) *Recorder {
	return &Recorder{
		log:       log,
		basePath:  basePath,
		frameChan: make(chan *types.Frame, 60), // ~2 seconds of buffer
	}
}

// Start opens a new timestamped MP4 and begins accepting frames.
func (r *Recorder) Start(width, height int, fps float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	r.drainPending()

	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}

	filename := fmt.Sprintf("recording_%s.mp4", time.Now().Format("20060102_150405"))
	path := filepath.Join(r.basePath, filename)

	writer, err := vidio.NewVideoWriter(path, width, height, &vidio.Options{
		FPS:     fps,
		Quality: 0.9,
	})
	if err != nil {
		return fmt.Errorf("create video writer: %w", err)
	}

	r.writer = writer
	r.filename = filename
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = 0
	r.startTime = time.Now()

	r.wg.Add(1)
	go r.writeFrames()

	r.log.Info("Recorder", "Recording started: %s (%dx%d @ %.1f fps)", filename, width, height, fps)
	return nil
}

// drainPending discards frames queued before this recording started. A
// frame can slip past SendFrame's check while a previous recording stops;
// without the drain it would be written into the next file.
func (r *Recorder) drainPending() {
	for len(r.frameChan) > 0 {
		<-r.frameChan
	}
}

// Stop finishes the current file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		r.writer.Close()
		r.writer = nil
	}
	r.log.Info("Recorder", "Recording stopped: %s (%d frames)", r.filename, r.frameCount)
	return nil
}

// SendFrame queues a frame for writing. Returns false when not recording or
// when the buffer is full and the frame was dropped.
func (r *Recorder) SendFrame(frame *types.Frame) bool {
	r.mu.RLock()
	recording := r.recording
	r.mu.RUnlock()

	if !recording {
		return false
	}

	select {
	case r.frameChan <- frame:
		return true
	default:
		return false
	}
}

func (r *Recorder) writeFrames() {
	defer r.wg.Done()

	for {
		r.mu.RLock()
		recording := r.recording
		r.mu.RUnlock()

		if !recording {
			for len(r.frameChan) > 0 {
				r.writeFrame(<-r.frameChan)
			}
			return
		}

		select {
		case frame := <-r.frameChan:
			r.writeFrame(frame)
		case <-time.After(100 * time.Millisecond):
			// Re-check recording state.
		}
	}
}

func (r *Recorder) writeFrame(frame *types.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer == nil {
		return
	}
	if err := r.writer.Write(frame.Image.Pix); err != nil {
		r.log.Error("Recorder", "Frame write failed: %v", err)
		return
	}
	r.frameCount++
	r.bytesWritten += uint64(len(frame.Image.Pix))
}

// IsRecording reports whether a file is currently open.
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// GetStatus returns the current recording status.
func (r *Recorder) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		Recording:  r.recording,
		Filename:   r.filename,
		FrameCount: r.frameCount,
	}
	if r.recording {
		status.DurationMS = time.Since(r.startTime).Milliseconds()
		status.StartTime = r.startTime
	}
	return status
}

// BytesWritten returns the raw frame bytes handed to the encoder so far.
func (r *Recorder) BytesWritten() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bytesWritten
}

// Close stops any active recording.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}
