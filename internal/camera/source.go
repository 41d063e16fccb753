// Package camera provides frame sources: a webcam, a video file, or a
// synthetic test pattern when no capture hardware is available.
package camera

import (
	"fmt"
	"image"
	"io"
	"strconv"
	"time"

	vidio "github.com/AlexEidt/Vidio"

	"github.com/dj-oyu/yolo-live-monitor/internal/config"
	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// Source yields frames until the stream ends or it is closed. Read returns
// io.EOF when a finite source (a video file) runs out of frames.
type Source interface {
	Read() (*types.Frame, error)
	Size() (width, height int)
	FPS() float64
	Close() error
}

// Open picks a source from cfg.Device: "pattern" for the synthetic source,
// a bare integer for a webcam index, anything else is a video file path.
func Open(cfg config.CameraConfig, log *logger.Logger) (Source, error) {
	if cfg.Device == "pattern" {
		log.Info("Camera", "Using synthetic pattern source at %d fps", cfg.FPS)
		return NewPatternSource(640, 480, cfg.FPS), nil
	}

	if index, err := strconv.Atoi(cfg.Device); err == nil {
		cam, err := vidio.NewCamera(index)
		if err != nil {
			return nil, fmt.Errorf("open camera %d: %w", index, err)
		}
		log.Info("Camera", "Webcam %d opened: %dx%d @ %.1f fps",
			index, cam.Width(), cam.Height(), cam.FPS())
		return &webcamSource{cam: cam}, nil
	}

	video, err := vidio.NewVideo(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", cfg.Device, err)
	}
	log.Info("Camera", "Video %s opened: %dx%d @ %.1f fps, %d frames",
		cfg.Device, video.Width(), video.Height(), video.FPS(), video.Frames())
	return &videoSource{video: video}, nil
}

// webcamSource wraps a live capture device.
type webcamSource struct {
	cam    *vidio.Camera
	number uint64
}

func (s *webcamSource) Read() (*types.Frame, error) {
	if !s.cam.Read() {
		return nil, io.EOF
	}
	s.number++
	return &types.Frame{
		Image:     frameToRGBA(s.cam.FrameBuffer(), s.cam.Width(), s.cam.Height()),
		Number:    s.number,
		Timestamp: time.Now(),
	}, nil
}

func (s *webcamSource) Size() (int, int) { return s.cam.Width(), s.cam.Height() }
func (s *webcamSource) FPS() float64     { return s.cam.FPS() }
func (s *webcamSource) Close() error {
	s.cam.Close()
	return nil
}

// videoSource wraps a video file, pacing reads to the file's frame rate so
// playback drives the pipeline like a live camera would.
type videoSource struct {
	video  *vidio.Video
	number uint64
	last   time.Time
}

func (s *videoSource) Read() (*types.Frame, error) {
	if fps := s.video.FPS(); fps > 0 && !s.last.IsZero() {
		interval := time.Duration(float64(time.Second) / fps)
		if wait := interval - time.Since(s.last); wait > 0 {
			time.Sleep(wait)
		}
	}
	if !s.video.Read() {
		return nil, io.EOF
	}
	s.last = time.Now()
	s.number++
	return &types.Frame{
		Image:     frameToRGBA(s.video.FrameBuffer(), s.video.Width(), s.video.Height()),
		Number:    s.number,
		Timestamp: s.last,
	}, nil
}

func (s *videoSource) Size() (int, int) { return s.video.Width(), s.video.Height() }
func (s *videoSource) FPS() float64     { return s.video.FPS() }
func (s *videoSource) Close() error {
	s.video.Close()
	return nil
}

// frameToRGBA copies a Vidio RGBA frame buffer into a standalone image so
// the frame survives the next Read overwriting the buffer.
func frameToRGBA(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, buf)
	return img
}
