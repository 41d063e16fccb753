package camera

import (
	"image"
	"image/color"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

var patternBars = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
}

// PatternSource generates moving color bars at a fixed rate. It stands in
// for a camera in tests and on machines without capture hardware.
type PatternSource struct {
	width  int
	height int
	fps    int
	number uint64
	last   time.Time
}

func NewPatternSource(width, height, fps int) *PatternSource {
	return &PatternSource{width: width, height: height, fps: fps}
}

func (s *PatternSource) Read() (*types.Frame, error) {
	if s.fps > 0 && !s.last.IsZero() {
		interval := time.Second / time.Duration(s.fps)
		if wait := interval - time.Since(s.last); wait > 0 {
			time.Sleep(wait)
		}
	}
	s.last = time.Now()
	s.number++

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	barWidth := s.width / len(patternBars)
	offset := int(s.number) % s.width
	for x := 0; x < s.width; x++ {
		bar := ((x + offset) / max(barWidth, 1)) % len(patternBars)
		c := patternBars[bar]
		for y := 0; y < s.height; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	return &types.Frame{
		Image:     img,
		Number:    s.number,
		Timestamp: s.last,
	}, nil
}

func (s *PatternSource) Size() (int, int) { return s.width, s.height }
func (s *PatternSource) FPS() float64     { return float64(s.fps) }
func (s *PatternSource) Close() error     { return nil }
