// Package overlay draws detection boxes and labels onto frames and encodes
// them for streaming.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/yolo-live-monitor/internal/config"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

var namedColors = map[string]color.RGBA{
	"green":  {0, 255, 0, 255},
	"red":    {255, 0, 0, 255},
	"blue":   {0, 0, 255, 255},
	"yellow": {255, 255, 0, 255},
	"white":  {255, 255, 255, 255},
}

// Style controls how detections are rendered.
type Style struct {
	BoxColor    color.RGBA
	LineWidth   int
	JPEGQuality int
}

// StyleFromConfig resolves the display config into a drawing style.
// Unknown color names fall back to green.
func StyleFromConfig(cfg config.DisplayConfig) Style {
	boxColor, ok := namedColors[cfg.BoxColor]
	if !ok {
		boxColor = namedColors["green"]
	}
	return Style{
		BoxColor:    boxColor,
		LineWidth:   cfg.LineWidth,
		JPEGQuality: cfg.JPEGQuality,
	}
}

// Draw renders each detection as a box with a "name 0.87" label above it.
// The image is modified in place.
func Draw(img *image.RGBA, detections []types.Detection, style Style) {
	for _, det := range detections {
		drawBox(img, det.BBox, style.BoxColor, style.LineWidth)
		label := fmt.Sprintf("%s %.2f", det.ClassName, det.Confidence)
		drawLabel(img, label, det.BBox.X, det.BBox.Y-labelHeight-2, style.BoxColor)
	}
}

// EncodeJPEG serializes the frame for MJPEG streaming and recording.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBox(img *image.RGBA, box types.BoundingBox, c color.RGBA, lineWidth int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	x1 := clamp(box.X, 0, width-1)
	y1 := clamp(box.Y, 0, height-1)
	x2 := clamp(box.X+box.W, 0, width-1)
	y2 := clamp(box.Y+box.H, 0, height-1)

	if lineWidth < 1 {
		lineWidth = 1
	}
	for i := 0; i < lineWidth; i++ {
		for x := x1; x <= x2; x++ {
			if y1+i < height {
				img.SetRGBA(x, y1+i, c)
			}
			if y2-i >= 0 {
				img.SetRGBA(x, y2-i, c)
			}
		}
		for y := y1; y <= y2; y++ {
			if x1+i < width {
				img.SetRGBA(x1+i, y, c)
			}
			if x2-i >= 0 {
				img.SetRGBA(x2-i, y, c)
			}
		}
	}
}

const (
	labelCharWidth = 7
	labelHeight    = 13
)

func drawLabel(img *image.RGBA, label string, x, y int, c color.RGBA) {
	bounds := img.Bounds()

	textWidth := len(label) * labelCharWidth
	if x < 0 {
		x = 0
	}
	if x+textWidth > bounds.Max.X {
		x = bounds.Max.X - textWidth
	}
	// A label that would leave the top edge goes inside the box instead.
	if y < 0 {
		y += labelHeight + 4
	}
	if y > bounds.Max.Y-labelHeight {
		y = bounds.Max.Y - labelHeight
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(x),
			Y: fixed.I(y + labelHeight - 2),
		},
	}
	d.DrawString(label)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
