package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/dj-oyu/yolo-live-monitor/internal/config"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

func testStyle() Style {
	return Style{
		BoxColor:    color.RGBA{0, 255, 0, 255},
		LineWidth:   2,
		JPEGQuality: 80,
	}
}

func TestDrawPaintsBoxEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	dets := []types.Detection{
		{
			ClassName:  "person",
			Confidence: 0.87,
			BBox:       types.BoundingBox{X: 20, Y: 30, W: 40, H: 30},
		},
	}

	Draw(img, dets, testStyle())

	green := color.RGBA{0, 255, 0, 255}
	// Corners of the box outline.
	if img.RGBAAt(20, 30) != green {
		t.Fatalf("top-left corner not painted: %v", img.RGBAAt(20, 30))
	}
	if img.RGBAAt(60, 60) != green {
		t.Fatalf("bottom-right corner not painted: %v", img.RGBAAt(60, 60))
	}
	// LineWidth 2 paints a second inner row.
	if img.RGBAAt(40, 31) != green {
		t.Fatalf("second outline row not painted: %v", img.RGBAAt(40, 31))
	}
	// Box interior stays untouched.
	if img.RGBAAt(40, 45) == green {
		t.Fatal("box interior should not be painted")
	}
}

func TestDrawClampsOutOfBoundsBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	dets := []types.Detection{
		{
			ClassName:  "car",
			Confidence: 0.5,
			BBox:       types.BoundingBox{X: -10, Y: -10, W: 100, H: 100},
		},
	}

	// Must not panic on coordinates outside the image.
	Draw(img, dets, testStyle())
}

func TestDrawLabelPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dets := []types.Detection{
		{
			ClassName:  "dog",
			Confidence: 0.62,
			BBox:       types.BoundingBox{X: 30, Y: 40, W: 50, H: 30},
		},
	}

	Draw(img, dets, testStyle())

	// The label sits above the box; some pixel in that band is painted.
	green := color.RGBA{0, 255, 0, 255}
	found := false
	for y := 20; y < 40; y++ {
		for x := 30; x < 120; x++ {
			if img.RGBAAt(x, y) == green {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected label pixels above the box")
	}
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	data, err := EncodeJPEG(img, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output does not decode as JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 24 {
		t.Fatalf("unexpected decoded size: %v", decoded.Bounds())
	}
}

func TestStyleFromConfig(t *testing.T) {
	style := StyleFromConfig(config.DisplayConfig{
		BoxColor:    "red",
		LineWidth:   3,
		JPEGQuality: 90,
	})
	if style.BoxColor != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("unexpected color: %v", style.BoxColor)
	}
	if style.LineWidth != 3 || style.JPEGQuality != 90 {
		t.Fatalf("unexpected style: %+v", style)
	}

	fallback := StyleFromConfig(config.DisplayConfig{BoxColor: "mauve"})
	if fallback.BoxColor != (color.RGBA{0, 255, 0, 255}) {
		t.Fatalf("expected green fallback, got %v", fallback.BoxColor)
	}
}
