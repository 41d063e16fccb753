package detect

import (
	"sort"

	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// rawBox is a candidate detection in model input coordinates.
type rawBox struct {
	x1, y1, x2, y2 float32
	score          float32
	classID        int
}

// parseOutput decodes a YOLO output tensor laid out as
// [1, 4+numClasses, numCandidates]: center-x, center-y, width, height
// followed by per-class scores. Candidates below confThreshold are dropped.
func parseOutput(data []float32, shape []int64, confThreshold float32) []rawBox {
	if len(shape) != 3 {
		return nil
	}
	numFeatures := int(shape[1])
	numCandidates := int(shape[2])
	numClasses := numFeatures - 4
	if numClasses <= 0 || len(data) < numFeatures*numCandidates {
		return nil
	}

	var boxes []rawBox
	for i := 0; i < numCandidates; i++ {
		bestScore := float32(0)
		bestID := 0
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*numCandidates+i]
			if score > bestScore {
				bestScore = score
				bestID = c
			}
		}
		if bestScore < confThreshold {
			continue
		}

		cx := data[0*numCandidates+i]
		cy := data[1*numCandidates+i]
		w := data[2*numCandidates+i]
		h := data[3*numCandidates+i]

		boxes = append(boxes, rawBox{
			x1:      cx - w/2,
			y1:      cy - h/2,
			x2:      cx + w/2,
			y2:      cy + h/2,
			score:   bestScore,
			classID: bestID,
		})
	}
	return boxes
}

func iou(a, b rawBox) float32 {
	interX1 := max(a.x1, b.x1)
	interY1 := max(a.y1, b.y1)
	interX2 := min(a.x2, b.x2)
	interY2 := min(a.y2, b.y2)

	interArea := max(0, interX2-interX1) * max(0, interY2-interY1)
	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)

	return interArea / (areaA + areaB - interArea + 1e-6)
}

// nonMaxSuppression keeps the highest-scoring box of each overlapping group.
func nonMaxSuppression(boxes []rawBox, iouThreshold float32) []rawBox {
	if len(boxes) == 0 {
		return boxes
	}

	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].score > boxes[j].score
	})

	var keep []rawBox
	for _, candidate := range boxes {
		overlaps := false
		for _, kept := range keep {
			if iou(candidate, kept) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			keep = append(keep, candidate)
		}
	}
	return keep
}

// toDetections scales boxes from model input coordinates back to the
// original image size and clamps them to the image bounds.
func toDetections(boxes []rawBox, classes []string, scaleX, scaleY float32, origW, origH int) []types.Detection {
	detections := make([]types.Detection, 0, len(boxes))
	for _, b := range boxes {
		x1 := clamp(int(b.x1*scaleX), 0, origW-1)
		y1 := clamp(int(b.y1*scaleY), 0, origH-1)
		x2 := clamp(int(b.x2*scaleX), 0, origW)
		y2 := clamp(int(b.y2*scaleY), 0, origH)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		name := "unknown"
		if b.classID < len(classes) {
			name = classes[b.classID]
		}

		detections = append(detections, types.Detection{
			ClassName:  name,
			ClassID:    b.classID,
			Confidence: float64(b.score),
			BBox: types.BoundingBox{
				X: x1,
				Y: y1,
				W: x2 - x1,
				H: y2 - y1,
			},
		})
	}
	return detections
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
