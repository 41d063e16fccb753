package types

import (
	"image"
	"time"
)

// Frame is a single captured camera frame with metadata.
type Frame struct {
	Image     *image.RGBA // RGBA pixels owned by this frame
	Number    uint64      // Sequential frame number
	Timestamp time.Time   // Capture timestamp
}

// BoundingBox is a detection box in frame pixel coordinates.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Detection is a single object instance found in a frame.
type Detection struct {
	ClassName  string      `json:"class_name"`
	ClassID    int         `json:"class_id"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// DetectionEvent is the payload for /api/detections/stream.
type DetectionEvent struct {
	FrameNumber uint64      `json:"frame_number"`
	Timestamp   float64     `json:"timestamp"`
	Detections  []Detection `json:"detections"`
}

// TallyEntry is one bar of a tally chart. Entries are ordered: first-seen
// order for the per-frame tally, descending count for the cumulative tally.
type TallyEntry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StatsEvent is the payload for /api/stats/stream. Frame holds the tally of
// the frame that produced the event; Cumulative holds the top entries of the
// running total since the last reset.
type StatsEvent struct {
	FrameNumber     uint64       `json:"frame_number"`
	Timestamp       float64      `json:"timestamp"`
	Frame           []TallyEntry `json:"frame"`
	Cumulative      []TallyEntry `json:"cumulative"`
	CumulativeTotal int          `json:"cumulative_total"`
	DistinctLabels  int          `json:"distinct_labels"`
}
