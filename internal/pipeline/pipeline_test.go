package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"testing"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/internal/camera"
	"github.com/dj-oyu/yolo-live-monitor/internal/detect"
	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/internal/metrics"
	"github.com/dj-oyu/yolo-live-monitor/internal/overlay"
	"github.com/dj-oyu/yolo-live-monitor/internal/recorder"
	"github.com/dj-oyu/yolo-live-monitor/internal/stats"
	"github.com/dj-oyu/yolo-live-monitor/internal/webmonitor"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// stubClassifier returns a fixed set of detections for every frame.
type stubClassifier struct {
	detections []types.Detection
}

func (s *stubClassifier) Detect(img image.Image) (detect.Result, error) {
	return detect.Result{Detections: s.detections, Elapsed: time.Millisecond}, nil
}

// failingClassifier errors on every frame.
type failingClassifier struct{}

func (failingClassifier) Detect(img image.Image) (detect.Result, error) {
	return detect.Result{}, errors.New("inference backend unavailable")
}

type pipelineFixture struct {
	pipeline   *Pipeline
	aggregator *stats.Aggregator
	monitor    *webmonitor.Monitor
	statsChan  *webmonitor.EventBroadcaster
	metrics    *metrics.Metrics
}

func newPipelineFixture(t *testing.T, classifier Classifier) *pipelineFixture {
	t.Helper()

	log := logger.New(logger.SILENT, io.Discard, false)
	aggregator := stats.New()
	monitor := webmonitor.NewMonitor()
	rec := recorder.New(t.TempDir(), log)
	m := metrics.New()
	frames := webmonitor.NewFrameBroadcaster(log)
	statsChan := webmonitor.NewEventBroadcaster("StatsEvents", log)
	detections := webmonitor.NewEventBroadcaster("DetectionEvents", log)

	t.Cleanup(func() {
		frames.Close()
		statsChan.Close()
		detections.Close()
	})

	p := New(Options{
		Log:        log,
		Source:     camera.NewPatternSource(64, 48, 0),
		Classifier: classifier,
		Aggregator: aggregator,
		Monitor:    monitor,
		Recorder:   rec,
		Metrics:    m,
		Style:      overlay.Style{JPEGQuality: 75, LineWidth: 1},
		TopLimit:   10,
		Frames:     frames,
		Stats:      statsChan,
		Detections: detections,
	})

	return &pipelineFixture{
		pipeline:   p,
		aggregator: aggregator,
		monitor:    monitor,
		statsChan:  statsChan,
		metrics:    m,
	}
}

func TestPipelineAccumulatesStats(t *testing.T) {
	classifier := &stubClassifier{detections: []types.Detection{
		{ClassName: "person", Confidence: 0.9, BBox: types.BoundingBox{X: 5, Y: 5, W: 10, H: 10}},
		{ClassName: "person", Confidence: 0.8, BBox: types.BoundingBox{X: 20, Y: 5, W: 10, H: 10}},
		{ClassName: "car", Confidence: 0.7, BBox: types.BoundingBox{X: 35, Y: 5, W: 10, H: 10}},
	}}
	f := newPipelineFixture(t, classifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipeline.Run(ctx)
		close(done)
	}()

	// Wait until a few frames have been processed.
	deadline := time.After(5 * time.Second)
	for f.metrics.FramesProcessed.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("pipeline did not process frames in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	processed := int(f.metrics.FramesProcessed.Load())
	cumulative := f.aggregator.Cumulative()
	if cumulative["person"] != processed*2 {
		t.Fatalf("person count = %d, want %d", cumulative["person"], processed*2)
	}
	if cumulative["car"] != processed {
		t.Fatalf("car count = %d, want %d", cumulative["car"], processed)
	}
	if f.aggregator.Total() != processed*3 {
		t.Fatalf("total = %d, want %d", f.aggregator.Total(), processed*3)
	}

	_, latest, latestDet := f.monitor.Snapshot()
	if latest == nil {
		t.Fatal("monitor has no stats event")
	}
	if latest.CumulativeTotal != processed*3 {
		t.Fatalf("latest cumulative total = %d, want %d", latest.CumulativeTotal, processed*3)
	}
	if len(latest.Frame) != 2 || latest.Frame[0].Label != "person" || latest.Frame[0].Count != 2 {
		t.Fatalf("unexpected frame tally: %+v", latest.Frame)
	}
	if latestDet == nil || len(latestDet.Detections) != 3 {
		t.Fatalf("unexpected latest detection event: %+v", latestDet)
	}
}

func TestPipelineEmptyFramesLeaveStatsUntouched(t *testing.T) {
	f := newPipelineFixture(t, &stubClassifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipeline.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for f.metrics.FramesProcessed.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("pipeline did not process frames in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if f.aggregator.Total() != 0 {
		t.Fatalf("expected empty cumulative tally, total = %d", f.aggregator.Total())
	}
	if f.aggregator.Distinct() != 0 {
		t.Fatalf("expected no distinct labels, got %d", f.aggregator.Distinct())
	}

	// Stats events still flow for empty frames.
	_, latest, _ := f.monitor.Snapshot()
	if latest == nil {
		t.Fatal("monitor has no stats event")
	}
	if len(latest.Frame) != 0 {
		t.Fatalf("expected empty frame tally, got %+v", latest.Frame)
	}
}

func TestPipelineClassifierErrorsCountAsEmptyFrames(t *testing.T) {
	f := newPipelineFixture(t, failingClassifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipeline.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for f.metrics.InferenceErrors.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("pipeline did not hit classifier errors in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if f.aggregator.Total() != 0 {
		t.Fatalf("errors must not reach the aggregator, total = %d", f.aggregator.Total())
	}
	// Frames still flow: stats events keep coming despite the errors.
	_, latest, _ := f.monitor.Snapshot()
	if latest == nil {
		t.Fatal("expected stats events despite classifier errors")
	}
}

func TestPipelinePublishesStatsEvents(t *testing.T) {
	classifier := &stubClassifier{detections: []types.Detection{
		{ClassName: "dog", Confidence: 0.6, BBox: types.BoundingBox{X: 5, Y: 5, W: 10, H: 10}},
	}}
	f := newPipelineFixture(t, classifier)

	_, eventCh := f.statsChan.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipeline.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case data := <-eventCh:
		var event types.StatsEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("invalid stats event JSON: %v", err)
		}
		if len(event.Frame) != 1 || event.Frame[0].Label != "dog" {
			t.Fatalf("unexpected frame tally: %+v", event.Frame)
		}
		if len(event.Cumulative) == 0 || event.Cumulative[0].Label != "dog" {
			t.Fatalf("unexpected cumulative tally: %+v", event.Cumulative)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no stats event received")
	}
}
