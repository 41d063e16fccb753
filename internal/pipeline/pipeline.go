// Package pipeline drives the capture, detect, aggregate, annotate loop.
package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
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

// Classifier runs object detection on a single frame.
type Classifier interface {
	Detect(img image.Image) (detect.Result, error)
}

// Pipeline connects a frame source to the detector, the statistics
// aggregator, and the web monitor fanout.
type Pipeline struct {
	log        *logger.Logger
	source     camera.Source
	classifier Classifier
	aggregator *stats.Aggregator
	monitor    *webmonitor.Monitor
	recorder   *recorder.Recorder
	metrics    *metrics.Metrics
	style      overlay.Style
	topLimit   int

	frames     *webmonitor.FrameBroadcaster
	statsChan  *webmonitor.EventBroadcaster
	detections *webmonitor.EventBroadcaster

	frameChan chan *types.Frame
	wg        sync.WaitGroup
}

// Options bundles the pipeline dependencies.
type Options struct {
	Log        *logger.Logger
	Source     camera.Source
	Classifier Classifier
	Aggregator *stats.Aggregator
	Monitor    *webmonitor.Monitor
	Recorder   *recorder.Recorder
	Metrics    *metrics.Metrics
	Style      overlay.Style
	TopLimit   int
	Frames     *webmonitor.FrameBroadcaster
	Stats      *webmonitor.EventBroadcaster
	Detections *webmonitor.EventBroadcaster
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		log:        opts.Log,
		source:     opts.Source,
		classifier: opts.Classifier,
		aggregator: opts.Aggregator,
		monitor:    opts.Monitor,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		style:      opts.Style,
		topLimit:   opts.TopLimit,
		frames:     opts.Frames,
		statsChan:  opts.Stats,
		detections: opts.Detections,
		frameChan:  make(chan *types.Frame, 4),
	}
}

// Run starts the capture and processing goroutines and blocks until ctx is
// canceled or the source runs out of frames.
func (p *Pipeline) Run(ctx context.Context) {
	p.wg.Add(2)
	go p.capture(ctx)
	go p.process(ctx)
	p.wg.Wait()
}

func (p *Pipeline) capture(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.frameChan)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := p.source.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info("Pipeline", "Frame source ended after %d frames", p.metrics.FramesCaptured.Load())
				return
			}
			p.metrics.CaptureErrors.Add(1)
			p.log.Warn("Pipeline", "Frame read failed: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		p.metrics.FramesCaptured.Add(1)

		select {
		case p.frameChan <- frame:
		default:
			// Processing is behind, drop the frame
			p.metrics.FramesDropped.Add(1)
		}
	}
}

func (p *Pipeline) process(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.frameChan:
			if !ok {
				return
			}
			p.processFrame(frame)
		}
	}
}

func (p *Pipeline) processFrame(frame *types.Frame) {
	result, err := p.classifier.Detect(frame.Image)
	if err != nil {
		// A failed inference counts as a frame with no detections; the
		// frame itself still flows to viewers.
		p.metrics.InferenceErrors.Add(1)
		p.log.Warn("Pipeline", "Inference failed on frame %d: %v", frame.Number, err)
		result = detect.Result{}
	}
	p.metrics.FramesProcessed.Add(1)
	p.metrics.DetectionsTotal.Add(uint64(len(result.Detections)))
	p.metrics.UpdateInferenceLatency(result.Elapsed)

	labels := make([]string, len(result.Detections))
	for i, det := range result.Detections {
		labels[i] = det.ClassName
	}

	p.aggregator.Update(labels)
	p.publishEvents(frame, labels, result.Detections)
	p.publishFrame(frame, result.Detections)
}

func (p *Pipeline) publishEvents(frame *types.Frame, labels []string, dets []types.Detection) {
	timestamp := float64(frame.Timestamp.UnixMilli()) / 1000.0

	statsEvent := types.StatsEvent{
		FrameNumber:     frame.Number,
		Timestamp:       timestamp,
		Frame:           stats.FrameEntries(labels),
		Cumulative:      p.aggregator.Top(p.topLimit),
		CumulativeTotal: p.aggregator.Total(),
		DistinctLabels:  p.aggregator.Distinct(),
	}
	p.monitor.RecordStats(statsEvent)
	if data, err := marshalEvent(statsEvent); err == nil {
		p.statsChan.Publish(data)
	}

	detectionEvent := types.DetectionEvent{
		FrameNumber: frame.Number,
		Timestamp:   timestamp,
		Detections:  dets,
	}
	p.monitor.RecordDetection(detectionEvent)
	if len(dets) > 0 {
		if data, err := marshalEvent(detectionEvent); err == nil {
			p.detections.Publish(data)
		}
	}
}

// publishFrame draws the overlay and encodes JPEG only when someone is
// watching or a recording is active.
func (p *Pipeline) publishFrame(frame *types.Frame, dets []types.Detection) {
	watching := p.frames.ClientCount() > 0
	recording := p.recorder.IsRecording()
	if !watching && !recording {
		return
	}

	overlay.Draw(frame.Image, dets, p.style)

	if recording {
		if p.recorder.SendFrame(frame) {
			p.metrics.RecordingFrames.Add(1)
			p.metrics.RecordingBytes.Add(uint64(len(frame.Image.Pix)))
		}
	}

	if watching {
		start := time.Now()
		data, err := overlay.EncodeJPEG(frame.Image, p.style.JPEGQuality)
		if err != nil {
			p.metrics.EncodeErrors.Add(1)
			p.log.Warn("Pipeline", "JPEG encode failed on frame %d: %v", frame.Number, err)
			return
		}
		p.metrics.FramesEncoded.Add(1)
		p.metrics.UpdateEncodeLatency(time.Since(start))
		p.frames.Publish(data)
	}
}
