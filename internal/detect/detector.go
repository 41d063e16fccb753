// Package detect runs YOLO object detection on frames through ONNX Runtime.
package detect

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dj-oyu/yolo-live-monitor/internal/config"
	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/pkg/types"
)

// ONNX Runtime environment is process-global and must be initialized once.
var (
	ortMu          sync.Mutex
	ortInitialized bool
)

func initRuntime(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortInitialized {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	ortInitialized = true
	return nil
}

// Detector wraps a YOLO ONNX session behind a simple Detect call.
type Detector struct {
	log     *logger.Logger
	session *ort.DynamicAdvancedSession

	classes       []string
	inputSize     int
	confThreshold float32
	iouThreshold  float32

	mu sync.Mutex // the session is not safe for concurrent Run
}

// Result carries the detections of one inference pass.
type Result struct {
	Detections []types.Detection
	Elapsed    time.Duration
}

// NewDetector loads the model at cfg.Path and prepares an inference session.
func NewDetector(cfg config.ModelConfig, log *logger.Logger) (*Detector, error) {
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	classes, err := LoadClasses(cfg.LabelsPath)
	if err != nil {
		log.Warn("Detector", "Labels file unusable (%v), falling back to COCO-80", err)
		classes = cocoClasses
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.Path,
		[]string{"images"}, []string{"output0"}, opts)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Path, err)
	}

	log.Info("Detector", "Model loaded: %s (input %dx%d, %d classes, conf %.2f)",
		cfg.Path, cfg.InputSize, cfg.InputSize, len(classes), cfg.ConfThreshold)

	return &Detector{
		log:           log,
		session:       session,
		classes:       classes,
		inputSize:     cfg.InputSize,
		confThreshold: cfg.ConfThreshold,
		iouThreshold:  cfg.IOUThreshold,
	}, nil
}

// Classes returns the label set the detector resolves class IDs against.
func (d *Detector) Classes() []string {
	return d.classes
}

// Detect runs one inference pass over img and returns the surviving
// detections in image coordinates.
func (d *Detector) Detect(img image.Image) (Result, error) {
	start := time.Now()

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	inputData := d.preprocess(img)

	inputShape := ort.NewShape(1, 3, int64(d.inputSize), int64(d.inputSize))
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return Result{}, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := ort.NewShape(1, int64(4+len(d.classes)), int64(numCandidates(d.inputSize)))
	outputData := make([]float32, outputShape.FlattenedSize())
	outputTensor, err := ort.NewTensor(outputShape, outputData)
	if err != nil {
		return Result{}, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	d.mu.Lock()
	err = d.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor})
	d.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("inference: %w", err)
	}

	boxes := parseOutput(outputTensor.GetData(), outputTensor.GetShape(), d.confThreshold)
	boxes = nonMaxSuppression(boxes, d.iouThreshold)

	scaleX := float32(origW) / float32(d.inputSize)
	scaleY := float32(origH) / float32(d.inputSize)
	detections := toDetections(boxes, d.classes, scaleX, scaleY, origW, origH)

	return Result{
		Detections: detections,
		Elapsed:    time.Since(start),
	}, nil
}

// numCandidates returns the number of anchor candidates a YOLOv8 head
// emits for a square input: one per cell of the stride-8, stride-16 and
// stride-32 feature maps (8400 for the usual 640 input).
func numCandidates(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		cells := inputSize / stride
		total += cells * cells
	}
	return total
}

// preprocess resizes img to the model input size and packs it as CHW
// float32 normalized to [0,1].
func (d *Detector) preprocess(img image.Image) []float32 {
	resized := imaging.Resize(img, d.inputSize, d.inputSize, imaging.Lanczos)

	size := d.inputSize
	data := make([]float32, 3*size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*size*size+y*size+x] = float32(r>>8) / 255.0
			data[1*size*size+y*size+x] = float32(g>>8) / 255.0
			data[2*size*size+y*size+x] = float32(b>>8) / 255.0
		}
	}
	return data
}

// Close releases the inference session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	return nil
}
