package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dj-oyu/yolo-live-monitor/internal/camera"
	"github.com/dj-oyu/yolo-live-monitor/internal/config"
	"github.com/dj-oyu/yolo-live-monitor/internal/detect"
	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
	"github.com/dj-oyu/yolo-live-monitor/internal/metrics"
	"github.com/dj-oyu/yolo-live-monitor/internal/overlay"
	"github.com/dj-oyu/yolo-live-monitor/internal/pipeline"
	"github.com/dj-oyu/yolo-live-monitor/internal/recorder"
	"github.com/dj-oyu/yolo-live-monitor/internal/stats"
	"github.com/dj-oyu/yolo-live-monitor/internal/webmonitor"
)

var (
	configPath = flag.String("config", "monitor.yaml", "Config file path")
	httpAddr   = flag.String("http", "", "HTTP server address (overrides config)")
	cameraDev  = flag.String("camera", "", "Camera device, video path, or 'pattern' (overrides config)")
	modelPath  = flag.String("model", "", "ONNX model path (overrides config)")
	pprofAddr  = flag.String("pprof", "", "pprof server address (overrides config)")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor   = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	if err := godotenv.Load(); err == nil {
		logger.Debug("Main", "Loaded environment from .env")
	}

	cfg, found, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !found {
		logger.Warn("Main", "Config file %s not found, using defaults", *configPath)
	}
	cfg.ApplyEnv()
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	if *cameraDev != "" {
		cfg.Camera.Device = *cameraDev
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *pprofAddr != "" {
		cfg.Server.PprofAddr = *pprofAddr
	}

	logger.Info("Main", "YOLO live monitor starting...")
	logger.Info("Main", "  Camera: %s", cfg.Camera.Device)
	logger.Info("Main", "  Model: %s", cfg.Model.Path)
	logger.Info("Main", "  HTTP server: %s", cfg.Server.Addr)
	logger.Info("Main", "  Metrics server: %s", cfg.Server.MetricsAddr)

	mainLog := logger.New(level, os.Stderr, *logColor)
	m := metrics.New()

	detector, err := detect.NewDetector(cfg.Model, mainLog)
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer detector.Close()

	source, err := camera.Open(cfg.Camera, mainLog)
	if err != nil {
		log.Fatalf("Failed to open camera: %v", err)
	}
	defer source.Close()

	aggregator := stats.New()
	rec := recorder.New(cfg.Recording.OutputDir, mainLog)
	monitor := webmonitor.NewMonitor()
	frames := webmonitor.NewFrameBroadcaster(mainLog)
	statsChan := webmonitor.NewEventBroadcaster("StatsEvents", mainLog)
	detections := webmonitor.NewEventBroadcaster("DetectionEvents", mainLog)

	width, height := source.Size()
	srv := webmonitor.NewServer(mainLog, monitor, aggregator, rec, m,
		webmonitor.StreamInfo{Width: width, Height: height, FPS: source.FPS()},
		cfg.Display.TopLimit, frames, statsChan, detections)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("Main", "Starting pprof server on %s", cfg.Server.PprofAddr)
		if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
			logger.Warn("Main", "pprof server error: %v", err)
		}
	}()

	go func() {
		logger.Info("Main", "Starting metrics server on %s", cfg.Server.MetricsAddr)
		if err := m.StartServer(cfg.Server.MetricsAddr); err != nil {
			logger.Warn("Main", "Metrics server error: %v", err)
		}
	}()

	go func() {
		logger.Info("Main", "Starting HTTP server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Main", "HTTP server error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	p := pipeline.New(pipeline.Options{
		Log:        mainLog,
		Source:     source,
		Classifier: detector,
		Aggregator: aggregator,
		Monitor:    monitor,
		Recorder:   rec,
		Metrics:    m,
		Style:      overlay.StyleFromConfig(cfg.Display),
		TopLimit:   cfg.Display.TopLimit,
		Frames:     frames,
		Stats:      statsChan,
		Detections: detections,
	})

	pipelineDone := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(pipelineDone)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Main", "Shutdown signal received")
	case <-pipelineDone:
		logger.Info("Main", "Frame source ended")
	}

	cancel()
	<-pipelineDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Main", "HTTP shutdown error: %v", err)
	}

	frames.Close()
	statsChan.Close()
	detections.Close()
	if err := rec.Close(); err != nil {
		logger.Warn("Main", "Recorder close error: %v", err)
	}

	logger.Info("Main", "Server stopped")
}
