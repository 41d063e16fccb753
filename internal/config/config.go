// Package config loads the monitor configuration from a YAML file with
// sensible defaults and a small set of environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CameraConfig selects the frame source.
type CameraConfig struct {
	// Device is a camera index ("0"), a video file path, or "pattern" for
	// the synthetic test source.
	Device string `yaml:"device"`
	FPS    int    `yaml:"fps"`
}

// ModelConfig configures the ONNX detector.
type ModelConfig struct {
	Path          string  `yaml:"path"`
	LabelsPath    string  `yaml:"labels_path"`
	InputSize     int     `yaml:"input_size"`
	ConfThreshold float32 `yaml:"conf_threshold"`
	IOUThreshold  float32 `yaml:"iou_threshold"`
	LibraryPath   string  `yaml:"library_path"`
	Threads       int     `yaml:"threads"`
}

// ServerConfig configures the HTTP surfaces.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	PprofAddr   string `yaml:"pprof_addr"`
}

// DisplayConfig configures overlays and charts.
type DisplayConfig struct {
	TopLimit    int    `yaml:"top_limit"`
	BoxColor    string `yaml:"box_color"`
	LineWidth   int    `yaml:"line_width"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// RecordingConfig configures annotated-stream recording.
type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Config is the root monitor configuration.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Model     ModelConfig     `yaml:"model"`
	Server    ServerConfig    `yaml:"server"`
	Display   DisplayConfig   `yaml:"display"`
	Recording RecordingConfig `yaml:"recording"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Device: "0",
			FPS:    15,
		},
		Model: ModelConfig{
			Path:          "yolov8n.onnx",
			LabelsPath:    "",
			InputSize:     640,
			ConfThreshold: 0.4,
			IOUThreshold:  0.5,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
			PprofAddr:   ":6060",
		},
		Display: DisplayConfig{
			TopLimit:    10,
			BoxColor:    "green",
			LineWidth:   2,
			JPEGQuality: 80,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error; the defaults are returned with ok=false so the caller can
// log the fallback.
func Load(path string) (Config, bool, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, false, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Model.InputSize <= 0 {
		return fmt.Errorf("model.input_size must be positive, got %d", c.Model.InputSize)
	}
	if c.Model.InputSize%32 != 0 {
		return fmt.Errorf("model.input_size must be a multiple of 32, got %d", c.Model.InputSize)
	}
	if c.Model.ConfThreshold < 0 || c.Model.ConfThreshold > 1 {
		return fmt.Errorf("model.conf_threshold must be in [0,1], got %v", c.Model.ConfThreshold)
	}
	if c.Model.IOUThreshold <= 0 || c.Model.IOUThreshold > 1 {
		return fmt.Errorf("model.iou_threshold must be in (0,1], got %v", c.Model.IOUThreshold)
	}
	if c.Display.TopLimit <= 0 {
		return fmt.Errorf("display.top_limit must be positive, got %d", c.Display.TopLimit)
	}
	if c.Display.JPEGQuality < 1 || c.Display.JPEGQuality > 100 {
		return fmt.Errorf("display.jpeg_quality must be in [1,100], got %d", c.Display.JPEGQuality)
	}
	return nil
}

// ApplyEnv overrides selected fields from the environment. Values are read
// after godotenv has loaded any .env file in the working directory.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MONITOR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MONITOR_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("MONITOR_CAMERA_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("MONITOR_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("MONITOR_ONNX_LIBRARY"); v != "" {
		c.Model.LibraryPath = v
	}
	if v := os.Getenv("MONITOR_CAMERA_FPS"); v != "" {
		if fps, err := strconv.Atoi(v); err == nil && fps > 0 {
			c.Camera.FPS = fps
		}
	}
}
