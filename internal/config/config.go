// Package config loads the facecam configuration from a YAML file,
// applies environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates all application configuration.
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Detector  DetectorConfig  `yaml:"detector"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Library   LibraryConfig   `yaml:"library"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// CameraConfig maps device positions to capture devices.
type CameraConfig struct {
	FrontDevice     int    `yaml:"front_device"`     // -1 = not present
	BackDevice      int    `yaml:"back_device"`      // -1 = not present
	InitialPosition string `yaml:"initial_position"` // "front" or "back"
	// Orientation maps sensor frames to display space:
	// "up", "mirrored", "right" or "left-mirrored".
	FrontOrientation string `yaml:"front_orientation"`
	BackOrientation  string `yaml:"back_orientation"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	FPS              int    `yaml:"fps"`
	Codec            string `yaml:"codec"` // fourcc used for recordings
	RecordingDir     string `yaml:"recording_dir"`
}

// DetectorConfig selects the face detection backend.
type DetectorConfig struct {
	ModelPath     string  `yaml:"model_path"`   // YuNet ONNX model
	CascadePath   string  `yaml:"cascade_path"` // Haar cascade fallback
	MinConfidence float64 `yaml:"min_confidence"`
}

// TelemetryConfig describes the peripheral link and throttle.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	MinInterval    time.Duration `yaml:"min_interval"`
	DeviceName     string        `yaml:"device_name"`
	ServiceUUID    string        `yaml:"service_uuid"`
	Characteristic string        `yaml:"characteristic_uuid"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LibraryConfig locates the media library.
type LibraryConfig struct {
	Dir    string `yaml:"dir"`
	DBPath string `yaml:"db_path"`
}

// ServerConfig configures the HTTP command surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
// dataDir is the base directory for the media library.
func Default(dataDir string) Config {
	return Config{
		Camera: CameraConfig{
			FrontDevice:      0,
			BackDevice:       1,
			InitialPosition:  "front",
			FrontOrientation: "mirrored",
			BackOrientation:  "up",
			Width:            640,
			Height:           480,
			FPS:              30,
			Codec:            "mp4v",
			RecordingDir:     os.TempDir(),
		},
		Detector: DetectorConfig{
			ModelPath:     filepath.Join(dataDir, "models", "face_detection_yunet.onnx"),
			CascadePath:   filepath.Join(dataDir, "models", "haarcascade_frontalface_default.xml"),
			MinConfidence: 0.6,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MinInterval:    50 * time.Millisecond,
			DeviceName:     "FaceTracker",
			ServiceUUID:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			Characteristic: "6e400002-b5a3-f393-e0a9-e50e24dcca9e",
			ConnectTimeout: 15 * time.Second,
		},
		Library: LibraryConfig{
			Dir:    filepath.Join(dataDir, "library"),
			DBPath: filepath.Join(dataDir, "facecam.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults and applies env overrides.
// An empty path skips the file.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FACECAM_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FACECAM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FACECAM_DEVICE"); v != "" {
		cfg.Telemetry.DeviceName = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("FACECAM_FRONT_DEVICE"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Camera.FrontDevice = id
		}
	}
	if v := os.Getenv("FACECAM_BACK_DEVICE"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Camera.BackDevice = id
		}
	}
}

// Validate performs basic sanity checks on the configuration.
func (c *Config) Validate() error {
	switch c.Camera.InitialPosition {
	case "front", "back":
	default:
		return fmt.Errorf("camera.initial_position must be front or back, got %q", c.Camera.InitialPosition)
	}
	for key, o := range map[string]string{
		"camera.front_orientation": c.Camera.FrontOrientation,
		"camera.back_orientation":  c.Camera.BackOrientation,
	} {
		switch o {
		case "up", "mirrored", "right", "left-mirrored":
		default:
			return fmt.Errorf("%s must be up, mirrored, right or left-mirrored, got %q", key, o)
		}
	}
	if c.Camera.FrontDevice < 0 && c.Camera.BackDevice < 0 {
		return errors.New("at least one of camera.front_device and camera.back_device must be set")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be > 0")
	}
	if c.Camera.FPS <= 0 {
		return errors.New("camera.fps must be > 0")
	}
	if len(c.Camera.Codec) != 4 {
		return fmt.Errorf("camera.codec must be a fourcc, got %q", c.Camera.Codec)
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return errors.New("detector.min_confidence must be within [0,1]")
	}
	if c.Telemetry.MinInterval <= 0 {
		return errors.New("telemetry.min_interval must be > 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.DeviceName == "" {
		return errors.New("telemetry.device_name is required when telemetry is enabled")
	}
	if c.Library.Dir == "" || c.Library.DBPath == "" {
		return errors.New("library.dir and library.db_path are required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}
