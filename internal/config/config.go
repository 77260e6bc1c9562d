package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20

// Keyframe policies.
const (
	KeyframeTiltUp  = "tilt_up"  // keyframe only when tilt is corrected upwards
	KeyframeAnyMove = "any_move" // keyframe after every applied movement
)

// Tilt bound policies.
const (
	BoundClamp        = "clamp"         // rejected moves leave the tilt counter untouched
	BoundTrackDesired = "track_desired" // rejected moves still update the tilt counter
)

// Camera types.
const (
	CameraSim    = "sim"
	CameraReplay = "replay"
)

// TrackerConfig holds the control loop parameters.
type TrackerConfig struct {
	StepDeg          float64 `yaml:"step_deg"`           // angle increment per correction (degrees)
	TolerancePx      int     `yaml:"tolerance_px"`       // dead-zone half-width around the frame center
	FrameStride      int     `yaml:"frame_stride"`       // frame number advance per keyframe
	TiltMinDeg       float64 `yaml:"tilt_min_deg"`       // lower tilt bound
	TiltMaxDeg       float64 `yaml:"tilt_max_deg"`       // upper tilt bound
	MaxIterations    int     `yaml:"max_iterations"`     // iterations per run (0 = 50, unbounded when following)
	IterationDelayMs int     `yaml:"iteration_delay_ms"` // pause between iterations
	KeyframePolicy   string  `yaml:"keyframe_policy"`    // "tilt_up" or "any_move"
	BoundPolicy      string  `yaml:"bound_policy"`       // "clamp" or "track_desired"
	Follow           bool    `yaml:"follow"`             // keep tracking after convergence
}

// CameraConfig selects the image sensor implementation.
type CameraConfig struct {
	Type      string `yaml:"type"`       // "sim" or "replay"
	ReplayDir string `yaml:"replay_dir"` // directory of PNG frames for "replay"
}

// LensConfig describes the simulated lens.
type LensConfig struct {
	Name          string  `yaml:"name"`
	FocalLengthMm float64 `yaml:"focal_length_mm"`
}

// SensorConfig is the physical sensor size in mm, used for the field of view.
type SensorConfig struct {
	WidthMm  float64 `yaml:"width_mm"`
	HeightMm float64 `yaml:"height_mm"`
}

// ResolutionConfig is the frame resolution in pixels.
type ResolutionConfig struct {
	WidthPx  int `yaml:"width_px"`
	HeightPx int `yaml:"height_px"`
}

// SceneConfig describes the simulated sky and the panel start pose.
type SceneConfig struct {
	SunAzimuthDeg        float64 `yaml:"sun_azimuth_deg"`
	SunElevationDeg      float64 `yaml:"sun_elevation_deg"`
	SunAzimuthDriftDeg   float64 `yaml:"sun_azimuth_drift_deg"`   // per captured frame
	SunElevationDriftDeg float64 `yaml:"sun_elevation_drift_deg"` // per captured frame
	SunRadiusPx          int     `yaml:"sun_radius_px"`
	InitialTiltDeg       float64 `yaml:"initial_tilt_deg"`
	InitialRotationDeg   float64 `yaml:"initial_rotation_deg"`
}

// InspectionConfig controls where annotated frames are written.
type InspectionConfig struct {
	Dir     string `yaml:"dir"`      // empty disables inspection output
	SaveRaw bool   `yaml:"save_raw"` // also write the unannotated frame
}

// TimelineConfig controls keyframe persistence and charts.
type TimelineConfig struct {
	DBPath    string `yaml:"db_path"`    // SQLite file; empty keeps the timeline in memory
	ChartPath string `yaml:"chart_path"` // PNG chart written after a run; empty disables it
}

// IndicatorConfig holds the status LED pins (BCM). 0 = not used.
type IndicatorConfig struct {
	ConvergedPin int `yaml:"converged_pin"`
	BoundPin     int `yaml:"bound_pin"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Tracker    TrackerConfig     `yaml:"tracker"`
	Camera     CameraConfig      `yaml:"camera"`
	Resolution *ResolutionConfig `yaml:"resolution,omitempty"` // defaults to 512x512
	Lens       LensConfig        `yaml:"lens"`
	Sensor     *SensorConfig     `yaml:"sensor,omitempty"` // required for the simulated camera
	Scene      SceneConfig       `yaml:"scene"`
	Inspection InspectionConfig  `yaml:"inspection"`
	Timeline   TimelineConfig    `yaml:"timeline"`
	Indicator  IndicatorConfig   `yaml:"indicator"`
	Defaults   DefaultsConfig    `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Keys absent from the file keep these values; an explicit 0 is kept.
	cfg := Config{Tracker: TrackerConfig{
		TolerancePx:      32,
		TiltMaxDeg:       90,
		IterationDelayMs: 100,
	}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills zero values and validates the result.
func (c *Config) applyDefaults() error {
	t := &c.Tracker

	if c.Camera.Type == "" {
		return fmt.Errorf("camera.type is required")
	}
	switch c.Camera.Type {
	case CameraSim:
		if c.Lens.FocalLengthMm <= 0 {
			return fmt.Errorf("lens.focal_length_mm must be > 0 for the simulated camera")
		}
		if c.Sensor == nil || c.Sensor.WidthMm <= 0 || c.Sensor.HeightMm <= 0 {
			return fmt.Errorf("sensor.width_mm and sensor.height_mm are required for the simulated camera")
		}
	case CameraReplay:
		if c.Camera.ReplayDir == "" {
			return fmt.Errorf("camera.replay_dir is required for the replay camera")
		}
	default:
		return fmt.Errorf("unsupported camera type: %s", c.Camera.Type)
	}

	if c.Resolution == nil {
		c.Resolution = &ResolutionConfig{}
	}
	if c.Resolution.WidthPx <= 0 {
		c.Resolution.WidthPx = 512
	}
	if c.Resolution.HeightPx <= 0 {
		c.Resolution.HeightPx = 512
	}

	if math.IsNaN(t.StepDeg) || math.IsInf(t.StepDeg, 0) || t.StepDeg < 0 {
		return fmt.Errorf("tracker.step_deg must be a positive number, got %g", t.StepDeg)
	}
	if t.StepDeg == 0 {
		t.StepDeg = 1
	}
	if t.TolerancePx < 0 {
		return fmt.Errorf("tracker.tolerance_px must be >= 0, got %d", t.TolerancePx)
	}
	if t.FrameStride <= 0 {
		t.FrameStride = 5
	}
	if t.TiltMinDeg >= t.TiltMaxDeg {
		return fmt.Errorf("tracker.tilt_min_deg (%g) must be below tilt_max_deg (%g)", t.TiltMinDeg, t.TiltMaxDeg)
	}
	if t.MaxIterations < 0 {
		return fmt.Errorf("tracker.max_iterations must be >= 0, got %d", t.MaxIterations)
	}
	if t.MaxIterations == 0 && !t.Follow {
		t.MaxIterations = 50
	}
	if t.IterationDelayMs < 0 {
		return fmt.Errorf("tracker.iteration_delay_ms must be >= 0, got %d", t.IterationDelayMs)
	}
	switch t.KeyframePolicy {
	case "":
		t.KeyframePolicy = KeyframeTiltUp
	case KeyframeTiltUp, KeyframeAnyMove:
	default:
		return fmt.Errorf("unsupported tracker.keyframe_policy: %s", t.KeyframePolicy)
	}
	switch t.BoundPolicy {
	case "":
		t.BoundPolicy = BoundClamp
	case BoundClamp, BoundTrackDesired:
	default:
		return fmt.Errorf("unsupported tracker.bound_policy: %s", t.BoundPolicy)
	}

	if c.Scene.SunRadiusPx <= 0 {
		c.Scene.SunRadiusPx = 6
	}
	if c.Scene.InitialTiltDeg < t.TiltMinDeg || c.Scene.InitialTiltDeg > t.TiltMaxDeg {
		return fmt.Errorf("scene.initial_tilt_deg %g is outside [%g, %g]", c.Scene.InitialTiltDeg, t.TiltMinDeg, t.TiltMaxDeg)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// IterationDelay returns the pause between two tracker iterations.
func (c *Config) IterationDelay() time.Duration {
	return time.Duration(c.Tracker.IterationDelayMs) * time.Millisecond
}

// FrameWidth returns the frame width in pixels.
func (c *Config) FrameWidth() int {
	if c.Resolution == nil {
		return 512
	}
	return c.Resolution.WidthPx
}

// FrameHeight returns the frame height in pixels.
func (c *Config) FrameHeight() int {
	if c.Resolution == nil {
		return 512
	}
	return c.Resolution.HeightPx
}
