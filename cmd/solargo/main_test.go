package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cjeanneret/SolarGo/internal/config"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/hw/scene"
	"github.com/cjeanneret/SolarGo/internal/logic/tracking"
	"github.com/cjeanneret/SolarGo/internal/logic/vision"
	"github.com/cjeanneret/SolarGo/internal/timeline"
	"github.com/cjeanneret/SolarGo/internal/web"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllZero(t *testing.T) {
	if err := validateCLIOverrides(0, 0, 0); err != nil {
		t.Errorf("all zeros should be valid (use config defaults), got: %v", err)
	}
}

func TestValidateCLIOverrides_ValidBoundary(t *testing.T) {
	cases := []struct {
		name       string
		step       float64
		tol, iters int
	}{
		{"small_step", 0.001, 0, 0},
		{"max_step", 45, 0, 0},
		{"min_tolerance", 0, 1, 0},
		{"max_tolerance", 0, 1024, 0},
		{"min_iterations", 0, 0, 1},
		{"max_iterations", 0, 0, 100000},
		{"all_set", 2.5, 16, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.step, tc.tol, tc.iters); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_OutOfRange(t *testing.T) {
	cases := []struct {
		name       string
		step       float64
		tol, iters int
	}{
		{"step_too_large", 45.5, 0, 0},
		{"tolerance_too_large", 0, 1025, 0},
		{"iterations_too_large", 0, 0, 100001},
		{"step_negative", -1, 0, 0},
		{"tolerance_negative", 0, -1, 0},
		{"iterations_negative", 0, 0, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.step, tc.tol, tc.iters); err == nil {
				t.Error("expected error for out-of-range value, got nil")
			}
		})
	}
}

func TestValidateCLIOverrides_NonFiniteStep(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := validateCLIOverrides(v, 0, 0); err == nil {
			t.Errorf("step %v: expected error, got nil", v)
		}
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Tracker: config.TrackerConfig{
			StepDeg:          1,
			TolerancePx:      32,
			FrameStride:      5,
			TiltMaxDeg:       90,
			MaxIterations:    50,
			IterationDelayMs: 1,
			KeyframePolicy:   config.KeyframeTiltUp,
			BoundPolicy:      config.BoundClamp,
		},
		Camera:     config.CameraConfig{Type: config.CameraSim},
		Resolution: &config.ResolutionConfig{WidthPx: 512, HeightPx: 512},
		Lens:       config.LensConfig{FocalLengthMm: 35.0},
		Sensor:     &config.SensorConfig{WidthMm: 23.6, HeightMm: 15.8},
		Scene: config.SceneConfig{
			SunAzimuthDeg:   5,
			SunElevationDeg: 40,
			SunRadiusPx:     6,
			InitialTiltDeg:  35,
		},
		Defaults: config.DefaultsConfig{MockGPIO: true},
	}
}

func TestApplyOverrides_NonZero(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, web.Overrides{StepDeg: 2.5, TolerancePx: 8, MaxIterations: 300})
	if cfg.Tracker.StepDeg != 2.5 {
		t.Errorf("StepDeg = %v, want 2.5", cfg.Tracker.StepDeg)
	}
	if cfg.Tracker.TolerancePx != 8 {
		t.Errorf("TolerancePx = %v, want 8", cfg.Tracker.TolerancePx)
	}
	if cfg.Tracker.MaxIterations != 300 {
		t.Errorf("MaxIterations = %v, want 300", cfg.Tracker.MaxIterations)
	}
}

func TestApplyOverrides_ZeroLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	orig := cfg.Tracker

	applyOverrides(cfg, web.Overrides{})

	if cfg.Tracker != orig {
		t.Errorf("tracker config changed: %+v != %+v", cfg.Tracker, orig)
	}
}

func TestApplyOverrides_Partial(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, web.Overrides{TolerancePx: 4})

	if cfg.Tracker.TolerancePx != 4 {
		t.Errorf("TolerancePx = %v, want 4", cfg.Tracker.TolerancePx)
	}
	if cfg.Tracker.StepDeg != 1 || cfg.Tracker.MaxIterations != 50 {
		t.Errorf("other fields should be unchanged: %+v", cfg.Tracker)
	}
}

// ---------- applyOverridesToCopy ----------

func TestApplyOverridesToCopy_OriginalUnmutated(t *testing.T) {
	cfg := newTestConfig()

	copy := applyOverridesToCopy(cfg, web.Overrides{StepDeg: 9})

	if cfg.Tracker.StepDeg != 1 {
		t.Errorf("original mutated: StepDeg = %v, want 1", cfg.Tracker.StepDeg)
	}
	if copy.Tracker.StepDeg != 9 {
		t.Errorf("copy StepDeg = %v, want 9", copy.Tracker.StepDeg)
	}
	if copy == cfg {
		t.Error("applyOverridesToCopy should return a new pointer, got same address")
	}
}

func TestApplyOverridesToCopy_PreservesNestedFields(t *testing.T) {
	cfg := newTestConfig()
	copy := applyOverridesToCopy(cfg, web.Overrides{MaxIterations: 10})

	if copy.Scene != cfg.Scene {
		t.Errorf("Scene not preserved")
	}
	if copy.Camera.Type != cfg.Camera.Type {
		t.Errorf("Camera.Type not preserved")
	}
	if copy.Tracker.KeyframePolicy != cfg.Tracker.KeyframePolicy || copy.Tracker.BoundPolicy != cfg.Tracker.BoundPolicy {
		t.Errorf("tracker policies not preserved")
	}
}

// ---------- Cross-source consistency ----------

func TestOverrides_CLIAndWebProduceSameResult(t *testing.T) {
	overrides := web.Overrides{StepDeg: 0.5, TolerancePx: 16, MaxIterations: 120}

	cfgCLI := newTestConfig()
	applyOverrides(cfgCLI, overrides)

	cfgWeb := applyOverridesToCopy(newTestConfig(), overrides)

	if cfgCLI.Tracker != cfgWeb.Tracker {
		t.Errorf("tracker config differs: CLI=%+v, Web=%+v", cfgCLI.Tracker, cfgWeb.Tracker)
	}
}

// ---------- wiring ----------

func TestNewHostFromConfig(t *testing.T) {
	cfg := newTestConfig()
	h, err := newHostFromConfig(cfg)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if _, ok := h.act.(*scene.Scene); !ok {
		t.Errorf("sim actuator = %T, want *scene.Scene", h.act)
	}

	cfg.Camera = config.CameraConfig{Type: config.CameraReplay, ReplayDir: t.TempDir()}
	if _, err := newHostFromConfig(cfg); err == nil {
		t.Error("replay of an empty directory should fail")
	}

	cfg.Camera = config.CameraConfig{Type: "webcam"}
	if _, err := newHostFromConfig(cfg); err == nil {
		t.Error("unknown camera type should fail")
	}
}

func TestNewTimelineFromConfig(t *testing.T) {
	cfg := newTestConfig()
	tl, closeFn, err := newTimelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	closeFn()
	if _, ok := tl.(*timeline.Memory); !ok {
		t.Errorf("timeline = %T, want *timeline.Memory", tl)
	}

	cfg.Timeline.DBPath = filepath.Join(t.TempDir(), "timeline.db")
	tl, closeFn, err = newTimelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer closeFn()
	if _, ok := tl.(*timeline.Store); !ok {
		t.Errorf("timeline = %T, want *timeline.Store", tl)
	}
}

func TestTracker_RunConvergesAndRecords(t *testing.T) {
	cfg := newTestConfig()
	cfg.Timeline.DBPath = filepath.Join(t.TempDir(), "timeline.db")
	cfg.Timeline.ChartPath = filepath.Join(t.TempDir(), "timeline.png")

	h, err := newHostFromConfig(cfg)
	if err != nil {
		t.Fatalf("newHostFromConfig: %v", err)
	}
	tl, closeFn, err := newTimelineFromConfig(cfg)
	if err != nil {
		t.Fatalf("newTimelineFromConfig: %v", err)
	}
	defer closeFn()

	var snapshots int
	tr := &tracker{
		cfg:      cfg,
		host:     h,
		locator:  vision.NewLocator(),
		timeline: tl,
		observe:  func(tracking.Status) { snapshots++ },
	}

	if st := tr.status(); st.Running || st.Iteration != 0 {
		t.Errorf("status before any run = %+v", st)
	}

	term, err := tr.run(context.Background(), web.Overrides{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if term != tracking.TermConverged {
		t.Fatalf("termination = %s, want CONVERGED", term)
	}

	st := tr.status()
	if st.Termination != tracking.TermConverged || st.RunID == "" {
		t.Errorf("status = %+v", st)
	}
	if snapshots != st.Iteration {
		t.Errorf("observer saw %d snapshots, want %d", snapshots, st.Iteration)
	}

	runs, err := tl.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != st.RunID || runs[0].Termination != string(tracking.TermConverged) {
		t.Errorf("runs = %+v", runs)
	}
	entries, err := tl.Entries(st.RunID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2*st.Keyframes {
		t.Errorf("%d entries for %d keyframes", len(entries), st.Keyframes)
	}
	for _, e := range entries {
		if e.Axis != actuator.Tilt && e.Axis != actuator.Rotate {
			t.Errorf("unexpected axis %q", e.Axis)
		}
	}
	if st.Keyframes > 0 {
		if _, err := os.Stat(cfg.Timeline.ChartPath); err != nil {
			t.Errorf("chart not written: %v", err)
		}
	}
}

func TestTracker_ResetOutsideBoundsFails(t *testing.T) {
	cfg := newTestConfig()
	cfg.Scene.InitialTiltDeg = 120
	h, err := newHostFromConfig(cfg)
	if err != nil {
		t.Fatalf("newHostFromConfig: %v", err)
	}
	tr := &tracker{cfg: cfg, host: h, locator: vision.NewLocator(), timeline: timeline.NewMemory()}

	term, err := tr.run(context.Background(), web.Overrides{})
	if err == nil || term != tracking.TermFailed {
		t.Errorf("run = (%s, %v), want FAILED with error", term, err)
	}
}

func TestDefaultConfigLoads(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "default.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	if cfg.Camera.Type != config.CameraSim {
		t.Errorf("camera type = %q, want sim", cfg.Camera.Type)
	}
	if _, err := newHostFromConfig(cfg); err != nil {
		t.Errorf("default config does not build a host: %v", err)
	}
}
