package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/cjeanneret/SolarGo/internal/config"
	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/hw/camera"
	"github.com/cjeanneret/SolarGo/internal/hw/gpio"
	"github.com/cjeanneret/SolarGo/internal/hw/indicator"
	"github.com/cjeanneret/SolarGo/internal/hw/inspect"
	"github.com/cjeanneret/SolarGo/internal/hw/scene"
	"github.com/cjeanneret/SolarGo/internal/logic/motion"
	"github.com/cjeanneret/SolarGo/internal/logic/tracking"
	"github.com/cjeanneret/SolarGo/internal/logic/vision"
	"github.com/cjeanneret/SolarGo/internal/timeline"
	"github.com/cjeanneret/SolarGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	stepDeg := flag.Float64("step_deg", 0, "override correction step in degrees (0-45]")
	tolerancePx := flag.Int("tolerance_px", 0, "override dead-zone half-width in pixels (1-1024)")
	iterations := flag.Int("iterations", 0, "override max iterations per run (1-100000)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*stepDeg, *tolerancePx, *iterations); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, web.Overrides{
		StepDeg:       *stepDeg,
		TolerancePx:   *tolerancePx,
		MaxIterations: *iterations,
	})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Tracker config", cfg.Tracker)

	// Initialize GPIO driver and status LEDs
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	leds, err := indicator.New(gpioDriver, indicator.Config{
		ConvergedPin: cfg.Indicator.ConvergedPin,
		BoundPin:     cfg.Indicator.BoundPin,
	})
	if err != nil {
		log.Fatalf("init indicator failed: %v", err)
	}
	defer leds.Off()

	// Initialize host and camera
	debug.Step(2, "Initializing camera")
	panel, err := newHostFromConfig(cfg)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Resolution", fmt.Sprintf("%dx%d", cfg.FrameWidth(), cfg.FrameHeight()))

	// Initialize outputs
	debug.Step(3, "Initializing timeline")
	tl, closeTimeline, err := newTimelineFromConfig(cfg)
	if err != nil {
		log.Fatalf("init timeline failed: %v", err)
	}
	defer closeTimeline()

	var sink tracking.InspectionSink
	if cfg.Inspection.Dir != "" {
		s, err := inspect.NewDirSink(cfg.Inspection.Dir, cfg.Inspection.SaveRaw)
		if err != nil {
			log.Fatalf("init inspection output failed: %v", err)
		}
		sink = s
		debug.Value("Inspection dir", cfg.Inspection.Dir)
	}

	tr := &tracker{
		cfg:        cfg,
		host:       panel,
		locator:    vision.NewLocator(),
		inspection: sink,
		indicator:  leds,
		timeline:   tl,
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		tr.observe = broadcaster.BroadcastStatus

		formDefaults := web.FormConfig{
			StepDeg:       cfg.Tracker.StepDeg,
			TolerancePx:   cfg.Tracker.TolerancePx,
			MaxIterations: cfg.Tracker.MaxIterations,
			Follow:        cfg.Tracker.Follow,
		}
		if formDefaults.MaxIterations == 0 {
			formDefaults.MaxIterations = 1000
		}
		srv := web.NewServer(webAddr, broadcaster, tr.run, formDefaults, tr.status, tl)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	{
		// Run once with current config (already has CLI overrides applied)
		term, err := tr.run(ctx, web.Overrides{})
		if err != nil {
			log.Fatalf("tracking failed: %v", err)
		}
		debug.Info("Termination: %s", term)
	}
}

// host is the panel the tracker drives and the sensor that looks through it.
type host struct {
	act    actuator.Actuator
	sensor tracking.Sensor
}

// tracker owns the long-lived collaborators and starts one run at a time.
type tracker struct {
	cfg        *config.Config
	host       host
	locator    tracking.SpotLocator
	inspection tracking.InspectionSink
	indicator  tracking.Indicator
	timeline   timeline.Timeline
	observe    func(tracking.Status)

	mu   sync.Mutex
	loop *tracking.Loop
}

// run executes one tracking run with overrides applied to a copy of the config.
func (t *tracker) run(ctx context.Context, overrides web.Overrides) (tracking.Termination, error) {
	cfg := applyOverridesToCopy(t.cfg, overrides)
	runID := uuid.New().String()

	debug.Step(4, "Resetting panel")
	ctrl := motion.NewController(t.host.act, motion.Bounds{
		MinDeg: cfg.Tracker.TiltMinDeg,
		MaxDeg: cfg.Tracker.TiltMaxDeg,
	}, cfg.Tracker.BoundPolicy)
	if err := ctrl.Reset(cfg.Scene.InitialTiltDeg, cfg.Scene.InitialRotationDeg); err != nil {
		return tracking.TermFailed, fmt.Errorf("reset panel: %w", err)
	}

	rec := timeline.NewRecorder(runID, t.timeline)
	loop := tracking.NewLoop(ctrl, t.host.sensor, t.locator, tracking.ParamsFromConfig(cfg, runID))
	loop.SetKeyframeSink(rec)
	loop.SetIndicator(t.indicator)
	if t.inspection != nil {
		loop.SetInspectionSink(t.inspection)
	}
	if t.observe != nil {
		loop.SetObserver(t.observe)
	}

	t.mu.Lock()
	t.loop = loop
	t.mu.Unlock()

	if err := rec.Begin(); err != nil {
		return tracking.TermFailed, fmt.Errorf("begin run: %w", err)
	}

	debug.Section("Starting tracking run")
	debug.Value("Run id", runID)
	term, runErr := loop.Run(ctx, cfg.Tracker.MaxIterations)

	if err := rec.Finish(string(term)); err != nil {
		debug.Error(fmt.Errorf("finish run: %w", err))
	}
	if cfg.Timeline.ChartPath != "" {
		if err := saveChart(cfg.Timeline.ChartPath, runID, t.timeline); err != nil {
			debug.Error(err)
		} else {
			debug.Value("Chart", cfg.Timeline.ChartPath)
		}
	}

	debug.Section("Run complete")
	return term, runErr
}

// status returns the snapshot of the current or last run.
func (t *tracker) status() tracking.Status {
	t.mu.Lock()
	loop := t.loop
	t.mu.Unlock()
	if loop == nil {
		return tracking.Status{State: tracking.Seeking}
	}
	return loop.Status()
}

func saveChart(path, runID string, tl timeline.Timeline) error {
	entries, err := tl.Entries(runID)
	if err != nil {
		return fmt.Errorf("read keyframes for chart: %w", err)
	}
	if err := timeline.SavePlot(path, runID, entries); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(stepDeg float64, tolerancePx, iterations int) error {
	if stepDeg != 0 {
		if math.IsNaN(stepDeg) || math.IsInf(stepDeg, 0) || stepDeg <= 0 || stepDeg > 45 {
			return fmt.Errorf("step_deg must be in (0, 45], got %g", stepDeg)
		}
	}
	if tolerancePx != 0 {
		if tolerancePx < 1 || tolerancePx > 1024 {
			return fmt.Errorf("tolerance_px must be between 1 and 1024, got %d", tolerancePx)
		}
	}
	if iterations != 0 {
		if iterations < 1 || iterations > 100000 {
			return fmt.Errorf("iterations must be between 1 and 100000, got %d", iterations)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.StepDeg > 0 {
		cfg.Tracker.StepDeg = overrides.StepDeg
	}
	if overrides.TolerancePx > 0 {
		cfg.Tracker.TolerancePx = overrides.TolerancePx
	}
	if overrides.MaxIterations > 0 {
		cfg.Tracker.MaxIterations = overrides.MaxIterations
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
// Zero values in overrides mean "use base config".
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	applyOverrides(&cfg, overrides)
	return &cfg
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newHostFromConfig selects the panel host and image sensor based on configuration.
func newHostFromConfig(cfg *config.Config) (host, error) {
	switch cfg.Camera.Type {
	case config.CameraSim:
		s, err := scene.New(cfg)
		if err != nil {
			return host{}, err
		}
		return host{act: s, sensor: s}, nil
	case config.CameraReplay:
		r, err := camera.NewReplay(cfg.Camera.ReplayDir, cfg.FrameWidth(), cfg.FrameHeight())
		if err != nil {
			return host{}, err
		}
		debug.Value("Replay frames", r.Len())
		return host{act: actuator.NewMemory(), sensor: r}, nil
	default:
		return host{}, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newTimelineFromConfig returns the SQLite store when timeline.db_path is set,
// an in-memory timeline otherwise.
func newTimelineFromConfig(cfg *config.Config) (timeline.Timeline, func(), error) {
	if cfg.Timeline.DBPath == "" {
		return timeline.NewMemory(), func() {}, nil
	}
	store, err := timeline.Open(cfg.Timeline.DBPath)
	if err != nil {
		return nil, nil, err
	}
	debug.Value("Timeline store", cfg.Timeline.DBPath)
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Printf("closing timeline store failed: %v", err)
		}
	}
	return store, closeStore, nil
}
