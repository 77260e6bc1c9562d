// Package tracking closes the loop between the camera and the panel axes:
// sense the bright spot, decide a correction, move, and keyframe the pose.
package tracking

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/SolarGo/internal/config"
	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/hw/camera"
	"github.com/cjeanneret/SolarGo/internal/logic/geometry"
	"github.com/cjeanneret/SolarGo/internal/logic/motion"
)

// Sensor produces the frame seen from the current panel pose.
type Sensor interface {
	Capture(ctx context.Context, rc camera.RenderContext) (*image.RGBA, error)
}

// SpotLocator finds the bright spot of a frame and returns an annotated view.
type SpotLocator interface {
	Locate(frame *image.RGBA) (geometry.BrightSpot, *image.RGBA, error)
}

// InspectionSink persists the frames of each iteration.
type InspectionSink interface {
	Save(raw, annotated *image.RGBA) error
}

// KeyframeSink receives one entry per axis, in the host's unit (radians).
type KeyframeSink interface {
	InsertKeyframe(axis actuator.Axis, frame int, radians float64) error
}

// Indicator reflects the tracker state outside the process (status LEDs).
type Indicator interface {
	Show(converged, impossible bool) error
}

// State is the convergence state of the loop.
type State string

const (
	Seeking   State = "SEEKING"
	Converged State = "CONVERGED"
)

// Termination tells why Run returned.
type Termination string

const (
	TermConverged Termination = "CONVERGED"
	TermExhausted Termination = "EXHAUSTED"
	TermCancelled Termination = "CANCELLED"
	TermFailed    Termination = "FAILED"
)

// Params defines the parameters of a tracking run.
type Params struct {
	RunID          string
	StepDeg        float64       // correction per axis and iteration
	TolerancePx    int           // dead-zone half-width
	FrameStride    int           // frame advance per keyframe
	KeyframePolicy string        // config.KeyframeTiltUp or config.KeyframeAnyMove
	Delay          time.Duration // pause between iterations
	Follow         bool          // keep iterating after convergence
}

// ParamsFromConfig maps the tracker configuration to loop parameters.
func ParamsFromConfig(cfg *config.Config, runID string) Params {
	return Params{
		RunID:          runID,
		StepDeg:        cfg.Tracker.StepDeg,
		TolerancePx:    cfg.Tracker.TolerancePx,
		FrameStride:    cfg.Tracker.FrameStride,
		KeyframePolicy: cfg.Tracker.KeyframePolicy,
		Delay:          cfg.IterationDelay(),
		Follow:         cfg.Tracker.Follow,
	}
}

// Keyframe is a pose recorded on the host timeline.
type Keyframe struct {
	Frame       int     `json:"frame"`
	TiltDeg     float64 `json:"tilt_deg"`
	RotationDeg float64 `json:"rotation_deg"`
}

// Outcome describes one iteration.
type Outcome struct {
	Iteration  int                 `json:"iteration"`
	Frame      int                 `json:"frame"`
	Spot       geometry.BrightSpot `json:"spot"`
	Horizontal geometry.Horizontal `json:"horizontal"`
	Vertical   geometry.Vertical   `json:"vertical"`
	State      State               `json:"state"`
	Keyframe   *Keyframe           `json:"keyframe,omitempty"`
}

// Status is a snapshot of the loop, safe to read from other goroutines.
type Status struct {
	RunID       string              `json:"run_id"`
	Running     bool                `json:"running"`
	State       State               `json:"state"`
	Iteration   int                 `json:"iteration"`
	Frame       int                 `json:"frame"`
	Panel       motion.State        `json:"panel"`
	Spot        geometry.BrightSpot `json:"spot"`
	Horizontal  geometry.Horizontal `json:"horizontal"`
	Vertical    geometry.Vertical   `json:"vertical"`
	Keyframes   int                 `json:"keyframes"`
	Termination Termination         `json:"termination,omitempty"`
}

// Loop contains the tracking logic. One iteration runs at a time; Status may
// be called concurrently.
type Loop struct {
	ctrl    *motion.Controller
	sensor  Sensor
	locator SpotLocator
	params  Params

	inspection InspectionSink
	keyframes  KeyframeSink
	indicator  Indicator
	observer   func(Status)

	frame     int
	iteration int

	mu     sync.Mutex
	status Status
}

func NewLoop(ctrl *motion.Controller, sensor Sensor, locator SpotLocator, p Params) *Loop {
	if p.KeyframePolicy == "" {
		p.KeyframePolicy = config.KeyframeTiltUp
	}
	return &Loop{
		ctrl:    ctrl,
		sensor:  sensor,
		locator: locator,
		params:  p,
		status: Status{
			RunID: p.RunID,
			State: Seeking,
			Panel: ctrl.State(),
		},
	}
}

// SetInspectionSink enables per-iteration frame persistence.
func (l *Loop) SetInspectionSink(s InspectionSink) { l.inspection = s }

// SetKeyframeSink sets where keyframes are recorded.
func (l *Loop) SetKeyframeSink(s KeyframeSink) { l.keyframes = s }

// SetIndicator sets the status indicator.
func (l *Loop) SetIndicator(i Indicator) { l.indicator = i }

// SetObserver registers fn to receive the status after every iteration.
func (l *Loop) SetObserver(fn func(Status)) { l.observer = fn }

// Frame returns the current frame number.
func (l *Loop) Frame() int { return l.frame }

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Iterate runs one sense, decide, act cycle.
func (l *Loop) Iterate(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	l.iteration++
	out := Outcome{Iteration: l.iteration, Frame: l.frame}
	debug.Iteration(l.iteration, l.frame)

	rc := camera.RenderContext{FrameNumber: l.frame, Tick: l.iteration - 1, Time: time.Now()}
	raw, err := l.sensor.Capture(ctx, rc)
	if err != nil {
		return out, fmt.Errorf("capture frame %d: %w", l.frame, err)
	}
	spot, view, err := l.locator.Locate(raw)
	if err != nil {
		return out, fmt.Errorf("locate bright spot in frame %d: %w", l.frame, err)
	}
	if l.inspection != nil {
		if err := l.inspection.Save(raw, view); err != nil {
			debug.Error(fmt.Errorf("save inspection frame: %w", err))
		}
	}

	b := raw.Bounds()
	h, v := geometry.Classify(spot.Point(), geometry.FrameCenter(b.Dx(), b.Dy()), l.params.TolerancePx)
	debug.Directions(string(h), string(v))
	out.Spot, out.Horizontal, out.Vertical = spot, h, v

	if geometry.Centered(h, v) {
		out.State = Converged
		debug.Live("Converged: spot (%d, %d) inside the dead zone", spot.X, spot.Y)
		l.finish(out)
		return out, nil
	}
	out.State = Seeking

	before := l.ctrl.State()
	if err := l.correct(h, v); err != nil {
		l.finish(out)
		return out, err
	}

	st := l.ctrl.State()
	moved := h != geometry.HCenter || st.AppliedTiltDeg != before.AppliedTiltDeg
	if l.shouldKeyframe(v, moved) {
		out.Keyframe = l.recordKeyframe(st)
	}

	l.finish(out)
	return out, nil
}

func (l *Loop) correct(h geometry.Horizontal, v geometry.Vertical) error {
	step := l.params.StepDeg
	var err error
	switch h {
	case geometry.Right:
		err = l.ctrl.DecreaseRotation(step)
	case geometry.Left:
		err = l.ctrl.IncreaseRotation(step)
	}
	if err != nil {
		return fmt.Errorf("rotation correction: %w", err)
	}

	switch v {
	case geometry.Down:
		err = l.ctrl.DecreaseTilt(step)
	case geometry.Up:
		err = l.ctrl.IncreaseTilt(step)
	}
	if err != nil {
		return fmt.Errorf("tilt correction: %w", err)
	}
	return nil
}

func (l *Loop) shouldKeyframe(v geometry.Vertical, moved bool) bool {
	if l.params.KeyframePolicy == config.KeyframeAnyMove {
		return moved
	}
	return v == geometry.Up
}

// recordKeyframe stores the host pose at the current frame, then advances
// the frame number.
func (l *Loop) recordKeyframe(st motion.State) *Keyframe {
	kf := &Keyframe{Frame: l.frame, TiltDeg: st.AppliedTiltDeg, RotationDeg: st.RotationDeg}
	debug.Keyframe(kf.Frame, kf.TiltDeg, kf.RotationDeg)

	if l.keyframes != nil {
		entries := []struct {
			axis actuator.Axis
			deg  float64
		}{
			{actuator.Tilt, kf.TiltDeg},
			{actuator.Rotate, kf.RotationDeg},
		}
		for _, e := range entries {
			if err := l.keyframes.InsertKeyframe(e.axis, kf.Frame, geometry.Radians(e.deg)); err != nil {
				debug.Error(fmt.Errorf("insert %s keyframe at frame %d: %w", e.axis, kf.Frame, err))
			}
		}
	}

	l.frame += l.params.FrameStride
	return kf
}

// finish publishes the outcome to the status snapshot and the indicator.
func (l *Loop) finish(out Outcome) {
	st := l.ctrl.State()

	l.mu.Lock()
	l.status.State = out.State
	l.status.Iteration = out.Iteration
	l.status.Frame = l.frame
	l.status.Panel = st
	l.status.Spot = out.Spot
	l.status.Horizontal = out.Horizontal
	l.status.Vertical = out.Vertical
	if out.Keyframe != nil {
		l.status.Keyframes++
	}
	snapshot := l.status
	l.mu.Unlock()

	if l.indicator != nil {
		if err := l.indicator.Show(out.State == Converged, st.ImpossibleMove); err != nil {
			debug.Error(fmt.Errorf("update indicator: %w", err))
		}
	}
	if l.observer != nil {
		l.observer(snapshot)
	}
}

// Run iterates until convergence, until maxIterations iterations have run
// (maxIterations <= 0 means no limit), or until ctx is cancelled. In follow
// mode convergence does not end the run. A capture, locate or actuator
// error ends the run with TermFailed and is returned.
func (l *Loop) Run(ctx context.Context, maxIterations int) (Termination, error) {
	l.setRunning(true, "")
	debug.Summary("Tracking run " + l.params.RunID)

	term, err := l.run(ctx, maxIterations)

	l.setRunning(false, term)
	debug.Info("Tracking run finished: %s after %d iterations (frame %d)", term, l.iteration, l.frame)
	return term, err
}

func (l *Loop) run(ctx context.Context, maxIterations int) (Termination, error) {
	for i := 0; maxIterations <= 0 || i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return TermCancelled, nil
		default:
		}

		out, err := l.Iterate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return TermCancelled, nil
			}
			return TermFailed, err
		}
		if out.State == Converged && !l.params.Follow {
			return TermConverged, nil
		}

		if maxIterations > 0 && i == maxIterations-1 {
			break
		}
		if l.params.Delay > 0 {
			select {
			case <-ctx.Done():
				return TermCancelled, nil
			case <-time.After(l.params.Delay):
			}
		}
	}
	return TermExhausted, nil
}

func (l *Loop) setRunning(running bool, term Termination) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Running = running
	l.status.Termination = term
}
