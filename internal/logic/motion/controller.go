package motion

import (
	"fmt"

	"github.com/cjeanneret/SolarGo/internal/config"
	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/logic/geometry"
)

// Bounds is the allowed tilt range in degrees.
type Bounds struct {
	MinDeg float64
	MaxDeg float64
}

// DefaultBounds is the mechanical tilt range of the panel.
var DefaultBounds = Bounds{MinDeg: 0, MaxDeg: 90}

// State is the panel pose as tracked by the controller.
type State struct {
	TiltDeg        float64 `json:"tilt_deg"`         // tilt counter (may leave bounds with track_desired)
	RotationDeg    float64 `json:"rotation_deg"`     // unbounded
	AppliedTiltDeg float64 `json:"applied_tilt_deg"` // last tilt pushed to the actuator
	ImpossibleMove bool    `json:"impossible_move"`  // last tilt request was out of bounds
}

// Controller orchestrates tilt/rotation movements of the panel.
// It's an intermediate layer between the tracking logic and the actuator:
// it owns the angles, enforces the tilt bounds and converts degrees to the
// actuator's radians.
type Controller struct {
	act    actuator.Actuator
	bounds Bounds
	policy string
	state  State
}

// NewController returns a controller at tilt 0, rotation 0. policy is
// config.BoundClamp or config.BoundTrackDesired; empty means clamp.
func NewController(act actuator.Actuator, bounds Bounds, policy string) *Controller {
	if policy == "" {
		policy = config.BoundClamp
	}
	return &Controller{act: act, bounds: bounds, policy: policy}
}

// State returns a copy of the current pose.
func (c *Controller) State() State {
	return c.state
}

// Bounds returns the tilt range.
func (c *Controller) Bounds() Bounds {
	return c.bounds
}

// Reset pushes an initial pose to the actuator and clears the bound flag.
func (c *Controller) Reset(tiltDeg, rotationDeg float64) error {
	if !geometry.InBounds(tiltDeg, c.bounds.MinDeg, c.bounds.MaxDeg) {
		return fmt.Errorf("initial tilt %.2f outside [%.2f, %.2f]", tiltDeg, c.bounds.MinDeg, c.bounds.MaxDeg)
	}
	if err := c.apply(actuator.Tilt, tiltDeg); err != nil {
		return err
	}
	if err := c.apply(actuator.Rotate, rotationDeg); err != nil {
		return err
	}
	c.state = State{TiltDeg: tiltDeg, RotationDeg: rotationDeg, AppliedTiltDeg: tiltDeg}
	debug.Verbose("Panel reset: tilt=%.2f° rotation=%.2f°", tiltDeg, rotationDeg)
	return nil
}

func (c *Controller) IncreaseTilt(stepDeg float64) error {
	return c.moveTilt(stepDeg)
}

func (c *Controller) DecreaseTilt(stepDeg float64) error {
	return c.moveTilt(-stepDeg)
}

func (c *Controller) IncreaseRotation(stepDeg float64) error {
	return c.moveRotation(stepDeg)
}

func (c *Controller) DecreaseRotation(stepDeg float64) error {
	return c.moveRotation(-stepDeg)
}

// ClearImpossibleMove resets the bound flag.
func (c *Controller) ClearImpossibleMove() {
	c.state.ImpossibleMove = false
}

// moveTilt applies tilt+delta when it stays within bounds. An out-of-bounds
// request is flagged as impossible. Under the clamp policy the tilt is then
// moved to the nearest bound; under track_desired the counter takes the
// requested value and the actuator keeps its angle.
func (c *Controller) moveTilt(delta float64) error {
	target := c.state.TiltDeg + delta
	if !geometry.InBounds(target, c.bounds.MinDeg, c.bounds.MaxDeg) {
		debug.Bound(string(actuator.Tilt), target, c.bounds.MinDeg, c.bounds.MaxDeg)
		if c.policy == config.BoundTrackDesired {
			c.state.TiltDeg = target
			c.state.ImpossibleMove = true
			return nil
		}

		clamped := geometry.Clamp(target, c.bounds.MinDeg, c.bounds.MaxDeg)
		if clamped != c.state.AppliedTiltDeg {
			if err := c.apply(actuator.Tilt, clamped); err != nil {
				return err
			}
			debug.Move(string(actuator.Tilt), clamped-c.state.AppliedTiltDeg, clamped)
		}
		c.state.TiltDeg = clamped
		c.state.AppliedTiltDeg = clamped
		c.state.ImpossibleMove = true
		return nil
	}

	if err := c.apply(actuator.Tilt, target); err != nil {
		return err
	}
	c.state.TiltDeg = target
	c.state.AppliedTiltDeg = target
	c.state.ImpossibleMove = false
	debug.Move(string(actuator.Tilt), delta, target)
	return nil
}

func (c *Controller) moveRotation(delta float64) error {
	target := c.state.RotationDeg + delta
	if err := c.apply(actuator.Rotate, target); err != nil {
		return err
	}
	c.state.RotationDeg = target
	debug.Move(string(actuator.Rotate), delta, target)
	return nil
}

func (c *Controller) apply(axis actuator.Axis, deg float64) error {
	if err := c.act.SetAngle(axis, geometry.Radians(deg)); err != nil {
		return fmt.Errorf("set %s to %.2f°: %w", axis, deg, err)
	}
	return nil
}
