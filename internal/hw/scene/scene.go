// Package scene simulates the sky seen by a camera mounted on the panel.
// It is both the panel's actuator and its image sensor.
package scene

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/cjeanneret/SolarGo/internal/config"
	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/hw/camera"
	"github.com/cjeanneret/SolarGo/internal/logic/geometry"
)

// Sky colour far away from the sun.
var sky = [3]float64{20, 40, 80}

const (
	discFalloff = 4.0  // luminance lost per pixel inside the sun disc
	discDrop    = 64.0 // upper bound of the luminance lost across the disc
	glowSpan    = 2.0  // glow radius as a multiple of the frame diagonal
)

// Sun describes the sun's apparent path in panel angles.
type Sun struct {
	AzimuthDeg        float64
	ElevationDeg      float64
	AzimuthDriftDeg   float64 // per tick
	ElevationDriftDeg float64 // per tick
	RadiusPx          int
}

// At returns the sun's azimuth and elevation after tick captures.
func (s Sun) At(tick int) (azimuthDeg, elevationDeg float64) {
	return s.AzimuthDeg + s.AzimuthDriftDeg*float64(tick),
		s.ElevationDeg + s.ElevationDriftDeg*float64(tick)
}

// Scene renders the sun as a bright disc with a wide glow. Luminance strictly
// decreases with the distance to the sun centre, so the brightest frame pixel
// is the one closest to the sun even when the sun is out of frame.
type Scene struct {
	sun          Sun
	width        int
	height       int
	pxPerDegX    float64
	pxPerDegY    float64
	glowRadiusPx float64

	mu     sync.Mutex
	angles map[actuator.Axis]float64 // radians
}

// New builds a scene from the lens, sensor, resolution and scene configuration.
func New(cfg *config.Config) (*Scene, error) {
	fov, err := geometry.NewFOVCalculator(cfg)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}

	w, h := cfg.FrameWidth(), cfg.FrameHeight()
	s := &Scene{
		sun: Sun{
			AzimuthDeg:        cfg.Scene.SunAzimuthDeg,
			ElevationDeg:      cfg.Scene.SunElevationDeg,
			AzimuthDriftDeg:   cfg.Scene.SunAzimuthDriftDeg,
			ElevationDriftDeg: cfg.Scene.SunElevationDriftDeg,
			RadiusPx:          cfg.Scene.SunRadiusPx,
		},
		width:        w,
		height:       h,
		pxPerDegX:    fov.PixelsPerDegreeX(),
		pxPerDegY:    fov.PixelsPerDegreeY(),
		glowRadiusPx: glowSpan * math.Hypot(float64(w), float64(h)),
		angles:       map[actuator.Axis]float64{actuator.Tilt: 0, actuator.Rotate: 0},
	}

	debug.Info("Scene: %dx%d, %.2f x %.2f px/deg, sun az=%.2f el=%.2f",
		w, h, s.pxPerDegX, s.pxPerDegY, s.sun.AzimuthDeg, s.sun.ElevationDeg)
	return s, nil
}

// SetAngle stores the axis angle (radians) applied by the controller.
func (s *Scene) SetAngle(axis actuator.Axis, radians float64) error {
	if _, err := actuator.ParseAxis(string(axis)); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angles[axis] = radians
	debug.Trace("Scene: %s = %.4f rad", axis, radians)
	return nil
}

// Angle returns the last angle applied to axis, in radians.
func (s *Scene) Angle(axis actuator.Axis) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angles[axis]
}

// SunPosition returns the sun centre in frame pixels for the current panel
// pose at the given tick. The result may lie outside the frame.
func (s *Scene) SunPosition(tick int) (x, y float64) {
	az, el := s.sun.At(tick)
	tilt := geometry.Degrees(s.Angle(actuator.Tilt))
	rot := geometry.Degrees(s.Angle(actuator.Rotate))

	c := geometry.FrameCenter(s.width, s.height)
	x = float64(c.X) + (rot-az)*s.pxPerDegX
	y = float64(c.Y) + (tilt-el)*s.pxPerDegY
	return x, y
}

// Capture renders the sky for the current pose.
func (s *Scene) Capture(ctx context.Context, rc camera.RenderContext) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sx, sy := s.SunPosition(rc.Tick)
	debug.Verbose("Scene: tick %d, sun at (%.1f, %.1f)", rc.Tick, sx, sy)

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < s.width; x++ {
			l := s.luminance(math.Hypot(float64(x)-sx, float64(y)-sy)) / 255
			p := row[x*4 : x*4+4]
			p[0] = uint8(sky[0] + (255-sky[0])*l)
			p[1] = uint8(sky[1] + (255-sky[1])*l)
			p[2] = uint8(sky[2] + (255-sky[2])*l)
			p[3] = 255
		}
	}
	return img, nil
}

// luminance is the sun contribution (0-255) at distance d from its centre.
func (s *Scene) luminance(d float64) float64 {
	r := float64(s.sun.RadiusPx)
	falloff := discFalloff
	if r > 0 && falloff*r > discDrop {
		falloff = discDrop / r
	}
	if d <= r {
		return 255 - falloff*d
	}
	edge := 255 - falloff*r
	l := edge * (1 - (d-r)/s.glowRadiusPx)
	if l < 0 {
		return 0
	}
	return l
}

var (
	_ actuator.Actuator  = (*Scene)(nil)
	_ camera.ImageSensor = (*Scene)(nil)
)
