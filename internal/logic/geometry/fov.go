package geometry

import (
	"fmt"
	"math"

	"github.com/cjeanneret/SolarGo/internal/config"
)

// FOVCalculator computes the simulated camera's field of view and the
// resulting pixel scale, based on lens, sensor and resolution configuration.
type FOVCalculator struct {
	focalLengthMm float64
	sensorWidth   float64
	sensorHeight  float64
	widthPx       int
	heightPx      int
}

// NewFOVCalculator creates a new FOV calculator.
// Returns an error if sensor or lens information is not available
// (required for calculations).
func NewFOVCalculator(cfg *config.Config) (*FOVCalculator, error) {
	if cfg.Sensor == nil {
		return nil, fmt.Errorf("sensor configuration is required for FOV calculations")
	}
	if cfg.Lens.FocalLengthMm <= 0 {
		return nil, fmt.Errorf("lens focal length must be > 0 for FOV calculations")
	}
	return &FOVCalculator{
		focalLengthMm: cfg.Lens.FocalLengthMm,
		sensorWidth:   cfg.Sensor.WidthMm,
		sensorHeight:  cfg.Sensor.HeightMm,
		widthPx:       cfg.FrameWidth(),
		heightPx:      cfg.FrameHeight(),
	}, nil
}

// HorizontalFOV calculates the horizontal field of view in degrees.
// Formula: FOV = 2 × arctan(sensor_width / (2 × focal_length))
func (f *FOVCalculator) HorizontalFOV() float64 {
	return Degrees(2.0 * math.Atan(f.sensorWidth/(2.0*f.focalLengthMm)))
}

// VerticalFOV calculates the vertical field of view in degrees.
// Formula: FOV = 2 × arctan(sensor_height / (2 × focal_length))
func (f *FOVCalculator) VerticalFOV() float64 {
	return Degrees(2.0 * math.Atan(f.sensorHeight/(2.0*f.focalLengthMm)))
}

// PixelsPerDegreeX is the horizontal image displacement caused by one degree
// of rotation, averaged over the field of view.
func (f *FOVCalculator) PixelsPerDegreeX() float64 {
	return float64(f.widthPx) / f.HorizontalFOV()
}

// PixelsPerDegreeY is the vertical image displacement caused by one degree of tilt.
func (f *FOVCalculator) PixelsPerDegreeY() float64 {
	return float64(f.heightPx) / f.VerticalFOV()
}
