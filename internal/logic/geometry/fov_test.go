package geometry

import (
	"math"
	"testing"

	"github.com/cjeanneret/SolarGo/internal/config"
)

const epsilon = 0.01 // tolerance for float comparisons (degrees)

func newFOVConfig(focalMm, sensorW, sensorH float64, widthPx, heightPx int) *config.Config {
	return &config.Config{
		Lens:       config.LensConfig{FocalLengthMm: focalMm},
		Sensor:     &config.SensorConfig{WidthMm: sensorW, HeightMm: sensorH},
		Resolution: &config.ResolutionConfig{WidthPx: widthPx, HeightPx: heightPx},
	}
}

func TestNewFOVCalculator_NilSensor(t *testing.T) {
	cfg := &config.Config{Lens: config.LensConfig{FocalLengthMm: 35}}
	if _, err := NewFOVCalculator(cfg); err == nil {
		t.Error("expected error for nil sensor, got nil")
	}
}

func TestNewFOVCalculator_ZeroFocalLength(t *testing.T) {
	cfg := newFOVConfig(0, 23.6, 15.8, 512, 512)
	if _, err := NewFOVCalculator(cfg); err == nil {
		t.Error("expected error for zero focal length, got nil")
	}
}

// Reference: APS-C (23.6 x 15.8 mm) with 35mm lens
// HorizontalFOV = 2 * atan(23.6 / (2*35)) * 180/pi ~ 37.22 deg
// VerticalFOV   = 2 * atan(15.8 / (2*35)) * 180/pi ~ 25.43 deg
func TestFOVCalculator_APSC_35mm(t *testing.T) {
	fov, err := NewFOVCalculator(newFOVConfig(35, 23.6, 15.8, 512, 512))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantH := 2.0 * math.Atan(23.6/(2.0*35.0)) * 180.0 / math.Pi
	if got := fov.HorizontalFOV(); math.Abs(got-wantH) > epsilon {
		t.Errorf("HorizontalFOV() = %v, want ~%v", got, wantH)
	}
	wantV := 2.0 * math.Atan(15.8/(2.0*35.0)) * 180.0 / math.Pi
	if got := fov.VerticalFOV(); math.Abs(got-wantV) > epsilon {
		t.Errorf("VerticalFOV() = %v, want ~%v", got, wantV)
	}
}

func TestFOVCalculator_FOV_DecreasesWithFocalLength(t *testing.T) {
	fov18, _ := NewFOVCalculator(newFOVConfig(18, 23.6, 15.8, 512, 512))
	fov200, _ := NewFOVCalculator(newFOVConfig(200, 23.6, 15.8, 512, 512))

	if fov18.HorizontalFOV() <= fov200.HorizontalFOV() {
		t.Errorf("18mm FOV (%v) should be larger than 200mm FOV (%v)",
			fov18.HorizontalFOV(), fov200.HorizontalFOV())
	}
	if fov18.PixelsPerDegreeX() >= fov200.PixelsPerDegreeX() {
		t.Errorf("18mm scale (%v px/deg) should be below 200mm scale (%v px/deg)",
			fov18.PixelsPerDegreeX(), fov200.PixelsPerDegreeX())
	}
}

func TestFOVCalculator_PixelsPerDegree(t *testing.T) {
	fov, _ := NewFOVCalculator(newFOVConfig(35, 24, 24, 512, 256))

	wantX := 512 / fov.HorizontalFOV()
	if got := fov.PixelsPerDegreeX(); math.Abs(got-wantX) > 1e-9 {
		t.Errorf("PixelsPerDegreeX() = %v, want %v", got, wantX)
	}
	// Square sensor, half the rows: half the vertical scale.
	if got := fov.PixelsPerDegreeY(); math.Abs(got-wantX/2) > 1e-9 {
		t.Errorf("PixelsPerDegreeY() = %v, want %v", got, wantX/2)
	}
}

func TestAngles_RoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 1, 45, 90, -30, 720} {
		if got := Degrees(Radians(deg)); math.Abs(got-deg) > 1e-9 {
			t.Errorf("Degrees(Radians(%v)) = %v", deg, got)
		}
	}
	if got := Radians(90); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("Radians(90) = %v, want pi/2", got)
	}
}

func TestClampAndInBounds(t *testing.T) {
	cases := []struct {
		v, want float64
		in      bool
	}{
		{-1, 0, false},
		{0, 0, true},
		{45, 45, true},
		{90, 90, true},
		{91, 90, false},
	}
	for _, tc := range cases {
		if got := Clamp(tc.v, 0, 90); got != tc.want {
			t.Errorf("Clamp(%v) = %v, want %v", tc.v, got, tc.want)
		}
		if got := InBounds(tc.v, 0, 90); got != tc.in {
			t.Errorf("InBounds(%v) = %v, want %v", tc.v, got, tc.in)
		}
	}
}
