// Package camera defines the image sensor seen by the tracker and a sensor
// that replays frames recorded on disk.
package camera

import (
	"context"
	"image"
	"time"
)

// RenderContext tells the sensor which moment of the scene to produce.
type RenderContext struct {
	FrameNumber int // host timeline frame, advances only on keyframes
	Tick        int // iterations captured before this one
	Time        time.Time
}

// ImageSensor is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of where the pixels come
// from (simulated scene, recorded frames, real device).
type ImageSensor interface {
	// Capture returns the frame visible from the current panel pose.
	Capture(ctx context.Context, rc RenderContext) (*image.RGBA, error)
}
