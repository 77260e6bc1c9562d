// Package vision finds the brightest pixel of a frame and renders the
// annotated debug view that goes with it.
package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/logic/geometry"
)

// MarkerColor is the colour of the spot marker and the centre guides.
var MarkerColor = color.RGBA{R: 255, G: 0, B: 255, A: 255}

const (
	markerRadius    = 5
	markerThickness = 1
)

// EmptyFrameError is returned for a nil or zero-area frame.
type EmptyFrameError struct {
	Width, Height int
}

func (e *EmptyFrameError) Error() string {
	return fmt.Sprintf("empty frame (%dx%d)", e.Width, e.Height)
}

// Locator reduces a frame to luminance and returns the first maximum in
// row-major order, as cv::minMaxLoc does.
type Locator struct{}

// NewLocator returns a Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Locate returns the bright spot of frame and an annotated copy of it.
// The input frame is left untouched.
func (l *Locator) Locate(frame *image.RGBA) (geometry.BrightSpot, *image.RGBA, error) {
	if frame == nil {
		return geometry.BrightSpot{}, nil, &EmptyFrameError{}
	}
	w, h := frame.Rect.Dx(), frame.Rect.Dy()
	if w <= 0 || h <= 0 {
		return geometry.BrightSpot{}, nil, &EmptyFrameError{Width: w, Height: h}
	}

	mat, err := MatFromRGBA(frame)
	if err != nil {
		return geometry.BrightSpot{}, nil, fmt.Errorf("locate: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(gray)
	spot := geometry.BrightSpot{X: maxLoc.X, Y: maxLoc.Y, Intensity: uint8(maxVal)}
	debug.Spot(spot.X, spot.Y, spot.Intensity)

	annotate(&mat, spot.Point(), geometry.FrameCenter(w, h))
	view, err := RGBAFromMat(mat)
	if err != nil {
		return spot, nil, fmt.Errorf("locate: debug frame: %w", err)
	}
	return spot, view, nil
}

// annotate draws the spot marker and one vertical and one horizontal guide
// through the frame centre.
func annotate(img *gocv.Mat, spot, center image.Point) {
	w, h := img.Cols(), img.Rows()
	gocv.Circle(img, spot, markerRadius, MarkerColor, markerThickness)
	gocv.Line(img, image.Pt(center.X, 0), image.Pt(center.X, h), MarkerColor, markerThickness)
	gocv.Line(img, image.Pt(0, center.Y), image.Pt(w, center.Y), MarkerColor, markerThickness)
}
