package geometry

import "image"

// Horizontal is the horizontal correction derived from a bright spot.
type Horizontal string

// Vertical is the vertical correction derived from a bright spot.
type Vertical string

const (
	Left    Horizontal = "LEFT"
	Right   Horizontal = "RIGHT"
	HCenter Horizontal = "CENTER"
	Up      Vertical   = "UP"
	Down    Vertical   = "DOWN"
	VCenter Vertical   = "CENTER"
)

// BrightSpot is the peak-intensity pixel of a frame, relative to the frame origin.
type BrightSpot struct {
	X         int   `json:"x"`
	Y         int   `json:"y"`
	Intensity uint8 `json:"intensity"`
}

// Point returns the spot as an image.Point.
func (s BrightSpot) Point() image.Point {
	return image.Pt(s.X, s.Y)
}

// FrameCenter returns the center pixel of a width x height frame
// (integer division, so 512 -> 256).
func FrameCenter(width, height int) image.Point {
	return image.Pt(width/2, height/2)
}

// Classify maps a spot to a direction pair. The coarse side is decided first
// (x >= cx is RIGHT, y >= cy is DOWN); a coordinate strictly inside the
// dead zone (c-t, c+t) then overrides that axis to CENTER.
func Classify(spot, center image.Point, tolerance int) (Horizontal, Vertical) {
	h := Left
	if spot.X >= center.X {
		h = Right
	}
	v := Up
	if spot.Y >= center.Y {
		v = Down
	}

	if center.X-tolerance < spot.X && spot.X < center.X+tolerance {
		h = HCenter
	}
	if center.Y-tolerance < spot.Y && spot.Y < center.Y+tolerance {
		v = VCenter
	}
	return h, v
}

// Centered reports whether both axes are inside the dead zone.
func Centered(h Horizontal, v Vertical) bool {
	return h == HCenter && v == VCenter
}
