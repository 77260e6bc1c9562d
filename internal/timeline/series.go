package timeline

import (
	"sort"

	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
	"github.com/cjeanneret/SolarGo/internal/logic/geometry"
)

// Point is one keyframe of an axis, in degrees.
type Point struct {
	Frame int
	Deg   float64
}

// Series splits entries per axis, ordered by frame, converted to degrees.
func Series(entries []Entry) map[actuator.Axis][]Point {
	out := make(map[actuator.Axis][]Point, len(actuator.Axes))
	for _, e := range entries {
		out[e.Axis] = append(out[e.Axis], Point{Frame: e.Frame, Deg: geometry.Degrees(e.Radians)})
	}
	for _, pts := range out {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Frame < pts[j].Frame })
	}
	return out
}

// Frames returns the distinct frame numbers of entries in ascending order.
func Frames(entries []Entry) []int {
	seen := make(map[int]bool)
	var frames []int
	for _, e := range entries {
		if !seen[e.Frame] {
			seen[e.Frame] = true
			frames = append(frames, e.Frame)
		}
	}
	sort.Ints(frames)
	return frames
}
