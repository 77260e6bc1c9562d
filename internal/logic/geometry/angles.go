package geometry

import "math"

// Radians converts degrees to radians (the host actuator unit).
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// Degrees converts radians to degrees for logging/display.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// InBounds reports whether v lies in [min, max].
func InBounds(v, min, max float64) bool {
	return v >= min && v <= max
}

// Clamp limits a value to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
