package actuator

import (
	"fmt"
	"sync"
)

// Axis names a mechanical axis object of the tracked panel.
type Axis string

const (
	Tilt   Axis = "tilt"
	Rotate Axis = "rotate"
)

// Axes lists the panel axes in a stable order.
var Axes = []Axis{Tilt, Rotate}

// Actuator applies angles to the host's axis objects.
// Angles are in the host's native unit (radians). Implementations
// do not validate the value: bound checks belong to the caller.
type Actuator interface {
	SetAngle(axis Axis, radians float64) error
}

// ParseAxis converts a stored axis name back to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case Tilt, Rotate:
		return Axis(s), nil
	default:
		return "", fmt.Errorf("unknown axis %q", s)
	}
}

// Memory is an Actuator that only remembers the last angle of each axis.
// It stands in for the host when frames come from a replay directory.
type Memory struct {
	mu     sync.Mutex
	angles map[Axis]float64
}

func NewMemory() *Memory {
	return &Memory{angles: make(map[Axis]float64)}
}

func (m *Memory) SetAngle(axis Axis, radians float64) error {
	if _, err := ParseAxis(string(axis)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.angles[axis] = radians
	return nil
}

// Angle returns the last angle set on axis, in radians.
func (m *Memory) Angle(axis Axis) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.angles[axis]
}
