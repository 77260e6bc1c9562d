package indicator

import (
	"fmt"

	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/gpio"
)

// Config holds the BCM pins of the status LEDs.
type Config struct {
	ConvergedPin int // lit while the panel faces the bright spot. 0 = not used.
	BoundPin     int // lit while the last tilt request was out of bounds. 0 = not used.
}

// Indicator drives the tracker status LEDs.
type Indicator struct {
	gpio gpio.Driver
	cfg  Config
}

// New configures the used pins as outputs and switches them off.
func New(g gpio.Driver, cfg Config) (*Indicator, error) {
	for _, pin := range []int{cfg.ConvergedPin, cfg.BoundPin} {
		if pin <= 0 {
			continue
		}
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("indicator: setup pin %d: %w", pin, err)
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("indicator: reset pin %d: %w", pin, err)
		}
	}
	return &Indicator{gpio: g, cfg: cfg}, nil
}

// Show sets both LEDs from the tracker state.
func (i *Indicator) Show(converged, impossible bool) error {
	debug.Trace("Indicator: converged=%v impossible=%v", converged, impossible)
	if err := i.write(i.cfg.ConvergedPin, converged); err != nil {
		return err
	}
	return i.write(i.cfg.BoundPin, impossible)
}

// Off switches every LED off.
func (i *Indicator) Off() error {
	return i.Show(false, false)
}

func (i *Indicator) write(pin int, on bool) error {
	if pin <= 0 {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := i.gpio.WritePin(pin, level); err != nil {
		return fmt.Errorf("indicator: write pin %d: %w", pin, err)
	}
	return nil
}
