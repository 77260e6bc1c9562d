package indicator

import (
	"errors"
	"testing"

	"github.com/cjeanneret/SolarGo/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls   []gpioCall
	failPin int
	failErr error
}

type gpioCall struct {
	op    string // "setup", "write"
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.failPin != 0 && pin == d.failPin {
		return d.failErr
	}
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, nil
}

func (d *recordingDriver) Close() error {
	return nil
}

func (d *recordingDriver) lastLevel(pin int) (gpio.Level, bool) {
	for i := len(d.calls) - 1; i >= 0; i-- {
		c := d.calls[i]
		if c.op == "write" && c.pin == pin {
			return c.level, true
		}
	}
	return gpio.Low, false
}

func TestNew_SetsUpAndClearsPins(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := New(drv, Config{ConvergedPin: 22, BoundPin: 23}); err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []gpioCall{
		{op: "setup", pin: 22},
		{op: "write", pin: 22, level: gpio.Low},
		{op: "setup", pin: 23},
		{op: "write", pin: 23, level: gpio.Low},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %+v", len(drv.calls), len(want), drv.calls)
	}
	for i, c := range want {
		if drv.calls[i] != c {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], c)
		}
	}
}

func TestNew_UnusedPinsIgnored(t *testing.T) {
	drv := &recordingDriver{}
	ind, err := New(drv, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ind.Show(true, true); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("expected no GPIO calls, got %+v", drv.calls)
	}
}

func TestShow(t *testing.T) {
	cases := []struct {
		converged, impossible bool
		wantConv, wantBound   gpio.Level
	}{
		{false, false, gpio.Low, gpio.Low},
		{true, false, gpio.High, gpio.Low},
		{false, true, gpio.Low, gpio.High},
		{true, true, gpio.High, gpio.High},
	}
	for _, tc := range cases {
		drv := &recordingDriver{}
		ind, _ := New(drv, Config{ConvergedPin: 5, BoundPin: 6})
		if err := ind.Show(tc.converged, tc.impossible); err != nil {
			t.Fatalf("Show: %v", err)
		}
		if got, _ := drv.lastLevel(5); got != tc.wantConv {
			t.Errorf("Show(%v, %v): converged pin = %v, want %v", tc.converged, tc.impossible, got, tc.wantConv)
		}
		if got, _ := drv.lastLevel(6); got != tc.wantBound {
			t.Errorf("Show(%v, %v): bound pin = %v, want %v", tc.converged, tc.impossible, got, tc.wantBound)
		}
	}
}

func TestOff(t *testing.T) {
	drv := &recordingDriver{}
	ind, _ := New(drv, Config{ConvergedPin: 5, BoundPin: 6})
	_ = ind.Show(true, true)
	if err := ind.Off(); err != nil {
		t.Fatalf("Off: %v", err)
	}
	for _, pin := range []int{5, 6} {
		if got, _ := drv.lastLevel(pin); got != gpio.Low {
			t.Errorf("pin %d = %v after Off, want Low", pin, got)
		}
	}
}

func TestShow_WriteError(t *testing.T) {
	drv := &recordingDriver{}
	ind, _ := New(drv, Config{ConvergedPin: 5, BoundPin: 6})
	drv.failPin = 6
	drv.failErr = errors.New("bus fault")

	err := ind.Show(true, true)
	if !errors.Is(err, drv.failErr) {
		t.Errorf("Show error = %v, want wrapped %v", err, drv.failErr)
	}
}

func TestShow_WithMockDriver(t *testing.T) {
	drv, _ := gpio.NewDriver(true)
	ind, err := New(drv, Config{ConvergedPin: 17, BoundPin: 27})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = ind.Show(true, false)
	if lvl, _ := drv.ReadPin(17); lvl != gpio.High {
		t.Errorf("converged pin = %v, want High", lvl)
	}
	if lvl, _ := drv.ReadPin(27); lvl != gpio.Low {
		t.Errorf("bound pin = %v, want Low", lvl)
	}
}
