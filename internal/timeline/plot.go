package timeline

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
)

var axisColors = map[actuator.Axis]color.RGBA{
	actuator.Tilt:   {R: 220, G: 120, B: 0, A: 255},
	actuator.Rotate: {R: 0, G: 90, B: 200, A: 255},
}

// SavePlot writes a PNG (or any format gonum/plot infers from the file
// extension) of the axis angles against the frame number.
func SavePlot(path, runID string, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("plot run %s: no keyframes", runID)
	}

	p := plot.New()
	p.Title.Text = "Keyframes, run " + runID
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "angle (deg)"
	p.Add(plotter.NewGrid())

	series := Series(entries)
	for _, axis := range actuator.Axes {
		pts := series[axis]
		if len(pts) == 0 {
			continue
		}
		xys := make(plotter.XYs, 0, len(pts))
		for _, pt := range pts {
			xys = append(xys, plotter.XY{X: float64(pt.Frame), Y: pt.Deg})
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", axis, err)
		}
		line.Color = axisColors[axis]
		line.Width = vg.Points(1)
		points.GlyphStyle.Color = axisColors[axis]
		points.GlyphStyle.Radius = vg.Points(2)
		p.Add(line, points)
		p.Legend.Add(string(axis), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
