package timeline

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
)

// RenderChart writes an HTML line chart of the axis angles of a run.
// assetsHost overrides where the echarts JavaScript is loaded from; empty
// keeps the library default.
func RenderChart(w io.Writer, run Run, entries []Entry, assetsHost string) error {
	frames := Frames(entries)
	series := Series(entries)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "SolarGo timeline",
			Width:      "100%",
			Height:     "480px",
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Keyframes",
			Subtitle: fmt.Sprintf("run=%s keyframes=%d %s", run.ID, len(frames), run.Termination),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "angle (deg)", NameLocation: "middle", NameGap: 40}),
	)

	index := make(map[int]int, len(frames))
	for i, f := range frames {
		index[f] = i
	}
	line.SetXAxis(frames)
	for _, axis := range actuator.Axes {
		data := make([]opts.LineData, len(frames))
		for i := range data {
			data[i] = opts.LineData{Value: "-"}
		}
		for _, pt := range series[axis] {
			data[index[pt.Frame]] = opts.LineData{Value: pt.Deg}
		}
		line.AddSeries(string(axis), data)
	}

	return line.Render(w)
}
