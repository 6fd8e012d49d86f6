package export

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/evcharge/simulator"
)

// WriteHTML renders SOC, P1 and P2 against hours since the first step as an
// interactive line chart.
func WriteHTML(w io.Writer, title string, steps []simulator.Step) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (h)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "SOC (%) / power (kW)"}),
	)

	t0 := steps[0].TimeUnix - steps[0].TimeStepHrs*3600
	xAxis := make([]string, len(steps))
	soc := make([]opts.LineData, len(steps))
	p1 := make([]opts.LineData, len(steps))
	p2 := make([]opts.LineData, len(steps))
	for i, s := range steps {
		xAxis[i] = strconv.FormatFloat((s.TimeUnix-t0)/3600, 'f', 3, 64)
		soc[i] = opts.LineData{Value: s.SOC}
		p1[i] = opts.LineData{Value: s.P1KW}
		p2[i] = opts.LineData{Value: s.P2KW}
	}
	line.SetXAxis(xAxis).
		AddSeries("SOC", soc).
		AddSeries("P2", p2).
		AddSeries("P1", p1)
	return line.Render(w)
}
