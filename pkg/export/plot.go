package export

import (
	"errors"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/kilianp07/evcharge/simulator"
)

// ErrNoSteps is returned when there is nothing to plot.
var ErrNoSteps = errors.New("no steps to plot")

// WritePNG renders SOC and P2 against hours since the first step as two
// stacked panels.
func WritePNG(w io.Writer, title string, steps []simulator.Step, width, height vg.Length) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}
	t0 := steps[0].TimeUnix - steps[0].TimeStepHrs*3600
	soc := make(plotter.XYs, len(steps))
	p1 := make(plotter.XYs, len(steps))
	p2 := make(plotter.XYs, len(steps))
	for i, s := range steps {
		h := (s.TimeUnix - t0) / 3600
		soc[i] = plotter.XY{X: h, Y: s.SOC}
		p1[i] = plotter.XY{X: h, Y: s.P1KW}
		p2[i] = plotter.XY{X: h, Y: s.P2KW}
	}

	top := plot.New()
	top.Title.Text = title
	top.Y.Label.Text = "SOC (%)"
	if err := addLine(top, "soc", soc, 0); err != nil {
		return err
	}

	bottom := plot.New()
	bottom.X.Label.Text = "time (h)"
	bottom.Y.Label.Text = "power (kW)"
	if err := addLine(bottom, "P2", p2, 1); err != nil {
		return err
	}
	if err := addLine(bottom, "P1", p1, 2); err != nil {
		return err
	}

	plots := [][]*plot.Plot{{top}, {bottom}}
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2,
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 2 * vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, color int) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Color = plotutil.Color(color)
	p.Add(l, plotter.NewGrid())
	p.Legend.Add(name, l)
	return nil
}
