package profiles

import (
	"fmt"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/model"
)

const voltageTolerance = 1e-4

// puVrmsPoints maps pu Vrms to per-unit P2 for each equipment level.
var puVrmsPoints = map[model.Level]struct{ x, y []float64 }{
	model.L1:   {x: []float64{0, 0.69, 0.7, 2.0}, y: []float64{0, 0, 0.7, 2.0}},
	model.L2:   {x: []float64{0, 0.34, 0.35, 0.94, 2.0}, y: []float64{0, 0, 0.373, 1, 1}},
	model.DCFC: {x: []float64{0, 0.79, 0.80, 1.20, 1.21, 2.0}, y: []float64{0, 0, 1, 1, 0, 0}},
}

// VoltageLimitFor returns the P2 ceiling (kW) as a function of pu Vrms for
// equipment of the given level delivering at most seP2LimitKW.
func VoltageLimitFor(level model.Level, seP2LimitKW float64) (curve.PolyFunction, error) {
	pts, ok := puVrmsPoints[level]
	if !ok {
		return curve.PolyFunction{}, fmt.Errorf("no pu Vrms data for level %s", level)
	}
	y := make([]float64, len(pts.y))
	for i, v := range pts.y {
		y[i] = v * seP2LimitKW
	}
	return curve.PiecewiseLinear(fmt.Sprintf("puVrms_vs_P2_%s", level), voltageTolerance, pts.x, y)
}
