package profiles

import (
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/model"
)

type effCoeffs struct {
	span       float64 // P2 range as a multiple of battery size
	chA, chB   float64
	disA, disB float64
}

var efficiencyCoeffs = map[model.Chemistry]effCoeffs{
	model.LTO: {span: 6, chA: -0.0078354, chB: 0.987448, disA: -0.0102411, disB: 1.0109224},
	model.LMO: {span: 4, chA: -0.0079286, chB: 0.9936637, disA: -0.0092091, disB: 1.005674},
	model.NMC: {span: 4, chA: -0.0053897, chB: 0.9908405, disA: -0.0062339, disB: 1.0088727},
}

// EfficiencyFor returns the P2 vs battery efficiency lines for a pack of
// sizeKWh. Slopes are given per unit of battery size.
func EfficiencyFor(chem model.Chemistry, sizeKWh float64) (curve.Efficiency, error) {
	c, ok := efficiencyCoeffs[chem]
	if !ok {
		return curve.Efficiency{}, fmt.Errorf("no efficiency data for %s", chem)
	}
	if !(sizeKWh > 0) {
		return curve.Efficiency{}, fmt.Errorf("efficiency for %s: battery size %g must be positive", chem, sizeKWh)
	}
	ch := curve.LineSegment{XLB: 0, XUB: c.span * sizeKWh, A: c.chA / sizeKWh, B: c.chB}
	dis := curve.LineSegment{XLB: -c.span * sizeKWh, XUB: 0, A: c.disA / sizeKWh, B: c.disB}
	return curve.Efficiency{
		Charging:    ch,
		Discharging: dis,
		ZeroSlope:   math.Min(curve.EfficiencyZeroSlope(ch.A), curve.EfficiencyZeroSlope(dis.A)),
	}, nil
}
