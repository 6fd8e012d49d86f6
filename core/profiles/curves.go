package profiles

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/model"
)

// ErrNoCurveData is returned when a chemistry has no measured curves.
var ErrNoCurveData = errors.New("no charge curve data")

// acTaperLimit is the SOC above which an AC curve is a single flat segment.
const acTaperLimit = 99.5

const (
	socFloor = -0.1
	socCeil  = 100.1
)

// SOCvsP2For returns the charging or discharging P2 vs SOC curve of ev on
// evse. The discharging curve is the sign mirror of the charging one.
func SOCvsP2For(dir curve.Direction, ev model.EV, evse model.EVSE) (curve.SOCvsP2, error) {
	c, err := ChargingCurve(ev, evse)
	if err != nil {
		return curve.SOCvsP2{}, err
	}
	if dir == curve.Discharging {
		return c.Mirror(), nil
	}
	return c, nil
}

// ChargingCurve builds the charging curve of ev on evse.
func ChargingCurve(ev model.EV, evse model.EVSE) (curve.SOCvsP2, error) {
	curves, ok := chargeCurves[ev.Chemistry]
	if !ok {
		return curve.SOCvsP2{}, fmt.Errorf("%s: %w", ev.Chemistry, ErrNoCurveData)
	}
	var segs []curve.LineSegment
	if evse.Level == model.DCFC {
		segs = dcfcSegments(curves, ev, evse)
	} else {
		var err error
		if segs, err = acSegments(curves, ev, evse); err != nil {
			return curve.SOCvsP2{}, err
		}
	}
	c, err := curve.NewSOCvsP2(segs, curve.ZeroSlopeThreshold(segs))
	if err != nil {
		return curve.SOCvsP2{}, fmt.Errorf("curve %s on %s: %w", ev.Type, evse.Type, err)
	}
	return c, nil
}

// acSegments charges flat at the AC rate until the 1C taper through the two
// highest SOC points drops below it.
func acSegments(curves []crateCurve, ev model.EV, evse model.EVSE) ([]curve.LineSegment, error) {
	var one *crateCurve
	for i := range curves {
		if curves[i].oneC() {
			one = &curves[i]
		}
	}
	if one == nil || len(one.points) < 2 {
		return nil, fmt.Errorf("%s 1C curve: %w", ev.Chemistry, ErrNoCurveData)
	}
	n := len(one.points)
	a, b := one.points[n-2], one.points[n-1]
	pA, pB := a.pu*ev.BatterySizeKWh, b.pu*ev.BatterySizeKWh
	m := (pA - pB) / (a.soc - b.soc)
	c := pA - m*a.soc

	ac := math.Min(ev.ACChargeRateKW, evse.PowerLimitKW)
	x := (ac - c) / m
	switch {
	case x <= socFloor:
		return nil, fmt.Errorf("%s on %s: AC rate %g kW above the taper", ev.Type, evse.Type, ac)
	case x < acTaperLimit:
		return []curve.LineSegment{
			{XLB: socFloor, XUB: x, A: 0, B: ac},
			{XLB: x, XUB: socCeil, A: m, B: c},
		}, nil
	}
	return []curve.LineSegment{{XLB: socFloor, XUB: socCeil, A: 0, B: ac}}, nil
}

// dcfcSegments interpolates between the C-rate curves bracketing the EVSE
// current limit, scales by battery size and clips at the EVSE power limit.
func dcfcSegments(curves []crateCurve, ev model.EV, evse model.EVSE) []curve.LineSegment {
	ah := ev.BatterySizeAh1C
	amps := evse.CurrentLimitA

	pts := curves[0].points
	if amps < curves[0].crate*ah {
		up, lo := curves[0], curves[len(curves)-1]
		for i := 1; i < len(curves); i++ {
			if curves[i].crate*ah < amps {
				up, lo = curves[i-1], curves[i]
				break
			}
		}
		w := (amps - lo.crate*ah) / (up.crate*ah - lo.crate*ah)
		socs := mergeSOC(up.points, lo.points)
		pts = make([]point, len(socs))
		for i, s := range socs {
			pts[i] = point{soc: s, pu: w*up.at(s) + (1-w)*lo.at(s)}
		}
	}

	size := ev.BatterySizeKWh
	segs := make([]curve.LineSegment, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		p0, p1 := pts[i-1], pts[i]
		m := (p1.pu - p0.pu) / (p1.soc - p0.soc)
		c := p1.pu - m*p1.soc
		segs = append(segs, curve.LineSegment{XLB: p0.soc, XUB: p1.soc, A: m * size, B: c * size})
	}
	segs[0].XLB = socFloor
	segs[len(segs)-1].XUB = socCeil
	return curve.ClipSegments(segs, evse.PowerLimitKW, curve.Charging)
}

func mergeSOC(a, b []point) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var s float64
		switch {
		case j >= len(b) || (i < len(a) && a[i].soc < b[j].soc):
			s = a[i].soc
			i++
		case i >= len(a) || b[j].soc < a[i].soc:
			s = b[j].soc
			j++
		default:
			s = a[i].soc
			i++
			j++
		}
		if n := len(out); n == 0 || s-out[n-1] > 1e-9 {
			out = append(out, s)
		}
	}
	return out
}
