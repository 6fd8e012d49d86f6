package curve

import "math"

// Efficiency relates converter-side power P2 to battery-side power P1:
// eff(P2) = a*P2 + b and P1 = eff(P2)*P2. Coefficients differ between
// charging (P2 >= 0) and discharging.
type Efficiency struct {
	Charging    LineSegment `json:"charging"`
	Discharging LineSegment `json:"discharging"`
	// ZeroSlope is the |a| below which the efficiency is treated as flat.
	ZeroSlope float64 `json:"zero_slope"`
}

// Line returns the efficiency line for dir.
func (e Efficiency) Line(dir Direction) LineSegment {
	if dir == Discharging {
		return e.Discharging
	}
	return e.Charging
}

// P1 converts an average P2 into battery-side P1 using the coefficients
// selected by the sign of p2.
func (e Efficiency) P1(p2 float64) float64 {
	l := e.Charging
	if p2 < 0 {
		l = e.Discharging
	}
	return (l.A*p2 + l.B) * p2
}

// E2 returns the converter-side energy over dtHrs that delivers e1 kWh to
// the battery. It solves E1 = (c*E2/dt + d)*E2 for E2.
func (e Efficiency) E2(e1, dtHrs float64, dir Direction) float64 {
	if e1 == 0 {
		return 0
	}
	l := e.Line(dir)
	c, d := l.A, l.B
	if math.Abs(c) < e.ZeroSlope {
		eff := c*(e1/dtHrs) + d
		return e1 / eff
	}
	x := c / dtHrs
	return (-d + math.Sqrt(d*d+4*x*e1)) / (2 * x)
}

// EfficiencyZeroSlope is the flat threshold for a single efficiency slope.
func EfficiencyZeroSlope(a float64) float64 {
	if math.Abs(a) < 1e-6 {
		return 1e-6
	}
	return 0.9 * math.Abs(a)
}
