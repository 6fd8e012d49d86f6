package energylimit

import (
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/curve"
)

// DefaultRecalcExponentThreshold is the exponent change that forces the
// cached exponential term to be recomputed.
const DefaultRecalcExponentThreshold = 1e-8

// Kind selects the closed-form solution used by a Solver.
type Kind int

const (
	ChargingNoLoss Kind = iota
	ChargingWithLoss
	DischargingNoLoss
	DischargingWithLoss
)

// KindFor returns the solver kind for a direction and loss setting.
func KindFor(dir curve.Direction, losses bool) Kind {
	switch {
	case dir == curve.Charging && !losses:
		return ChargingNoLoss
	case dir == curve.Charging:
		return ChargingWithLoss
	case !losses:
		return DischargingNoLoss
	default:
		return DischargingWithLoss
	}
}

// Direction of the walk performed for k.
func (k Kind) Direction() curve.Direction {
	if k == DischargingNoLoss || k == DischargingWithLoss {
		return curve.Discharging
	}
	return curve.Charging
}

// Lossy reports whether k accounts for battery efficiency.
func (k Kind) Lossy() bool { return k == ChargingWithLoss || k == DischargingWithLoss }

func (k Kind) String() string {
	switch k {
	case ChargingNoLoss:
		return "charging_no_loss"
	case ChargingWithLoss:
		return "charging_with_loss"
	case DischargingNoLoss:
		return "discharging_no_loss"
	case DischargingWithLoss:
		return "discharging_with_loss"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Solver integrates SOC over the active segment of a SOC vs P2 curve.
//
// On a segment P2 = a*soc + b. Without losses dE/dt = P2, with losses
// dE/dt = (c*P2 + d)*P2 where (c, d) is the battery efficiency line. Both
// have exact solutions, so SOCAt and TimeToSOC never iterate.
//
// A Solver caches per segment coefficients and the last exponential term.
// It is a plain value and copies are independent.
type Solver struct {
	kind            Kind
	socToEnergy     float64
	effA, effB      float64
	recalcThreshold float64

	segs      []curve.LineSegment
	zeroSlope float64
	changed   bool
	index     int
	refIndex  int

	flat       bool
	a, b       float64
	A, B, C, D float64
	z          float64
	prevExp    float64
	expTerm    float64
}

// NewSolver builds a solver for a battery of sizeKWh following c. eff is
// the efficiency line for the solver direction and is ignored by the
// no-loss kinds. A zero recalcThreshold selects the default.
func NewSolver(kind Kind, sizeKWh float64, eff curve.LineSegment, c curve.SOCvsP2, recalcThreshold float64) (Solver, error) {
	if !(sizeKWh > 0) {
		return Solver{}, fmt.Errorf("new solver: %w: %g", ErrBatterySize, sizeKWh)
	}
	if c.IsZero() {
		return Solver{}, fmt.Errorf("new solver: %w", ErrNoSegment)
	}
	if recalcThreshold <= 0 {
		recalcThreshold = DefaultRecalcExponentThreshold
	}
	s := Solver{
		kind:            kind,
		socToEnergy:     sizeKWh / 100,
		effA:            eff.A,
		effB:            eff.B,
		recalcThreshold: recalcThreshold,
		refIndex:        -1,
		prevExp:         -1,
		expTerm:         math.Exp(-1),
	}
	s.SetCurve(c)
	return s, nil
}

// Kind returns the solver variant.
func (s *Solver) Kind() Kind { return s.kind }

// SOCToEnergy is the energy in kWh of one SOC percent.
func (s *Solver) SOCToEnergy() float64 { return s.socToEnergy }

// SetCurve replaces the curve and invalidates cached coefficients.
func (s *Solver) SetCurve(c curve.SOCvsP2) {
	s.segs = c.Segments()
	s.zeroSlope = c.ZeroSlope()
	s.changed = true
}

// Seek selects the first segment whose upper bound is at or above soc.
func (s *Solver) Seek(soc float64) bool {
	s.index = -1
	for i, seg := range s.segs {
		if soc <= seg.XUB {
			s.index = i
			break
		}
	}
	return s.index >= 0
}

// Advance moves to the next segment in the solver direction.
func (s *Solver) Advance() bool {
	if s.kind.Direction() == curve.Charging {
		s.index++
		return s.index < len(s.segs)
	}
	s.index--
	return s.index >= 0
}

// Bounds returns the SOC range of the active segment.
func (s *Solver) Bounds() (lb, ub float64) {
	seg := s.segs[s.index]
	return seg.XLB, seg.XUB
}

func (s *Solver) refresh() bool {
	if s.refIndex == s.index && !s.changed {
		return false
	}
	s.changed = false
	s.refIndex = s.index
	seg := s.segs[s.index]
	s.a, s.b = seg.A, seg.B
	s.A = s.a / s.socToEnergy
	s.flat = math.Abs(s.a) < s.zeroSlope
	if s.kind.Lossy() {
		s.B = s.b
		s.C = s.effA * s.a / s.socToEnergy
		s.D = s.effA*s.b + s.effB
		s.z = s.B*s.C - s.A*s.D
	}
	return true
}

func (s *Solver) exponent() float64 {
	if s.kind.Lossy() {
		return s.z
	}
	return s.A
}

// SOCAt returns the SOC after dtHrs on the active segment starting at soc0.
func (s *Solver) SOCAt(dtHrs, soc0 float64) float64 {
	if s.refresh() {
		s.prevExp = s.exponent() * dtHrs
		s.expTerm = math.Exp(s.prevExp)
	}
	p2 := s.a*soc0 + s.b

	if !s.kind.Lossy() {
		if s.flat {
			return soc0 + p2*dtHrs/s.socToEnergy
		}
		s.cacheExp(s.A * dtHrs)
		return (s.expTerm*p2 - s.b) / s.a
	}

	e0 := soc0 * s.socToEnergy
	eff0 := s.C*e0 + s.D
	if s.flat {
		return soc0 + eff0*p2*dtHrs/s.socToEnergy
	}
	s.cacheExp(s.z * dtHrs)
	x := s.expTerm * eff0 / (s.A*e0 + s.B)
	e1 := (x*s.B - s.D) / (s.C - x*s.A)
	return e1 / s.socToEnergy
}

func (s *Solver) cacheExp(cur float64) {
	if math.Abs(s.prevExp-cur) > s.recalcThreshold {
		s.prevExp = cur
		s.expTerm = math.Exp(cur)
	}
}

// TimeToSOC returns the hours needed to move from soc0 to soc1 on the
// active segment.
func (s *Solver) TimeToSOC(soc0, soc1 float64) float64 {
	s.refresh()
	p2 := s.a*soc0 + s.b

	if !s.kind.Lossy() {
		if s.flat {
			return (soc1 - soc0) * s.socToEnergy / p2
		}
		return math.Log((s.a*soc1+s.b)/p2) / s.A
	}

	e0 := soc0 * s.socToEnergy
	eff0 := s.C*e0 + s.D
	if s.flat {
		return (soc1 - soc0) * s.socToEnergy / (p2 * eff0)
	}
	e1 := soc1 * s.socToEnergy
	p2e0 := s.A*e0 + s.B
	p2e1 := s.A*e1 + s.B
	eff1 := s.C*e1 + s.D
	return math.Log((eff1*p2e0)/(eff0*p2e1)) / s.z
}
