package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrPolyDegree is returned for an unsupported polynomial degree.
var ErrPolyDegree = errors.New("polynomial degree must be 1 to 4")

// PolyDegree is the degree of a PolySegment.
type PolyDegree int

const (
	First PolyDegree = iota + 1
	Second
	Third
	Fourth
)

// PolySegment holds up to five coefficients, highest power first:
// degree 1 is a*x+b, degree 4 is a*x^4+b*x^3+c*x^2+d*x+e.
type PolySegment struct {
	XLB    float64    `json:"x_lb"`
	XUB    float64    `json:"x_ub"`
	Degree PolyDegree `json:"degree"`
	A      float64    `json:"a"`
	B      float64    `json:"b"`
	C      float64    `json:"c"`
	D      float64    `json:"d"`
	E      float64    `json:"e"`
}

func (s PolySegment) eval(x float64) float64 {
	switch s.Degree {
	case First:
		return s.A*x + s.B
	case Second:
		return s.A*x*x + s.B*x + s.C
	case Third:
		x2 := x * x
		return s.A*x2*x + s.B*x2 + s.C*x + s.D
	default:
		x2 := x * x
		x3 := x2 * x
		return s.A*x3*x + s.B*x3 + s.C*x2 + s.D*x + s.E
	}
}

// PolyFunction is an immutable piecewise polynomial of x. Lookups are
// stateless so one value can be shared by many batteries.
type PolyFunction struct {
	name       string
	tolerance  float64
	takeAbsOfX bool
	segments   []PolySegment
}

// NewPolyFunction validates and sorts segs. x values outside the covered
// range are clamped to the nearest bound.
func NewPolyFunction(name string, tolerance float64, takeAbsOfX bool, segs []PolySegment) (PolyFunction, error) {
	if len(segs) == 0 {
		return PolyFunction{}, fmt.Errorf("%s: %w", name, ErrEmptyCurve)
	}
	sorted := make([]PolySegment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].XLB < sorted[j].XLB })
	for i, s := range sorted {
		if s.Degree < First || s.Degree > Fourth {
			return PolyFunction{}, fmt.Errorf("%s segment %d: %w", name, i, ErrPolyDegree)
		}
		if !(s.XLB < s.XUB) {
			return PolyFunction{}, fmt.Errorf("%s segment %d: %w", name, i, ErrSegmentOrder)
		}
	}
	return PolyFunction{name: name, tolerance: tolerance, takeAbsOfX: takeAbsOfX, segments: sorted}, nil
}

// Name returns the label given at construction.
func (p PolyFunction) Name() string { return p.name }

// Segments returns a copy of the segments.
func (p PolyFunction) Segments() []PolySegment {
	out := make([]PolySegment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Value evaluates the function at x, clamping x to the covered range. Use
// Lookup to tell when it was clamped.
func (p PolyFunction) Value(x float64) float64 {
	v, _ := p.Lookup(x)
	return v
}

// Lookup evaluates the function at x and reports whether x was inside the
// covered range.
func (p PolyFunction) Lookup(x float64) (float64, bool) {
	if p.takeAbsOfX {
		x = math.Abs(x)
	}
	first, last := p.segments[0], p.segments[len(p.segments)-1]
	if x < first.XLB {
		return first.eval(first.XLB), false
	}
	if x > last.XUB {
		return last.eval(last.XUB), false
	}
	for _, s := range p.segments {
		if s.XLB-p.tolerance <= x && x <= s.XUB+p.tolerance {
			return s.eval(x), true
		}
	}
	// x falls in a gap between segments
	for _, s := range p.segments {
		if x < s.XLB {
			return s.eval(s.XLB), false
		}
	}
	return last.eval(last.XUB), false
}

// PiecewiseLinear builds first-degree segments through the points (x[i], y[i]).
// x must be strictly increasing.
func PiecewiseLinear(name string, tolerance float64, x, y []float64) (PolyFunction, error) {
	if len(x) != len(y) || len(x) < 2 {
		return PolyFunction{}, fmt.Errorf("%s: need at least two matching points, got %d and %d", name, len(x), len(y))
	}
	segs := make([]PolySegment, 0, len(x)-1)
	for i := 1; i < len(x); i++ {
		if !(x[i-1] < x[i]) {
			return PolyFunction{}, fmt.Errorf("%s point %d: %w", name, i, ErrSegmentOrder)
		}
		a := (y[i] - y[i-1]) / (x[i] - x[i-1])
		b := y[i] - a*x[i]
		segs = append(segs, PolySegment{XLB: x[i-1], XUB: x[i], Degree: First, A: a, B: b})
	}
	return NewPolyFunction(name, tolerance, false, segs)
}
