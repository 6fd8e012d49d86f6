package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyCurve is returned when a curve has no segments.
	ErrEmptyCurve = errors.New("curve has no segments")
	// ErrCurveBounds is returned when a SOC curve does not extend strictly below 0 and above 100.
	ErrCurveBounds = errors.New("curve must satisfy min_soc < 0 < 100 < max_soc")
	// ErrSegmentOrder is returned when a segment has x_LB >= x_UB.
	ErrSegmentOrder = errors.New("segment lower bound must be below upper bound")
	// ErrOverlap is returned when two segments overlap.
	ErrOverlap = errors.New("segments overlap")
	// ErrGap is returned when consecutive segments leave part of the domain uncovered.
	ErrGap = errors.New("segments leave a gap")
)

// contiguityTolerance is the largest gap or overlap between neighbouring
// segments that is treated as a shared boundary.
const contiguityTolerance = 1e-6

// Direction selects the charging or discharging side of a curve.
type Direction int

const (
	Charging Direction = iota
	Discharging
)

func (d Direction) String() string {
	if d == Discharging {
		return "discharging"
	}
	return "charging"
}

// LineSegment is y = A*x + B on [XLB, XUB].
type LineSegment struct {
	XLB float64 `json:"x_lb"`
	XUB float64 `json:"x_ub"`
	A   float64 `json:"a"`
	B   float64 `json:"b"`
}

// Y evaluates the segment line at x. x is not range checked.
func (s LineSegment) Y(x float64) float64 { return s.A*x + s.B }

// Contains reports whether x lies in [XLB, XUB].
func (s LineSegment) Contains(x float64) bool { return s.XLB <= x && x <= s.XUB }

func (s LineSegment) String() string {
	return fmt.Sprintf("[%g, %g] a=%g b=%g", s.XLB, s.XUB, s.A, s.B)
}

// SOCvsP2 is an immutable piecewise-linear P2 (kW) vs SOC (%) curve.
// Segments are sorted by XLB and cover a domain wider than [0, 100].
type SOCvsP2 struct {
	segments  []LineSegment
	zeroSlope float64
}

// NewSOCvsP2 validates and sorts segs. zeroSlope is the |a| below which a
// segment is integrated as flat.
func NewSOCvsP2(segs []LineSegment, zeroSlope float64) (SOCvsP2, error) {
	if len(segs) == 0 {
		return SOCvsP2{}, ErrEmptyCurve
	}
	if zeroSlope < 0 || math.IsNaN(zeroSlope) {
		return SOCvsP2{}, fmt.Errorf("zero slope threshold %g must be non-negative", zeroSlope)
	}
	sorted := make([]LineSegment, len(segs))
	copy(sorted, segs)
	sortSegments(sorted)

	for i, s := range sorted {
		if !(s.XLB < s.XUB) {
			return SOCvsP2{}, fmt.Errorf("segment %d %s: %w", i, s, ErrSegmentOrder)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		switch {
		case s.XLB < prev.XUB-contiguityTolerance:
			return SOCvsP2{}, fmt.Errorf("segments %d and %d: %w", i-1, i, ErrOverlap)
		case s.XLB > prev.XUB+contiguityTolerance:
			return SOCvsP2{}, fmt.Errorf("segments %d and %d: %w", i-1, i, ErrGap)
		}
	}
	minSOC, maxSOC := sorted[0].XLB, sorted[len(sorted)-1].XUB
	if !(minSOC < 0 && 100 < maxSOC) {
		return SOCvsP2{}, fmt.Errorf("domain [%g, %g]: %w", minSOC, maxSOC, ErrCurveBounds)
	}
	return SOCvsP2{segments: sorted, zeroSlope: zeroSlope}, nil
}

// MustSOCvsP2 is like NewSOCvsP2 but panics on error. Used for built-in tables.
func MustSOCvsP2(segs []LineSegment, zeroSlope float64) SOCvsP2 {
	c, err := NewSOCvsP2(segs, zeroSlope)
	if err != nil {
		panic(err)
	}
	return c
}

func sortSegments(segs []LineSegment) {
	sort.Slice(segs, func(i, j int) bool { return segs[i].XLB < segs[j].XLB })
}

// Len returns the number of segments.
func (c SOCvsP2) Len() int { return len(c.segments) }

// Segment returns segment i.
func (c SOCvsP2) Segment(i int) LineSegment { return c.segments[i] }

// Segments returns a copy of the segments.
func (c SOCvsP2) Segments() []LineSegment {
	out := make([]LineSegment, len(c.segments))
	copy(out, c.segments)
	return out
}

// ZeroSlope returns the flat-segment threshold.
func (c SOCvsP2) ZeroSlope() float64 { return c.zeroSlope }

// IsZero reports whether c was never constructed.
func (c SOCvsP2) IsZero() bool { return len(c.segments) == 0 }

// IndexOf returns the first segment with soc <= XUB, or -1.
func (c SOCvsP2) IndexOf(soc float64) int {
	for i, s := range c.segments {
		if soc <= s.XUB {
			return i
		}
	}
	return -1
}

// P2 evaluates the curve at soc, clamping to the outer segments.
func (c SOCvsP2) P2(soc float64) float64 {
	i := c.IndexOf(soc)
	if i < 0 {
		i = len(c.segments) - 1
	}
	return c.segments[i].Y(soc)
}

// Extreme returns the largest segment endpoint P2 for charging or the
// smallest one for discharging.
func (c SOCvsP2) Extreme(dir Direction) float64 {
	ext := math.Inf(-1)
	if dir == Discharging {
		ext = math.Inf(1)
	}
	for _, s := range c.segments {
		p0, p1 := s.Y(s.XLB), s.Y(s.XUB)
		if dir == Charging {
			ext = math.Max(ext, math.Max(p0, p1))
		} else {
			ext = math.Min(ext, math.Min(p0, p1))
		}
	}
	return ext
}

// Clip returns a copy of c with P2 capped at limit (charging) or floored at
// limit (discharging). Segments crossing the limit are split at the
// crossing and the clipped part is flattened.
func (c SOCvsP2) Clip(limit float64, dir Direction) SOCvsP2 {
	return SOCvsP2{segments: ClipSegments(c.segments, limit, dir), zeroSlope: c.zeroSlope}
}

// Mirror returns the sign-mirrored curve (P2 -> -P2) sharing the domain.
func (c SOCvsP2) Mirror() SOCvsP2 {
	out := make([]LineSegment, len(c.segments))
	for i, s := range c.segments {
		out[i] = LineSegment{XLB: s.XLB, XUB: s.XUB, A: -s.A, B: -s.B}
	}
	return SOCvsP2{segments: out, zeroSlope: c.zeroSlope}
}

// ClipSegments applies the split/flatten rule used by Clip to raw segments.
func ClipSegments(segs []LineSegment, limit float64, dir Direction) []LineSegment {
	out := make([]LineSegment, 0, len(segs)+2)
	for _, s := range segs {
		p0, p1 := s.Y(s.XLB), s.Y(s.XUB)
		cur := s
		if dir == Charging {
			switch {
			case limit <= p0 && limit <= p1:
				cur.A, cur.B = 0, limit
			case p0 < limit && limit < p1:
				x := (limit - s.B) / s.A
				cur.XUB = x
				out = append(out, LineSegment{XLB: x, XUB: s.XUB, A: 0, B: limit})
			case limit < p0 && p1 < limit:
				x := (limit - s.B) / s.A
				cur.XLB = x
				out = append(out, LineSegment{XLB: s.XLB, XUB: x, A: 0, B: limit})
			}
		} else {
			switch {
			case p0 <= limit && p1 <= limit:
				cur.A, cur.B = 0, limit
			case limit < p0 && p1 < limit:
				x := (limit - s.B) / s.A
				cur.XUB = x
				out = append(out, LineSegment{XLB: x, XUB: s.XUB, A: 0, B: limit})
			case p0 < limit && limit < p1:
				x := (limit - s.B) / s.A
				cur.XLB = x
				out = append(out, LineSegment{XLB: s.XLB, XUB: x, A: 0, B: limit})
			}
		}
		out = append(out, cur)
	}
	sortSegments(out)
	return out
}

// ZeroSlopeThreshold returns 0.9 of the smallest non-zero |a| in segs,
// floored at 0.01 kW per SOC percent.
func ZeroSlopeThreshold(segs []LineSegment) float64 {
	const floor = 0.01
	minSlope := math.Inf(1)
	for _, s := range segs {
		if a := math.Abs(s.A); a > 0 && a < minSlope {
			minSlope = a
		}
	}
	if math.IsInf(minSlope, 1) {
		// all flat
		return floor
	}
	if minSlope < floor {
		return floor
	}
	return 0.9 * minSlope
}
