package transition

import (
	"errors"
	"math"
)

// ErrSegmentOverrun is returned when a transition runs past its last criterion.
var ErrSegmentOverrun = errors.New("transition ran past its final from_final_X criterion")

const (
	// reachTolerance absorbs rounding when the final criterion lands exactly on the target.
	reachTolerance = 1e-6
	// timeTolerance is the slack in seconds for segment and interval ends.
	timeTolerance = 1e-5
	// slopeTolerance is the |slope| below which the exact arrival time is not solved.
	slopeTolerance = 1e-5
)

// runner tracks the progress of one running transition.
type runner struct {
	seg       int
	segStartT float64
	segStartX float64
	lastEndT  float64
	targetRef float64
}

type segmentIntegral struct {
	area     float64
	duration float64
	endT     float64
	endX     float64
	status   Status
}

func (r *runner) init(t, x, targetRef float64, intr interruption, justCrossedZero bool, n int) {
	r.segStartT = t
	r.lastEndT = t
	r.segStartX = x
	r.targetRef = targetRef
	switch {
	case justCrossedZero:
		r.seg = n - 1
	case intr == interruptedOpposite:
		r.seg = 1
	case intr == interruptedSame:
		r.seg = 2
	default:
		r.seg = 0
	}
}

// integrate walks d from the end of the previous interval toward t1 and
// stops at t1, at the target, or at an interruption.
func (r *runner) integrate(d *Definition, target, t1 float64, willCrossZero bool) (segmentIntegral, error) {
	up := d.TowardPosInf()
	start := r.lastEndT
	c := d.criteria[r.seg]
	startX := r.segStartX + c.Slope*(start-r.segStartT)

	var deviationExceeded, passedTarget bool
	if up {
		deviationExceeded = target >= r.targetRef+c.DeviationLimit
		passedTarget = startX >= target+d.xDeadband
	} else {
		deviationExceeded = target <= r.targetRef-c.DeviationLimit
		passedTarget = startX <= target-d.xDeadband
	}
	if passedTarget || (deviationExceeded && c.InterruptOnDeviation) {
		st := InterruptedSameDirection
		if passedTarget {
			st = InterruptedOppositeDirection
		}
		return segmentIntegral{endT: start, endX: startX, status: st}, nil
	}
	if !c.InterruptOnDeviation {
		r.targetRef = target
	}
	if math.Abs(startX-target) <= d.xDeadband {
		return segmentIntegral{endT: start, endX: startX, status: ReachedTargetNotNow}, nil
	}
	if willCrossZero {
		target = 0
	}

	var out segmentIntegral
	for {
		start = r.lastEndT
		c = d.criteria[r.seg]
		startX = r.segStartX + c.Slope*(start-r.segStartT)

		var endT, endX float64
		movedPast := false
		switch c.Type {
		case TimeDelay:
			endT = r.segStartT + c.Value
			endX = r.segStartX + c.Slope*c.Value
		case DeltaX:
			endT = r.segStartT + math.Abs(c.Value/c.Slope)
			if up {
				endX = r.segStartX + c.Value
			} else {
				endX = r.segStartX - c.Value
			}
		case FromFinalX:
			// never true on the last criterion: the deadband checks above return first
			if up {
				endX = target - c.Value
				movedPast = startX > endX+reachTolerance
			} else {
				endX = target + c.Value
				movedPast = startX < endX-reachTolerance
			}
			if movedPast {
				endT, endX = start, startX
			} else {
				endT = r.segStartT + math.Abs((math.Abs(r.segStartX-target)-c.Value)/c.Slope)
			}
		}

		var reachesTarget bool
		if up {
			reachesTarget = endX > target-reachTolerance
		} else {
			reachesTarget = endX < target+reachTolerance
		}
		reachesNow := t1 < endT+timeTolerance

		if !movedPast && (reachesTarget || reachesNow) {
			nowX := r.segStartX + c.Slope*(t1-r.segStartT)
			var targetFirst bool
			if up {
				targetFirst = target <= nowX
			} else {
				targetFirst = target >= nowX
			}
			status := ReachedNowNotTarget
			endIntT, endIntX := t1, nowX
			if targetFirst {
				status = ReachedTargetNotNow
				if willCrossZero {
					status = CrossingZeroNow
				}
				endIntX = target
				if math.Abs(c.Slope) > slopeTolerance {
					endIntT = r.segStartT + math.Abs((r.segStartX-target)/c.Slope)
				} else {
					endIntT = math.Min(t1, endT)
				}
			}
			out.duration += endIntT - start
			out.area += 0.5 * (startX + endIntX) * (endIntT - start)
			r.lastEndT = endIntT
			// the final criterion tracks a moving target and is never left
			if math.Abs(endT-endIntT) < timeTolerance && r.seg < len(d.criteria)-1 {
				r.segStartT = endT
				r.segStartX = endX
				r.seg++
			}
			out.endT, out.endX, out.status = endIntT, endIntX, status
			return out, nil
		}

		out.duration += endT - start
		out.area += 0.5 * (startX + endX) * (endT - start)
		r.lastEndT = endT
		r.segStartT = endT
		r.segStartX = endX
		r.seg++
		if r.seg >= len(d.criteria) {
			return out, ErrSegmentOverrun
		}
	}
}
