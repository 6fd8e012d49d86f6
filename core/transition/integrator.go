package transition

import (
	"errors"
	"fmt"
	"math"
)

// ErrTimeOrder is returned when an interval does not have t0 < t1.
var ErrTimeOrder = errors.New("interval must satisfy t0 < t1")

// maxRecordedStatuses bounds the per-call status history kept for debugging.
const maxRecordedStatuses = 8

// Integral is the result of one Next call.
type Integral struct {
	// AvgX is AreaXsec / TimeSec.
	AvgX     float64 `json:"avg_x"`
	AreaXsec float64 `json:"area_x_sec"`
	TimeSec  float64 `json:"time_sec"`
}

// Integrator delays and slews X toward a moving target using the ramp
// behaviour in its Table. It holds only value state plus the shared
// *Table, so copying an Integrator yields an independent machine.
//
// An Integrator is not safe for concurrent use and calls to Next must be
// contiguous in time.
type Integrator struct {
	table *Table

	x                     float64
	targetRef             float64
	state                 State
	xSet                  bool
	targetWhileTurningOff bool
	run                   runner
	statuses              [maxRecordedStatuses]Status
	nStatuses             int
}

// NewIntegrator returns an integrator in the off state.
func NewIntegrator(t *Table) Integrator {
	return Integrator{table: t, state: Off}
}

// X is the value at the end of the last interval.
func (in *Integrator) X() float64 { return in.x }

// State is the current mode.
func (in *Integrator) State() State { return in.state }

// Table returns the shared transition table.
func (in *Integrator) Table() *Table { return in.table }

// Statuses lists the transition outcomes of the last Next call.
func (in *Integrator) Statuses() []Status {
	out := make([]Status, in.nStatuses)
	copy(out, in.statuses[:in.nStatuses])
	return out
}

func (in *Integrator) record(s Status) {
	if in.nStatuses < maxRecordedStatuses {
		in.statuses[in.nStatuses] = s
		in.nStatuses++
	}
}

// SetInitState seeds X once and enters on_steady_state. Later calls, and
// values inside the off deadband, are ignored.
func (in *Integrator) SetInitState(x float64) {
	if in.xSet || math.Abs(x) <= in.table.cfg.OffDeadband {
		return
	}
	in.xSet = true
	in.targetWhileTurningOff = false
	in.x = x
	in.targetRef = x
	in.state = OnSteadyState
}

// Next advances the machine from t0 to t1 with a target that changes at t0
// and returns the time-weighted average of X over the interval.
func (in *Integrator) Next(target, t0, t1 float64) (Integral, error) {
	if !(t0 < t1) {
		return Integral{}, fmt.Errorf("integrate [%g, %g]: %w", t0, t1, ErrTimeOrder)
	}
	cfg := in.table.cfg

	targetChanged := false
	if cfg.TargetDeadband < math.Abs(target-in.targetRef) || math.Abs(in.targetRef) <= cfg.TargetDeadband {
		targetChanged = true
		in.targetRef = target
	}
	if in.state == Off && in.targetWhileTurningOff {
		in.targetWhileTurningOff = false
		targetChanged = true
	}

	towardPos := in.x < target
	next, changed := in.state, false
	switch {
	case in.state == PosToOff || in.state == NegToOff:
		// turning off always completes; remember a non-zero request for later
		in.targetWhileTurningOff = cfg.OffDeadband < math.Abs(target)
		target = 0
	case targetChanged:
		next, changed, target = in.selectState(target, towardPos)
	}

	intr := notInterrupted
	if changed && in.state.IsDirectional() {
		if in.state.towardPosInf() != next.towardPosInf() {
			intr = interruptedOpposite
		} else {
			intr = interruptedSame
		}
	}
	if changed {
		in.state = next
	}

	t, x0 := t0, in.x
	var area, duration float64
	in.nStatuses = 0

	for {
		willCrossZero, justCrossedZero := false, false
		if cfg.Unique {
			switch in.state {
			case PosMovingTowardNegInf:
				if x0 < cfg.OffDeadband {
					changed, intr, justCrossedZero = true, notInterrupted, true
					in.state = NegMovingTowardNegInf
				} else {
					willCrossZero = target < 0
				}
			case NegMovingTowardPosInf:
				if -cfg.OffDeadband < x0 {
					changed, intr, justCrossedZero = true, notInterrupted, true
					in.state = PosMovingTowardPosInf
				} else {
					willCrossZero = target > 0
				}
			}
		}

		if changed && in.state.IsDirectional() {
			in.run.init(t, x0, in.targetRef, intr, justCrossedZero, len(in.table.def(in.state).criteria))
			intr = notInterrupted
		}
		changed = false
		done := true

		switch in.state {
		case Off:
			duration += t1 - t
			t, x0 = t1, 0
		case OnSteadyState:
			duration += t1 - t
			area += x0 * (t1 - t)
			t = t1
		default:
			seg, err := in.run.integrate(in.table.def(in.state), target, t1, willCrossZero)
			if err != nil {
				return Integral{}, fmt.Errorf("%s: %w", in.state, err)
			}
			duration += seg.duration
			area += seg.area
			in.record(seg.status)

			settle := false
			switch seg.status {
			case ReachedTargetNotNow:
				duration += t1 - seg.endT
				area += seg.endX * (t1 - seg.endT)
				settle = true
			case InterruptedOppositeDirection, InterruptedSameDirection:
				intr = interruptedSame
				if seg.status == InterruptedOppositeDirection {
					intr = interruptedOpposite
				}
				changed, done = true, false
				in.state = in.table.moving(0 < seg.endX, seg.endX < target)
			case CrossingZeroNow:
				done = false
			}
			t, x0 = seg.endT, seg.endX

			if settle {
				if in.state == PosToOff || in.state == NegToOff {
					in.state = Off
				} else {
					in.state = OnSteadyState
				}
			}
		}
		if done {
			break
		}
	}

	in.x = x0
	return Integral{AvgX: area / duration, AreaXsec: area, TimeSec: duration}, nil
}

// selectState picks the state a changed target asks for. The returned
// target is forced to 0 when the request falls inside the off deadband.
func (in *Integrator) selectState(target float64, towardPos bool) (State, bool, float64) {
	cfg := in.table.cfg
	switch {
	case in.state == Off:
		if cfg.OffDeadband < target {
			return OffToPos, true, target
		}
		if target < -cfg.OffDeadband {
			return OffToNeg, true, target
		}
		return Off, false, target
	case math.Abs(target) < cfg.OffDeadband:
		if 0 <= in.x {
			return PosToOff, true, 0
		}
		return NegToOff, true, 0
	case in.state == OnSteadyState:
		return in.table.moving(0 <= in.x, towardPos), true, target
	}
	if s, ok := in.table.reversal(in.state, towardPos); ok {
		return s, true, target
	}
	return in.state, false, target
}
