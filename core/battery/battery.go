// Package battery advances the state of charge of one battery per timestep.
package battery

import (
	"errors"
	"fmt"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/energylimit"
	"github.com/kilianp07/evcharge/core/transition"
)

var (
	// ErrTimeOrder is returned by Next when the interval is empty or reversed.
	ErrTimeOrder = errors.New("battery: previous time must be before current time")
	// ErrParams is returned by New for an inconsistent Params.
	ErrParams = errors.New("battery: invalid parameters")
)

// DefaultFullSOC is the SOC above which the battery takes no more charge.
const DefaultFullSOC = 99.8

// Params configures a Battery. The calculators and the transition table are
// built by the profile factory and may be shared between batteries.
type Params struct {
	SizeKWh        float64
	InitSOC        float64
	NeverDischarge bool
	FullSOC        float64
	EmptySOC       float64

	Efficiency  curve.Efficiency
	Charging    energylimit.Calculator
	Discharging energylimit.Calculator
	Transitions *transition.Table
}

// State is the result of one timestep.
type State struct {
	SOC                float64            `json:"soc_t1"`
	P1KW               float64            `json:"P1_kW"`
	P2KW               float64            `json:"P2_kW"`
	TimeStepHrs        float64            `json:"time_step_duration_hrs"`
	Status             energylimit.Status `json:"reached_target_status"`
	E1ToTargetKWh      float64            `json:"E1_energy_to_target_soc_kWh"`
	MinTimeToTargetHrs float64            `json:"min_time_to_target_soc_hrs"`
	P2LowerKW          float64            `json:"P2_kW_LB"`
	P2UpperKW          float64            `json:"P2_kW_UB"`
}

// Battery integrates one battery. It is not safe for concurrent use and
// Next must be called with contiguous, increasing time intervals.
type Battery struct {
	sizeKWh        float64
	socToEnergy    float64
	soc            float64
	neverDischarge bool
	full, empty    float64

	eff         curve.Efficiency
	charging    energylimit.Calculator
	discharging energylimit.Calculator
	p2          transition.Integrator

	targetP2 float64
}

// New validates p and returns a battery at p.InitSOC with P2 off.
func New(p Params) (*Battery, error) {
	switch {
	case !(p.SizeKWh > 0):
		return nil, fmt.Errorf("%w: size %g kWh", ErrParams, p.SizeKWh)
	case p.InitSOC < 0 || p.InitSOC > 100:
		return nil, fmt.Errorf("%w: initial soc %g", ErrParams, p.InitSOC)
	case p.Transitions == nil:
		return nil, fmt.Errorf("%w: missing transition table", ErrParams)
	case p.Charging.Direction() != curve.Charging || p.Discharging.Direction() != curve.Discharging:
		return nil, fmt.Errorf("%w: calculator directions swapped", ErrParams)
	}
	full := p.FullSOC
	if full == 0 {
		full = DefaultFullSOC
	}
	empty := p.EmptySOC
	if !(empty < full) || full > 100 || empty < 0 {
		return nil, fmt.Errorf("%w: empty soc %g full soc %g", ErrParams, empty, full)
	}
	return &Battery{
		sizeKWh:        p.SizeKWh,
		socToEnergy:    p.SizeKWh / 100,
		soc:            p.InitSOC,
		neverDischarge: p.NeverDischarge,
		full:           full,
		empty:          empty,
		eff:            p.Efficiency,
		charging:       p.Charging,
		discharging:    p.Discharging,
		p2:             transition.NewIntegrator(p.Transitions),
	}, nil
}

// SOC returns the current state of charge in percent.
func (b *Battery) SOC() float64 { return b.soc }

// SizeKWh returns the battery capacity.
func (b *Battery) SizeKWh() float64 { return b.sizeKWh }

// SetTargetP2 sets the commanded P2 for the following steps.
func (b *Battery) SetTargetP2(kw float64) { b.targetP2 = kw }

// TargetP2 returns the commanded P2.
func (b *Battery) TargetP2() float64 { return b.targetP2 }

// SetP2 seeds the ramp state with an already flowing P2.
func (b *Battery) SetP2(kw float64) { b.p2.SetInitState(kw) }

// TransitionState exposes the ramp state for diagnostics.
func (b *Battery) TransitionState() transition.State { return b.p2.State() }

// Next advances the battery over [prev, now] (unix seconds).
func (b *Battery) Next(prev, now, targetSOC, puVrms float64, stopAtTarget bool) (State, error) {
	if !(prev < now) {
		return State{}, fmt.Errorf("%w: %g >= %g", ErrTimeOrder, prev, now)
	}
	dtSec := now - prev
	dtHrs := dtSec / 3600

	var ub, lb energylimit.Limit
	var e1UB, e1LB float64

	if b.soc < b.full {
		ub = b.charging.E1Limit(dtSec, b.soc, targetSOC, puVrms)
		e1UB = pick(ub, stopAtTarget)
	} else {
		ub = energylimit.Limit{TargetSOC: b.full, Status: energylimit.Unknown, MinTimeToTargetHrs: -1}
	}

	if b.empty < b.soc {
		if b.neverDischarge {
			lb = energylimit.Limit{TargetSOC: 100, Status: energylimit.CanNotReach, MinTimeToTargetHrs: -1}
		} else {
			lb = b.discharging.E1Limit(dtSec, b.soc, targetSOC, puVrms)
		}
		e1LB = pick(lb, stopAtTarget)
	} else {
		lb = energylimit.Limit{TargetSOC: b.empty, Status: energylimit.Unknown, MinTimeToTargetHrs: -1}
	}

	e2UB := b.eff.E2(e1UB, dtHrs, curve.Charging)
	var e2LB float64
	if !b.neverDischarge && e1LB != 0 {
		e2LB = b.eff.E2(e1LB, dtHrs, curve.Discharging)
	}

	p2UB, p2LB := e2UB/dtHrs, e2LB/dtHrs
	target := b.targetP2
	if target > p2UB {
		target = p2UB
	} else if target < p2LB {
		target = p2LB
	}

	integral, err := b.p2.Next(target, prev, now)
	if err != nil {
		return State{}, fmt.Errorf("battery p2 ramp: %w", err)
	}
	p2 := integral.AvgX
	p1 := b.eff.P1(p2)

	b.soc += p1 * dtHrs / b.socToEnergy
	if b.soc < 0 {
		b.soc = 0
	} else if b.soc > 100 {
		b.soc = 100
	}

	st := State{
		SOC:         b.soc,
		P1KW:        p1,
		P2KW:        p2,
		TimeStepHrs: dtHrs,
		P2LowerKW:   p2LB,
		P2UpperKW:   p2UB,
	}
	switch {
	case b.targetP2 == 0:
		st.Status = energylimit.TargetP2IsZero
		st.MinTimeToTargetHrs = -1
	case b.targetP2 > 0:
		st.Status, st.E1ToTargetKWh, st.MinTimeToTargetHrs = ub.Status, ub.E1ToTargetKWh, ub.MinTimeToTargetHrs
	default:
		st.Status, st.E1ToTargetKWh, st.MinTimeToTargetHrs = lb.Status, lb.E1ToTargetKWh, lb.MinTimeToTargetHrs
	}
	return st, nil
}

func pick(l energylimit.Limit, stopAtTarget bool) float64 {
	if stopAtTarget && l.Reachable() {
		return l.E1ToTargetKWh
	}
	return l.MaxE1KWh
}
