package profiles

import (
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/model"
	"github.com/kilianp07/evcharge/core/transition"
)

// RampStep is a delay followed by a constant ramp.
type RampStep struct {
	DelaySec float64 `json:"delay_sec" yaml:"delay_sec"`
	KWPerSec float64 `json:"kw_per_sec" yaml:"kw_per_sec"`
}

// Ramping overrides the four main transitions of a level table.
type Ramping struct {
	OnToOff  RampStep `json:"on_to_off" yaml:"on_to_off"`
	OffToOn  RampStep `json:"off_to_on" yaml:"off_to_on"`
	RampUp   RampStep `json:"ramp_up" yaml:"ramp_up"`
	RampDown RampStep `json:"ramp_down" yaml:"ramp_down"`
}

const (
	defaultXDeadband = 0.1
	levelXDeadband   = 0.01
	targetDeadband   = 0.01
	offDeadband      = 1e-4
)

func ramp(d1, d2, slope float64) []transition.Criterion {
	return []transition.Criterion{
		{Type: transition.TimeDelay, Value: d1},
		{Type: transition.TimeDelay, Value: d2},
		{Type: transition.FromFinalX, Value: 0, Slope: slope},
	}
}

type levelRamps struct {
	offToPos, posToOff, movingPos, movingNeg []transition.Criterion
}

var levelTransitions = map[model.Level]levelRamps{
	model.L1: {
		offToPos:  ramp(4.95, 0.05, 0.5),
		posToOff:  ramp(0.095, 0.005, -50),
		movingPos: ramp(0.12, 0.03, 0.5),
		movingNeg: ramp(0.09, 0.01, -0.5),
	},
	model.L2: {
		offToPos:  ramp(4.95, 0.05, 2),
		posToOff:  ramp(0.095, 0.005, -100),
		movingPos: ramp(0.12, 0.03, 2),
		movingNeg: ramp(0.09, 0.01, -3),
	},
	model.DCFC: {
		offToPos:  ramp(14.9, 0.1, 25),
		posToOff:  ramp(0.040, 0.010, -140000),
		movingPos: ramp(0.09, 0.01, 25),
		movingNeg: ramp(0.09, 0.01, -25),
	},
}

func (r RampStep) criteria(sign float64) []transition.Criterion {
	return ramp(0.9*r.DelaySec, 0.1*r.DelaySec, sign*math.Abs(r.KWPerSec))
}

// TransitionsFor builds the transition table of an equipment level. A
// non-nil custom replaces the level's on/off and ramp transitions.
func TransitionsFor(level model.Level, custom *Ramping) (*transition.Table, error) {
	lr, ok := levelTransitions[level]
	if !ok {
		return nil, fmt.Errorf("no transition data for level %s", level)
	}
	if custom != nil {
		lr = levelRamps{
			offToPos:  custom.OffToOn.criteria(1),
			posToOff:  custom.OnToOff.criteria(-1),
			movingPos: custom.RampUp.criteria(1),
			movingNeg: custom.RampDown.criteria(-1),
		}
	}

	defs := make([]transition.Definition, 0, transition.NumDirectional)
	add := func(s transition.State, xdb float64, c []transition.Criterion) error {
		d, err := transition.NewDefinition(s, xdb, c)
		if err != nil {
			return err
		}
		defs = append(defs, d)
		return nil
	}
	up := ramp(0.1, 0.1, 10)
	down := ramp(0.1, 0.1, -10)
	steps := []struct {
		s   transition.State
		xdb float64
		c   []transition.Criterion
	}{
		{transition.OffToPos, levelXDeadband, lr.offToPos},
		{transition.PosToOff, levelXDeadband, lr.posToOff},
		{transition.MovingTowardPosInf, levelXDeadband, lr.movingPos},
		{transition.MovingTowardNegInf, levelXDeadband, lr.movingNeg},
		{transition.OffToNeg, defaultXDeadband, down},
		{transition.NegToOff, defaultXDeadband, up},
		{transition.PosMovingTowardPosInf, defaultXDeadband, up},
		{transition.PosMovingTowardNegInf, defaultXDeadband, down},
		{transition.NegMovingTowardPosInf, defaultXDeadband, up},
		{transition.NegMovingTowardNegInf, defaultXDeadband, down},
	}
	for _, st := range steps {
		if err := add(st.s, st.xdb, st.c); err != nil {
			return nil, fmt.Errorf("transitions %s: %w", level, err)
		}
	}
	return transition.NewTable(transition.TableConfig{
		TargetDeadband: targetDeadband,
		OffDeadband:    offDeadband,
		Unique:         false,
	}, defs)
}
