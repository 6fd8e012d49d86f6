package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/energylimit"
	"github.com/kilianp07/evcharge/core/transition"
)

const sizeLMO = 60.0

func lmoEfficiency(size float64) curve.Efficiency {
	ch := curve.LineSegment{XLB: 0, XUB: 4 * size, A: -0.0079286 / size, B: 0.9936637}
	dis := curve.LineSegment{XLB: -4 * size, XUB: 0, A: -0.0092091 / size, B: 1.005674}
	zs := curve.EfficiencyZeroSlope(ch.A)
	if z := curve.EfficiencyZeroSlope(dis.A); z < zs {
		zs = z
	}
	return curve.Efficiency{Charging: ch, Discharging: dis, ZeroSlope: zs}
}

// l2Curve is the 7.2 kW level 2 curve of a 60 kWh LMO pack: flat at the AC
// rate, then the 1C taper through (76.1, 1.274) and (100, 0.064).
func l2Curve(t *testing.T) curve.SOCvsP2 {
	t.Helper()
	m := (0.064 - 1.274) * sizeLMO / (100 - 76.1)
	b := 0.064*sizeLMO - m*100
	x := (7.2 - b) / m
	segs := []curve.LineSegment{
		{XLB: -0.1, XUB: x, A: 0, B: 7.2},
		{XLB: x, XUB: 100.1, A: m, B: b},
	}
	c, err := curve.NewSOCvsP2(segs, curve.ZeroSlopeThreshold(segs))
	require.NoError(t, err)
	return c
}

func flatCurve(t *testing.T, kw float64) curve.SOCvsP2 {
	t.Helper()
	c, err := curve.NewSOCvsP2([]curve.LineSegment{{XLB: -0.1, XUB: 100.1, B: kw}}, 0.01)
	require.NoError(t, err)
	return c
}

func l2Voltage(t *testing.T) curve.PolyFunction {
	t.Helper()
	x := []float64{0, 0.34, 0.35, 0.94, 2}
	y := []float64{0, 0, 0.373 * 7.2, 7.2, 7.2}
	p, err := curve.PiecewiseLinear("l2", 1e-4, x, y)
	require.NoError(t, err)
	return p
}

func ramp(d1, d2, slope float64) []transition.Criterion {
	return []transition.Criterion{
		{Type: transition.TimeDelay, Value: d1},
		{Type: transition.TimeDelay, Value: d2},
		{Type: transition.FromFinalX, Slope: slope},
	}
}

func l2Table(t *testing.T) *transition.Table {
	t.Helper()
	md := transition.MustDefinition
	tb, err := transition.NewTable(transition.TableConfig{TargetDeadband: 0.01, OffDeadband: 1e-4}, []transition.Definition{
		md(transition.OffToPos, 0.01, ramp(4.95, 0.05, 2)),
		md(transition.PosToOff, 0.01, ramp(0.095, 0.005, -100)),
		md(transition.MovingTowardPosInf, 0.01, ramp(0.12, 0.03, 2)),
		md(transition.MovingTowardNegInf, 0.01, ramp(0.09, 0.01, -3)),
		md(transition.OffToNeg, 0.1, ramp(0.1, 0.1, -10)),
		md(transition.NegToOff, 0.1, ramp(0.1, 0.1, 10)),
		md(transition.PosMovingTowardPosInf, 0.1, ramp(0.1, 0.1, 10)),
		md(transition.PosMovingTowardNegInf, 0.1, ramp(0.1, 0.1, -10)),
		md(transition.NegMovingTowardPosInf, 0.1, ramp(0.1, 0.1, 10)),
		md(transition.NegMovingTowardNegInf, 0.1, ramp(0.1, 0.1, -10)),
	})
	require.NoError(t, err)
	return tb
}

func newBattery(t *testing.T, c curve.SOCvsP2, size, soc float64, neverDischarge bool) *Battery {
	t.Helper()
	eff := lmoEfficiency(size)
	calc := func(dir curve.Direction, cv curve.SOCvsP2) energylimit.Calculator {
		ec, err := energylimit.NewCalculator(energylimit.Config{
			Direction:      dir,
			Losses:         true,
			BatterySizeKWh: size,
			Efficiency:     eff,
			Curve:          cv,
			VoltageLimit:   l2Voltage(t),
		})
		require.NoError(t, err)
		return ec
	}
	b, err := New(Params{
		SizeKWh:        size,
		InitSOC:        soc,
		NeverDischarge: neverDischarge,
		FullSOC:        99.8,
		EmptySOC:       0.2,
		Efficiency:     eff,
		Charging:       calc(curve.Charging, c),
		Discharging:    calc(curve.Discharging, c.Mirror()),
		Transitions:    l2Table(t),
	})
	require.NoError(t, err)
	return b
}

func TestNew_Errors(t *testing.T) {
	good := newBattery(t, flatCurve(t, 7.2), sizeLMO, 50, true)
	base := Params{
		SizeKWh:     sizeLMO,
		InitSOC:     50,
		Efficiency:  good.eff,
		Charging:    good.charging,
		Discharging: good.discharging,
		Transitions: l2Table(t),
	}
	tests := []struct {
		name string
		mod  func(p *Params)
	}{
		{"zero size", func(p *Params) { p.SizeKWh = 0 }},
		{"soc above 100", func(p *Params) { p.InitSOC = 101 }},
		{"no table", func(p *Params) { p.Transitions = nil }},
		{"swapped", func(p *Params) { p.Charging, p.Discharging = p.Discharging, p.Charging }},
		{"empty above full", func(p *Params) { p.FullSOC, p.EmptySOC = 50, 60 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mod(&p)
			_, err := New(p)
			assert.ErrorIs(t, err, ErrParams)
		})
	}

	b, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, DefaultFullSOC, b.full)
}

func TestNext_TimeOrder(t *testing.T) {
	b := newBattery(t, flatCurve(t, 7.2), sizeLMO, 50, true)
	_, err := b.Next(10, 10, 80, 1, false)
	assert.ErrorIs(t, err, ErrTimeOrder)
	_, err = b.Next(11, 10, 80, 1, false)
	assert.ErrorIs(t, err, ErrTimeOrder)
	assert.Equal(t, 50.0, b.SOC())
}

func TestNext_MonotonicAndSaturates(t *testing.T) {
	b := newBattery(t, l2Curve(t), 10, 95, true)
	b.SetTargetP2(7.2)

	prev := b.SOC()
	var last State
	for i := 0; i < 1500; i++ {
		st, err := b.Next(float64(i), float64(i+1), 100, 1, false)
		require.NoError(t, err)
		require.GreaterOrEqual(t, st.SOC, prev, "step %d", i)
		require.GreaterOrEqual(t, st.P2KW, 0.0)
		prev = st.SOC
		last = st
	}
	assert.GreaterOrEqual(t, last.SOC, 99.8)
	assert.LessOrEqual(t, last.SOC, 100.0)
	assert.Equal(t, 0.0, last.P2KW)
	assert.Equal(t, 0.0, last.P2UpperKW)
}

// On a flat curve the bounds never move, so every realized P2 lies inside
// them whatever the request.
func TestNext_BoundContainmentRequests(t *testing.T) {
	for _, never := range []bool{true, false} {
		b := newBattery(t, flatCurve(t, 7.2), sizeLMO, 40, never)
		requests := []float64{1000, 3, -1000, 0, 5, -3, 7.2, -7.2}
		tm := 0.0
		for _, r := range requests {
			b.SetTargetP2(r)
			for i := 0; i < 30; i++ {
				st, err := b.Next(tm, tm+1, 80, 1, false)
				require.NoError(t, err)
				tm++
				assert.LessOrEqual(t, st.P2KW, st.P2UpperKW+1e-9)
				assert.GreaterOrEqual(t, st.P2KW, st.P2LowerKW-1e-9)
				if never {
					assert.Equal(t, 0.0, st.P2LowerKW)
				}
			}
		}
	}
}

// The ramp follows the clamped target, so through the taper the realized
// average trails the shrinking upper bound by at most the target deadband.
// The one exception is the step the pack reaches full: the bound drops to
// zero while P2 still flows and ramps down within that step.
func TestNext_BoundContainmentTaper(t *testing.T) {
	const tol = 0.01 + 1e-3 // l2Table target deadband plus ramp residue
	b := newBattery(t, l2Curve(t), sizeLMO, 90, true)
	b.SetTargetP2(7.2)

	cutoffs := 0
	var last State
	for i := 0; i < 4000; i++ {
		st, err := b.Next(float64(i), float64(i+1), 100, 1, false)
		require.NoError(t, err)
		require.GreaterOrEqual(t, st.P2KW, st.P2LowerKW-1e-9, "step %d", i)
		if excess := st.P2KW - st.P2UpperKW; excess > tol {
			require.Equal(t, 0.0, st.P2UpperKW, "step %d: %g kW above a %g kW bound", i, excess, st.P2UpperKW)
			cutoffs++
		}
		last = st
	}
	assert.LessOrEqual(t, cutoffs, 1)
	assert.GreaterOrEqual(t, b.SOC(), 99.8)
	assert.Equal(t, 0.0, last.P2KW)
}

func TestNext_ZeroTarget(t *testing.T) {
	b := newBattery(t, l2Curve(t), sizeLMO, 30, true)
	for i := 0; i < 20; i++ {
		st, err := b.Next(float64(i*60), float64(i*60+60), 80, 1, true)
		require.NoError(t, err)
		assert.Equal(t, energylimit.TargetP2IsZero, st.Status)
		assert.Equal(t, 30.0, st.SOC)
		assert.Equal(t, 0.0, st.E1ToTargetKWh)
		assert.Equal(t, -1.0, st.MinTimeToTargetHrs)
	}
}

func TestNext_ReachesTargetOnce(t *testing.T) {
	b := newBattery(t, l2Curve(t), sizeLMO, 5, true)
	b.SetTargetP2(7.2)

	first, reached := -1, 0
	for i := 0; i < 30000; i++ {
		st, err := b.Next(float64(i), float64(i+1), 98.8, 1, true)
		require.NoError(t, err)
		switch st.Status {
		case energylimit.CanReach:
			reached++
			if first < 0 {
				first = i
			}
			assert.Greater(t, st.E1ToTargetKWh, 0.0)
			assert.GreaterOrEqual(t, st.MinTimeToTargetHrs, 0.0)
			assert.LessOrEqual(t, st.MinTimeToTargetHrs, 1.0/3600+1e-12)
		case energylimit.CanNotReach:
			require.Less(t, first, 0, "step %d: unreachable after target was reached", i)
		case energylimit.HavePassed, energylimit.Unknown:
			// unknown once the pack is full
			require.GreaterOrEqual(t, first, 0, "step %d", i)
		default:
			t.Fatalf("step %d: unexpected status %s", i, st.Status)
		}
	}
	assert.Equal(t, 1, reached)
	assert.Greater(t, first, 20000)
	assert.GreaterOrEqual(t, b.SOC(), 98.8)
}

func TestNext_Discharging(t *testing.T) {
	b := newBattery(t, flatCurve(t, 7.2), sizeLMO, 50, false)
	b.SetP2(-5)
	b.SetTargetP2(-5)

	st, err := b.Next(0, 3600, 20, 1, true)
	require.NoError(t, err)
	assert.InDelta(t, -5, st.P2KW, 1e-9)
	assert.Less(t, st.P1KW, st.P2KW)
	assert.Less(t, st.SOC, 50.0)
	assert.InDelta(t, 50+st.P1KW/(sizeLMO/100), st.SOC, 1e-9)
	assert.Equal(t, energylimit.CanNotReach, st.Status)
	assert.Equal(t, transition.OnSteadyState, b.TransitionState())
}
