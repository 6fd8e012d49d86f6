package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/core/logger"
	"github.com/kilianp07/evcharge/core/metrics"
	"github.com/kilianp07/evcharge/core/model"
	"github.com/kilianp07/evcharge/core/profiles"
	"github.com/kilianp07/evcharge/internal/eventbus"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func fleetConfig(n int) FleetConfig {
	return FleetConfig{
		Size:          n,
		Start:         start,
		StayMin:       2 * time.Hour,
		StayMax:       6 * time.Hour,
		ArrivalSOCMin: 10,
		ArrivalSOCMax: 40,
		DepartureSOC:  80,
	}
}

func TestGenerateFleetDeterministic(t *testing.T) {
	inv := model.DefaultInventory()
	a, err := GenerateFleet(fleetConfig(20), inv, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	b, err := GenerateFleet(fleetConfig(20), inv, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, a, 20)
	assert.Equal(t, a, b)

	ids := map[string]bool{}
	s0 := float64(start.Unix())
	for _, s := range a {
		_, err := uuid.Parse(s.Event.ID)
		require.NoError(t, err)
		ids[s.Event.ID] = true
		ev := s.Event
		assert.GreaterOrEqual(t, ev.ArrivalUnix, s0)
		assert.Less(t, ev.ArrivalUnix, s0+24*3600)
		stay := ev.DepartureUnix - ev.ArrivalUnix
		assert.GreaterOrEqual(t, stay, 2*3600.0)
		assert.LessOrEqual(t, stay, 6*3600.0)
		assert.GreaterOrEqual(t, ev.ArrivalSOC, 10.0)
		assert.LessOrEqual(t, ev.ArrivalSOC, 40.0)
		require.NoError(t, ev.Validate())
	}
	assert.Len(t, ids, 20)
}

func TestGenerateFleetRestrictions(t *testing.T) {
	cfg := fleetConfig(50)
	cfg.EVTypes = []string{"ld_50kWh"}
	cfg.EVSETypes = []string{"L2_7200", "dcfc_50"}
	cfg.Availability[8] = 1
	ss, err := GenerateFleet(cfg, model.DefaultInventory(), rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	s0 := float64(start.Unix())
	for _, s := range ss {
		assert.Equal(t, "ld_50kWh", s.Event.VehicleType)
		assert.Contains(t, cfg.EVSETypes, s.EVSEType)
		h := int((s.Event.ArrivalUnix - s0) / 3600)
		assert.Equal(t, 8, h)
	}
}

func TestGenerateFleetErrors(t *testing.T) {
	inv := model.DefaultInventory()
	rng := rand.New(rand.NewSource(1))

	bad := fleetConfig(1)
	bad.StayMax = time.Hour
	_, err := GenerateFleet(bad, inv, rng)
	assert.Error(t, err)

	bad = fleetConfig(1)
	bad.EVTypes = []string{"tractor"}
	_, err = GenerateFleet(bad, inv, rng)
	assert.ErrorIs(t, err, model.ErrUnknownEV)

	_, err = GenerateFleet(fleetConfig(1), inv, nil)
	assert.Error(t, err)

	ss, err := GenerateFleet(fleetConfig(0), inv, rng)
	require.NoError(t, err)
	assert.Empty(t, ss)
}

func TestLoadAvailability(t *testing.T) {
	prof, err := LoadAvailabilityProfile([]byte(`{"0":0.1,"1":0.2,"2":0.3,"x":1,"30":1}`))
	require.NoError(t, err)
	assert.Equal(t, 0.3, prof[2])
	assert.Equal(t, 0.0, prof[23])

	_, err = LoadAvailabilityProfile([]byte(`invalid`))
	assert.Error(t, err)
}

type countSink struct {
	mu       sync.Mutex
	steps    int
	sessions []metrics.SessionEvent
}

func (c *countSink) RecordStep(metrics.StepEvent) error {
	c.mu.Lock()
	c.steps++
	c.mu.Unlock()
	return nil
}

func (c *countSink) RecordSession(ev metrics.SessionEvent) error {
	c.mu.Lock()
	c.sessions = append(c.sessions, ev)
	c.mu.Unlock()
	return nil
}

func l2Session() Session {
	return Session{
		Event: chargemodel.Event{
			ID:            "s1",
			VehicleType:   "ld_50kWh",
			ArrivalUnix:   float64(start.Unix()),
			DepartureUnix: float64(start.Unix()) + 4*3600,
			ArrivalSOC:    50,
			DepartureSOC:  60,
		},
		EVSEType: "L2_7200",
	}
}

func TestRunnerSingleSession(t *testing.T) {
	sink := &countSink{}
	bus := eventbus.NewTypedBuffered[metrics.StepEvent](1000)
	sub := bus.Subscribe()
	f := profiles.NewFactory(model.DefaultInventory())
	r, err := NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 1}, WithSink(sink), WithBus(bus))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), []Session{l2Session()})
	require.NoError(t, err)
	require.Len(t, res, 1)
	got := res[0]
	assert.True(t, got.NeedsMet)
	assert.True(t, got.Completed)
	assert.InDelta(t, 60, got.FinalSOC, 0.1)
	assert.InDelta(t, (got.FinalSOC-got.InitialSOC)*0.5, got.EnergyKWh, 1e-9)
	assert.GreaterOrEqual(t, got.FirstReachableStep, 0)
	assert.Less(t, got.Duration, time.Hour)
	assert.Greater(t, got.Duration, 30*time.Minute)

	assert.Equal(t, got.Steps, sink.steps)
	require.Len(t, sink.sessions, 1)
	assert.Equal(t, "s1", sink.sessions[0].EventID)
	assert.Len(t, sub, got.Steps)
	first := <-sub
	assert.Equal(t, "s1", first.EventID)
	assert.Equal(t, "L2_7200", first.EVSE)
	// the L2 charger draws more than it delivers and absorbs reactive power
	assert.Greater(t, first.P3KW, first.P2KW)
	assert.Less(t, first.Q3KVAR, 0.0)
	assert.Greater(t, got.GridEnergyKWh, got.EnergyKWh)
	assert.InDelta(t, got.GridEnergyKWh, sink.sessions[0].GridEnergyKWh, 1e-12)
}

func TestRunnerGridSideTargets(t *testing.T) {
	f := profiles.NewFactory(model.DefaultInventory())
	r, err := NewRunner(f, RunConfig{
		TimestepSec:  60,
		PuVrms:       1,
		Converter:    converter.QSetpoint,
		TargetQ3KVAR: 2,
		TargetP3KW:   5,
	})
	require.NoError(t, err)

	steps, res, err := r.Trace(context.Background(), l2Session())
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.True(t, res.NeedsMet)
	var peak float64
	for _, st := range steps {
		peak = math.Max(peak, st.P3KW)
		assert.Equal(t, 2.0, st.Q3KVAR)
	}
	assert.InDelta(t, 5, peak, 0.05)

	_, err = NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 1, TargetP3KW: -1})
	assert.Error(t, err)
	_, err = NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 1, Converter: converter.Kind(5)})
	assert.ErrorIs(t, err, converter.ErrKind)
}

func TestRunnerDegradationReproducible(t *testing.T) {
	inv := model.DefaultInventory()
	cfg := fleetConfig(16)
	cfg.EVSETypes = []string{"L2_7200", "L2_17280", "dcfc_50"}
	ss, err := GenerateFleet(cfg, inv, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	run := func(workers int) []Result {
		t.Helper()
		f := profiles.NewFactory(inv, profiles.WithDegradation(rand.New(rand.NewSource(7))))
		r, err := NewRunner(f, RunConfig{TimestepSec: 300, PuVrms: 1, Workers: workers})
		require.NoError(t, err)
		res, err := r.Run(context.Background(), ss)
		require.NoError(t, err)
		return res
	}
	want := run(1)
	for _, workers := range []int{0, 8, 8, 3} {
		got := run(workers)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].EnergyKWh, got[i].EnergyKWh, "session %d with %d workers", i, workers)
			assert.Equal(t, want[i].FinalSOC, got[i].FinalSOC, "session %d with %d workers", i, workers)
		}
	}
}

type warnLogger struct {
	logger.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func TestRunnerWarnsOutOfRangeVoltage(t *testing.T) {
	f := profiles.NewFactory(model.DefaultInventory())
	log := &warnLogger{}
	r, err := NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 2.5}, WithLogger(log))
	require.NoError(t, err)
	second := l2Session()
	second.Event.ID = "s2"
	res, err := r.Run(context.Background(), []Session{l2Session(), second})
	require.NoError(t, err)
	require.Len(t, log.warns, 1)
	assert.Contains(t, log.warns[0], "pu vrms 2.5")
	assert.Contains(t, log.warns[0], "L2_7200")
	// the curve is clamped at its bound, so charging proceeds
	assert.True(t, res[0].NeedsMet)

	quiet := &warnLogger{}
	r, err = NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 1}, WithLogger(quiet))
	require.NoError(t, err)
	_, err = r.Run(context.Background(), []Session{l2Session()})
	require.NoError(t, err)
	assert.Empty(t, quiet.warns)
}

func TestRunnerTrace(t *testing.T) {
	f := profiles.NewFactory(model.DefaultInventory())
	r, err := NewRunner(f, RunConfig{TimestepSec: 300, PuVrms: 1})
	require.NoError(t, err)
	s := l2Session()
	s.Event.DepartureSOC = 100
	s.Event.DepartureUnix = s.Event.ArrivalUnix + 1000

	steps, res, err := r.Trace(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, steps, res.Steps)
	require.Len(t, steps, 4)
	assert.Equal(t, s.Event.DepartureUnix, steps[3].TimeUnix)
	assert.InDelta(t, 100.0/3600, steps[3].TimeStepHrs, 1e-12)
	for i := 1; i < len(steps); i++ {
		assert.Greater(t, steps[i].TimeUnix, steps[i-1].TimeUnix)
		assert.GreaterOrEqual(t, steps[i].SOC, steps[i-1].SOC)
	}
	assert.False(t, res.NeedsMet)
}

func TestRunnerFleetKeepsOrder(t *testing.T) {
	inv := model.DefaultInventory()
	cfg := fleetConfig(12)
	cfg.EVSETypes = []string{"L2_7200", "L2_17280", "dcfc_50"}
	ss, err := GenerateFleet(cfg, inv, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	r, err := NewRunner(profiles.NewFactory(inv), RunConfig{TimestepSec: 60, PuVrms: 1, Workers: 3})
	require.NoError(t, err)
	res, err := r.Run(context.Background(), ss)
	require.NoError(t, err)
	require.Len(t, res, len(ss))
	for i := range ss {
		assert.Equal(t, ss[i].Event.ID, res[i].EventID)
		assert.GreaterOrEqual(t, res[i].FinalSOC, ss[i].Event.ArrivalSOC)
	}
}

func TestRunnerCanceled(t *testing.T) {
	r, err := NewRunner(profiles.NewFactory(model.DefaultInventory()), RunConfig{TimestepSec: 60, PuVrms: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, []Session{l2Session()})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRunnerErrors(t *testing.T) {
	f := profiles.NewFactory(model.DefaultInventory())
	_, err := NewRunner(nil, RunConfig{TimestepSec: 60, PuVrms: 1})
	assert.Error(t, err)
	_, err = NewRunner(f, RunConfig{TimestepSec: 0, PuVrms: 1})
	assert.Error(t, err)

	r, err := NewRunner(f, RunConfig{TimestepSec: 60, PuVrms: 1})
	require.NoError(t, err)
	s := l2Session()
	s.EVSEType = "L9"
	_, err = r.Run(context.Background(), []Session{s})
	assert.ErrorIs(t, err, model.ErrUnknownEVSE)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	res := []Result{
		{EnergyKWh: 3, GridEnergyKWh: 3.3, FinalSOC: 80, NeedsMet: true, Duration: 30 * time.Minute},
		{EnergyKWh: 1, GridEnergyKWh: 1.2, FinalSOC: 60, Duration: 10 * time.Minute},
		{EnergyKWh: 4, FinalSOC: 90, NeedsMet: true, Duration: 40 * time.Minute},
		{EnergyKWh: 2, FinalSOC: 70, Duration: 20 * time.Minute},
	}
	s := Summarize(res)
	assert.Equal(t, 4, s.Sessions)
	assert.Equal(t, 2, s.NeedsMet)
	assert.InDelta(t, 10, s.TotalKWh, 1e-12)
	assert.InDelta(t, 4.5, s.TotalGridKWh, 1e-12)
	assert.InDelta(t, 2.5, s.EnergyKWh.Mean, 1e-12)
	assert.Equal(t, 1.0, s.EnergyKWh.Min)
	assert.Equal(t, 4.0, s.EnergyKWh.Max)
	assert.Equal(t, 2.0, s.EnergyKWh.P50)
	assert.Equal(t, 4.0, s.EnergyKWh.P90)
	assert.InDelta(t, 1.2909944, s.EnergyKWh.StdDev, 1e-6)
	assert.InDelta(t, 25, s.DurationMin.Mean, 1e-9)

	one := Summarize(res[:1])
	assert.Equal(t, 0.0, one.FinalSOC.StdDev)
}
