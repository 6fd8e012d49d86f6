package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/evcharge/core/battery"
	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/core/energylimit"
	"github.com/kilianp07/evcharge/core/logger"
	"github.com/kilianp07/evcharge/core/metrics"
	"github.com/kilianp07/evcharge/core/profiles"
	"github.com/kilianp07/evcharge/internal/eventbus"
)

// RunConfig holds the stepping parameters of a run.
type RunConfig struct {
	TimestepSec float64
	PuVrms      float64
	// Workers bounds the sessions simulated concurrently; 0 means one per session.
	Workers int
	// SEP2LimitKW caps the supply equipment below its rating when positive.
	SEP2LimitKW float64
	// Converter selects the reactive power mode of every charger; 0 means
	// converter.PowerFactor.
	Converter converter.Kind
	// TargetQ3KVAR is the reactive power commanded from Q_setpoint chargers.
	TargetQ3KVAR float64
	// TargetP3KW caps the grid-side active power of every session when positive.
	TargetP3KW float64
}

// Validate checks the stepping parameters.
func (c RunConfig) Validate() error {
	switch {
	case !(c.TimestepSec > 0):
		return fmt.Errorf("timestep %g s must be positive", c.TimestepSec)
	case !(c.PuVrms > 0):
		return fmt.Errorf("pu vrms %g must be positive", c.PuVrms)
	case c.Workers < 0:
		return fmt.Errorf("workers %d must not be negative", c.Workers)
	case c.TargetP3KW < 0:
		return fmt.Errorf("target P3 %g kW must not be negative", c.TargetP3KW)
	case c.Converter != 0 && c.Converter != converter.PowerFactor && c.Converter != converter.QSetpoint:
		return fmt.Errorf("converter %d: %w", int(c.Converter), converter.ErrKind)
	}
	return nil
}

// Step is the battery state at the end of one timestep with the grid-side
// power of its charger.
type Step struct {
	TimeUnix float64 `json:"time_unix"`
	battery.State
	P3KW   float64 `json:"P3_kW"`
	Q3KVAR float64 `json:"Q3_kVAR"`
}

// Result summarizes one simulated session.
type Result struct {
	EventID   string  `json:"event_id"`
	Vehicle   string  `json:"vehicle_type"`
	EVSE      string  `json:"evse_type"`
	EnergyKWh float64 `json:"energy_kWh"`
	// GridEnergyKWh is the active energy drawn on the grid side.
	GridEnergyKWh float64       `json:"grid_energy_kWh"`
	InitialSOC    float64       `json:"initial_soc"`
	FinalSOC      float64       `json:"final_soc"`
	NeedsMet      bool          `json:"needs_met"`
	Completed     bool          `json:"completed"`
	Duration      time.Duration `json:"duration"`
	Steps         int           `json:"steps"`
	// FirstReachableStep is the first step whose target was reachable, -1 if none.
	FirstReachableStep int `json:"first_reachable_step"`
}

// Runner drives charge sessions built by a profiles.Factory. Each session
// requests the full EVSE power from arrival until its needs are met.
type Runner struct {
	factory *profiles.Factory
	cfg     RunConfig
	sink    metrics.Sink
	rec     *metrics.Recorder
	bus     *eventbus.TypedBus[metrics.StepEvent]
	log     logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink records every step and session summary to s.
func WithSink(s metrics.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithBus publishes every step on bus.
func WithBus(bus *eventbus.TypedBus[metrics.StepEvent]) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = logger.OrNop(l) }
}

// NewRunner returns a Runner over f.
func NewRunner(f *profiles.Factory, cfg RunConfig, opts ...Option) (*Runner, error) {
	if f == nil {
		return nil, errors.New("runner: nil factory")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{factory: f, cfg: cfg, log: logger.NopLogger{}}
	for _, o := range opts {
		o(r)
	}
	r.rec = metrics.NewRecorder(r.sink, r.log)
	return r, nil
}

// SinkErrors is the number of sink writes that failed so far.
func (r *Runner) SinkErrors() int64 { return r.rec.Errors() }

// Run simulates sessions concurrently and returns their results in input
// order. The first failing session cancels the others. Battery sizes are
// drawn in input order before any session starts, so a seeded degradation
// source gives the same results for any worker count.
func (r *Runner) Run(ctx context.Context, sessions []Session) ([]Result, error) {
	sizes, err := r.prepare(sessions)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Workers > 0 {
		g.SetLimit(r.cfg.Workers)
	}
	for i, s := range sessions {
		g.Go(func() error {
			res, err := r.run(gctx, s, sizes[i], nil)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Infof("simulated %d sessions", len(sessions))
	return results, nil
}

// Trace simulates one session and returns every step.
func (r *Runner) Trace(ctx context.Context, s Session) ([]Step, Result, error) {
	sizes, err := r.prepare([]Session{s})
	if err != nil {
		return nil, Result{}, err
	}
	var steps []Step
	res, err := r.run(ctx, s, sizes[0], func(st Step) { steps = append(steps, st) })
	if err != nil {
		return nil, Result{}, err
	}
	return steps, res, nil
}

// prepare draws the battery size of every session and warns once per EVSE
// type when the supply voltage falls outside its voltage curve.
func (r *Runner) prepare(sessions []Session) ([]float64, error) {
	sizes := make([]float64, len(sessions))
	checked := make(map[string]bool)
	for i, s := range sessions {
		size, err := r.factory.BatterySize(s.Event.VehicleType)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.Event.ID, err)
		}
		sizes[i] = size
		if checked[s.EVSEType] {
			continue
		}
		checked[s.EVSEType] = true
		p, err := r.factory.Profile(s.Event.VehicleType, s.EVSEType)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", s.Event.ID, err)
		}
		if _, ok := p.Voltage.Lookup(r.cfg.PuVrms); !ok {
			r.log.Warnf("pu vrms %g is outside the %s voltage curve of %s, using its nearest bound",
				r.cfg.PuVrms, p.Voltage.Name(), s.EVSEType)
		}
	}
	return sizes, nil
}

func (r *Runner) run(ctx context.Context, s Session, sizeKWh float64, trace func(Step)) (Result, error) {
	ev := s.Event
	m, err := r.factory.NewSizedChargeModel(ev, s.EVSEType, r.cfg.SEP2LimitKW, sizeKWh)
	if err != nil {
		return Result{}, fmt.Errorf("session %s: %w", ev.ID, err)
	}
	evse, err := r.factory.Inventory().EVSE(s.EVSEType)
	if err != nil {
		return Result{}, err
	}
	kind := r.cfg.Converter
	if kind == 0 {
		kind = converter.PowerFactor
	}
	conv, err := r.factory.NewConverter(s.EVSEType, r.cfg.SEP2LimitKW, kind)
	if err != nil {
		return Result{}, fmt.Errorf("session %s: %w", ev.ID, err)
	}
	conv.SetTargetQ3(r.cfg.TargetQ3KVAR)

	request := evse.PowerLimitKW
	if r.cfg.SEP2LimitKW > 0 {
		request = math.Min(request, r.cfg.SEP2LimitKW)
	}
	if r.cfg.TargetP3KW > 0 {
		request = math.Min(request, conv.ApproxP2(r.cfg.TargetP3KW))
	}
	m.SetTargetP2(request)

	res := Result{
		EventID:            ev.ID,
		Vehicle:            ev.VehicleType,
		EVSE:               s.EVSEType,
		InitialSOC:         ev.ArrivalSOC,
		FinalSOC:           ev.ArrivalSOC,
		FirstReachableStep: -1,
	}
	dt := r.cfg.TimestepSec
	for prev := ev.ArrivalUnix; prev < ev.DepartureUnix && !m.Completed(); prev += dt {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		now := math.Min(prev+dt, ev.DepartureUnix)
		st, err := m.Next(prev, now, r.cfg.PuVrms)
		if err != nil {
			return Result{}, err
		}
		if st.Status == energylimit.CanReach && res.FirstReachableStep < 0 {
			res.FirstReachableStep = res.Steps
		}
		res.Steps++
		ac := conv.Next(st.TimeStepHrs, st.P1KW, st.P2KW)
		res.EnergyKWh += st.P1KW * st.TimeStepHrs
		res.GridEnergyKWh += ac.P3KW * st.TimeStepHrs
		res.FinalSOC = st.SOC
		if st.P1KW != 0 {
			res.Duration = time.Duration((now - ev.ArrivalUnix) * float64(time.Second))
		}

		sev := metrics.StepEvent{
			EventID: ev.ID,
			Vehicle: ev.VehicleType,
			EVSE:    s.EVSEType,
			Time:    unixTime(now),
			SOC:     st.SOC,
			P1KW:    st.P1KW,
			P2KW:    st.P2KW,
			P3KW:    ac.P3KW,
			Q3KVAR:  ac.Q3KVAR,
			Status:  st.Status,
		}
		r.rec.Step(sev)
		if r.bus != nil {
			r.bus.Publish(sev)
		}
		if trace != nil {
			trace(Step{TimeUnix: now, State: st, P3KW: ac.P3KW, Q3KVAR: ac.Q3KVAR})
		}
	}
	res.NeedsMet = m.NeedsMet()
	res.Completed = m.Completed()

	r.rec.Session(metrics.SessionEvent{
		EventID:       res.EventID,
		Vehicle:       res.Vehicle,
		EVSE:          res.EVSE,
		EnergyKWh:     res.EnergyKWh,
		GridEnergyKWh: res.GridEnergyKWh,
		InitialSOC:    res.InitialSOC,
		FinalSOC:      res.FinalSOC,
		NeedsMet:      res.NeedsMet,
		Duration:      res.Duration,
		Time:          unixTime(ev.DepartureUnix),
	})
	r.log.Debugw("session done", map[string]any{
		"event_id":  res.EventID,
		"energy":    res.EnergyKWh,
		"final_soc": res.FinalSOC,
		"needs_met": res.NeedsMet,
	})
	return res, nil
}

func unixTime(sec float64) time.Time {
	whole := math.Floor(sec)
	return time.Unix(int64(whole), int64((sec-whole)*1e9)).UTC()
}
