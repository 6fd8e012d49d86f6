// Package profiles builds the immutable curves, efficiency lines and
// transition tables a battery needs, and assembles charge models from them.
package profiles

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/kilianp07/evcharge/core/battery"
	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/core/curve"
	"github.com/kilianp07/evcharge/core/energylimit"
	"github.com/kilianp07/evcharge/core/model"
	"github.com/kilianp07/evcharge/core/transition"
)

// Options holds the assembly constants of a charge model.
type Options struct {
	RecalcExponentThreshold float64 `json:"recalc_exponent_threshold"`
	MaxP2ErrorKW            float64 `json:"max_p2_error_kw"`
	NeverDischarge          bool    `json:"never_discharge"`
	Losses                  bool    `json:"battery_losses"`
	FullSOC                 float64 `json:"soc_of_full_battery"`
}

// DefaultOptions returns the standard assembly constants.
func DefaultOptions() Options {
	return Options{
		RecalcExponentThreshold: energylimit.DefaultRecalcExponentThreshold,
		MaxP2ErrorKW:            energylimit.DefaultMaxP2ErrorKW,
		NeverDischarge:          true,
		Losses:                  true,
		FullSOC:                 battery.DefaultFullSOC,
	}
}

// PairKey identifies an EV type on an EVSE type.
type PairKey struct {
	EV   string
	EVSE string
}

// Profile is everything a battery of one EV/EVSE pair is built from.
type Profile struct {
	EV          model.EV           `json:"ev"`
	EVSE        model.EVSE         `json:"evse"`
	Efficiency  curve.Efficiency   `json:"efficiency"`
	Charging    curve.SOCvsP2      `json:"-"`
	Discharging curve.SOCvsP2      `json:"-"`
	Voltage     curve.PolyFunction `json:"-"`
	Transitions *transition.Table  `json:"-"`
}

// Factory assembles batteries and charge models. It is safe for concurrent
// use; profiles of undegraded batteries are built once per pair.
type Factory struct {
	inv         model.Inventory
	opts        Options
	evRamping   map[string]Ramping
	pairRamping map[PairKey]Ramping

	mu       sync.Mutex
	rng      *rand.Rand
	profiles map[PairKey]Profile
}

// Option configures a Factory.
type Option func(*Factory)

// WithOptions replaces the assembly constants.
func WithOptions(o Options) Option { return func(f *Factory) { f.opts = o } }

// WithEVRamping sets custom DCFC ramping for every charger an EV type uses.
func WithEVRamping(evType string, r Ramping) Option {
	return func(f *Factory) { f.evRamping[evType] = r }
}

// WithPairRamping sets custom DCFC ramping for one EV/EVSE pair.
func WithPairRamping(evType, evseType string, r Ramping) Option {
	return func(f *Factory) { f.pairRamping[PairKey{evType, evseType}] = r }
}

// WithDegradation makes BatterySize draw a degraded capacity from rng.
func WithDegradation(rng *rand.Rand) Option { return func(f *Factory) { f.rng = rng } }

// NewFactory returns a factory over inv.
func NewFactory(inv model.Inventory, opts ...Option) *Factory {
	f := &Factory{
		inv:         inv,
		opts:        DefaultOptions(),
		evRamping:   make(map[string]Ramping),
		pairRamping: make(map[PairKey]Ramping),
		profiles:    make(map[PairKey]Profile),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Options returns the assembly constants.
func (f *Factory) Options() Options { return f.opts }

// Inventory returns the inventory the factory draws from.
func (f *Factory) Inventory() model.Inventory { return f.inv }

// Ramping returns the custom ramping that applies to a pair. Custom ramping
// only applies to DCFC equipment; a pair entry wins over an EV entry.
func (f *Factory) Ramping(ev model.EV, evse model.EVSE) (Ramping, bool) {
	if evse.Level != model.DCFC {
		return Ramping{}, false
	}
	if r, ok := f.pairRamping[PairKey{ev.Type, evse.Type}]; ok {
		return r, true
	}
	r, ok := f.evRamping[ev.Type]
	return r, ok
}

// Profile returns the undegraded profile of a pair.
func (f *Factory) Profile(evType, evseType string) (Profile, error) {
	key := PairKey{evType, evseType}
	f.mu.Lock()
	p, ok := f.profiles[key]
	f.mu.Unlock()
	if ok {
		return p, nil
	}

	ev, evse, err := f.lookup(evType, evseType)
	if err != nil {
		return Profile{}, err
	}
	p, err = f.build(ev, evse, evse.PowerLimitKW)
	if err != nil {
		return Profile{}, err
	}
	f.mu.Lock()
	f.profiles[key] = p
	f.mu.Unlock()
	return p, nil
}

func (f *Factory) lookup(evType, evseType string) (model.EV, model.EVSE, error) {
	ev, err := f.inv.EV(evType)
	if err != nil {
		return model.EV{}, model.EVSE{}, err
	}
	evse, err := f.inv.EVSE(evseType)
	if err != nil {
		return model.EV{}, model.EVSE{}, err
	}
	return ev, evse, nil
}

func (f *Factory) build(ev model.EV, evse model.EVSE, seP2LimitKW float64) (Profile, error) {
	eff, err := EfficiencyFor(ev.Chemistry, ev.BatterySizeKWh)
	if err != nil {
		return Profile{}, err
	}
	ch, err := ChargingCurve(ev, evse)
	if err != nil {
		return Profile{}, err
	}
	volt, err := VoltageLimitFor(evse.Level, seP2LimitKW)
	if err != nil {
		return Profile{}, err
	}
	var custom *Ramping
	if r, ok := f.Ramping(ev, evse); ok {
		custom = &r
	}
	tb, err := TransitionsFor(evse.Level, custom)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		EV:          ev,
		EVSE:        evse,
		Efficiency:  eff,
		Charging:    ch,
		Discharging: ch.Mirror(),
		Voltage:     volt,
		Transitions: tb,
	}, nil
}

// BatterySize returns the capacity of the next battery of evType: the
// inventory size, or a degraded draw when WithDegradation is set. Draws are
// taken in call order, so callers that need reproducible runs must call it
// from a single goroutine.
func (f *Factory) BatterySize(evType string) (float64, error) {
	ev, err := f.inv.EV(evType)
	if err != nil {
		return 0, err
	}
	if f.rng == nil {
		return ev.BatterySizeKWh, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return DegradedSize(ev.Chemistry, ev.BatterySizeKWh, f.rng), nil
}

// NewBattery assembles a battery for a pair at initSOC. A non-positive
// seP2LimitKW uses the EVSE power limit and a non-positive sizeKWh the
// inventory size. NewBattery never draws from the degradation source; pass
// a size from BatterySize instead.
func (f *Factory) NewBattery(evType, evseType string, seP2LimitKW, sizeKWh, initSOC float64) (*battery.Battery, error) {
	ev, evse, err := f.lookup(evType, evseType)
	if err != nil {
		return nil, err
	}
	if seP2LimitKW <= 0 {
		seP2LimitKW = evse.PowerLimitKW
	}

	var p Profile
	if sizeKWh > 0 && sizeKWh != ev.BatterySizeKWh {
		ev.BatterySizeKWh = sizeKWh
		p, err = f.build(ev, evse, seP2LimitKW)
	} else if seP2LimitKW != evse.PowerLimitKW {
		p, err = f.build(ev, evse, seP2LimitKW)
	} else {
		p, err = f.Profile(evType, evseType)
	}
	if err != nil {
		return nil, err
	}

	calc := func(dir curve.Direction, c curve.SOCvsP2) (energylimit.Calculator, error) {
		return energylimit.NewCalculator(energylimit.Config{
			Direction:               dir,
			Losses:                  f.opts.Losses,
			BatterySizeKWh:          p.EV.BatterySizeKWh,
			Efficiency:              p.Efficiency,
			Curve:                   c,
			VoltageLimit:            p.Voltage,
			RecalcExponentThreshold: f.opts.RecalcExponentThreshold,
			MaxP2ErrorKW:            f.opts.MaxP2ErrorKW,
		})
	}
	chg, err := calc(curve.Charging, p.Charging)
	if err != nil {
		return nil, err
	}
	dis, err := calc(curve.Discharging, p.Discharging)
	if err != nil {
		return nil, err
	}
	b, err := battery.New(battery.Params{
		SizeKWh:        p.EV.BatterySizeKWh,
		InitSOC:        initSOC,
		NeverDischarge: f.opts.NeverDischarge,
		FullSOC:        f.opts.FullSOC,
		EmptySOC:       100 - f.opts.FullSOC,
		Efficiency:     p.Efficiency,
		Charging:       chg,
		Discharging:    dis,
		Transitions:    p.Transitions,
	})
	if err != nil {
		return nil, fmt.Errorf("battery %s on %s: %w", evType, evseType, err)
	}
	return b, nil
}

// NewChargeModel assembles the charge model of event ev at an EVSE type,
// drawing its battery size with BatterySize.
func (f *Factory) NewChargeModel(ev chargemodel.Event, evseType string, seP2LimitKW float64) (*chargemodel.Model, error) {
	size, err := f.BatterySize(ev.VehicleType)
	if err != nil {
		return nil, err
	}
	return f.NewSizedChargeModel(ev, evseType, seP2LimitKW, size)
}

// NewSizedChargeModel is NewChargeModel with a battery of sizeKWh.
func (f *Factory) NewSizedChargeModel(ev chargemodel.Event, evseType string, seP2LimitKW, sizeKWh float64) (*chargemodel.Model, error) {
	b, err := f.NewBattery(ev.VehicleType, evseType, seP2LimitKW, sizeKWh, ev.ArrivalSOC)
	if err != nil {
		return nil, err
	}
	return chargemodel.New(ev, b, f.opts.FullSOC)
}

// NewConverter builds the AC to DC converter of an EVSE type. A
// non-positive seP2LimitKW rates it at the EVSE power limit.
func (f *Factory) NewConverter(evseType string, seP2LimitKW float64, kind converter.Kind) (converter.Converter, error) {
	evse, err := f.inv.EVSE(evseType)
	if err != nil {
		return converter.Converter{}, err
	}
	if seP2LimitKW <= 0 {
		seP2LimitKW = evse.PowerLimitKW
	}
	return ConverterFor(evse, kind, seP2LimitKW)
}
