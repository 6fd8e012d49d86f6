package model

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownEV is returned for a vehicle type missing from the inventory.
	ErrUnknownEV = errors.New("unknown ev type")
	// ErrUnknownEVSE is returned for an EVSE type missing from the inventory.
	ErrUnknownEVSE = errors.New("unknown evse type")
)

// Inventory indexes the vehicle and equipment types available to a run.
type Inventory struct {
	evs   map[string]EV
	evses map[string]EVSE
}

// NewInventory validates every entry and rejects duplicate types.
func NewInventory(evs []EV, evses []EVSE) (Inventory, error) {
	inv := Inventory{evs: make(map[string]EV, len(evs)), evses: make(map[string]EVSE, len(evses))}
	for _, v := range evs {
		if err := v.Validate(); err != nil {
			return Inventory{}, err
		}
		if _, dup := inv.evs[v.Type]; dup {
			return Inventory{}, fmt.Errorf("duplicate ev type %s", v.Type)
		}
		inv.evs[v.Type] = v
	}
	for _, e := range evses {
		if err := e.Validate(); err != nil {
			return Inventory{}, err
		}
		if _, dup := inv.evses[e.Type]; dup {
			return Inventory{}, fmt.Errorf("duplicate evse type %s", e.Type)
		}
		inv.evses[e.Type] = e
	}
	return inv, nil
}

// EV looks up a vehicle type.
func (i Inventory) EV(t string) (EV, error) {
	v, ok := i.evs[t]
	if !ok {
		return EV{}, fmt.Errorf("%w: %s", ErrUnknownEV, t)
	}
	return v, nil
}

// EVSE looks up an equipment type.
func (i Inventory) EVSE(t string) (EVSE, error) {
	e, ok := i.evses[t]
	if !ok {
		return EVSE{}, fmt.Errorf("%w: %s", ErrUnknownEVSE, t)
	}
	return e, nil
}

// EVTypes returns the vehicle types in lexical order.
func (i Inventory) EVTypes() []string { return sortedKeys(i.evs) }

// EVSETypes returns the equipment types in lexical order.
func (i Inventory) EVSETypes() []string { return sortedKeys(i.evses) }

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultInventory is the built-in set of vehicle and equipment types.
func DefaultInventory() Inventory {
	inv, err := NewInventory(
		[]EV{
			{Type: "ld_50kWh", Chemistry: NMC, BatterySizeKWh: 50, BatterySizeAh1C: 125, ACChargeRateKW: 7.2},
			{Type: "ld_100kWh", Chemistry: NMC, BatterySizeKWh: 100, BatterySizeAh1C: 250, ACChargeRateKW: 11.5},
			{Type: "md_200kWh", Chemistry: NMC, BatterySizeKWh: 200, BatterySizeAh1C: 250, ACChargeRateKW: 19.2},
			{Type: "bev_LMO_60kWh", Chemistry: LMO, BatterySizeKWh: 60, BatterySizeAh1C: 160, ACChargeRateKW: 7.2},
			{Type: "bev_LTO_35kWh", Chemistry: LTO, BatterySizeKWh: 35, BatterySizeAh1C: 100, ACChargeRateKW: 6.6},
		},
		[]EVSE{
			{Type: "L1_1440", Level: L1, PowerLimitKW: 1.44, CurrentLimitA: 12},
			{Type: "L2_7200", Level: L2, PowerLimitKW: 7.2, CurrentLimitA: 30},
			{Type: "L2_17280", Level: L2, PowerLimitKW: 17.28, CurrentLimitA: 72},
			{Type: "dcfc_50", Level: DCFC, PowerLimitKW: 50, CurrentLimitA: 125},
			{Type: "xfc_150", Level: DCFC, PowerLimitKW: 150, CurrentLimitA: 375},
			{Type: "xfc_350", Level: DCFC, PowerLimitKW: 350, CurrentLimitA: 875},
		},
	)
	if err != nil {
		panic(err)
	}
	return inv
}
