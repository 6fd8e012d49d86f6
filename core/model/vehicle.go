package model

import (
	"errors"
	"fmt"
	"strings"
)

// Chemistry identifies the battery cell chemistry of a vehicle.
type Chemistry int

const (
	LMO Chemistry = iota
	LTO
	NMC
)

// String returns the chemistry name.
func (c Chemistry) String() string {
	switch c {
	case LMO:
		return "LMO"
	case LTO:
		return "LTO"
	case NMC:
		return "NMC"
	default:
		return "unknown"
	}
}

// ParseChemistry is case-insensitive.
func ParseChemistry(s string) (Chemistry, error) {
	switch strings.ToUpper(s) {
	case "LMO":
		return LMO, nil
	case "LTO":
		return LTO, nil
	case "NMC":
		return NMC, nil
	}
	return 0, fmt.Errorf("unknown battery chemistry %q", s)
}

func (c Chemistry) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Chemistry) UnmarshalText(b []byte) (err error) {
	*c, err = ParseChemistry(string(b))
	return err
}

// Level is the charging equipment class.
type Level int

const (
	L1 Level = iota
	L2
	DCFC
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case DCFC:
		return "DCFC"
	default:
		return "unknown"
	}
}

// ParseLevel is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "L1":
		return L1, nil
	case "L2":
		return L2, nil
	case "DCFC":
		return DCFC, nil
	}
	return 0, fmt.Errorf("unknown charging level %q", s)
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) (err error) {
	*l, err = ParseLevel(string(b))
	return err
}

// EV describes a vehicle type.
type EV struct {
	Type            string    `json:"type" yaml:"type"`
	Chemistry       Chemistry `json:"chemistry" yaml:"chemistry"`
	BatterySizeKWh  float64   `json:"battery_size_kwh" yaml:"battery_size_kwh"`
	BatterySizeAh1C float64   `json:"battery_size_ah_1c" yaml:"battery_size_ah_1c"` // current drawn at 1C
	ACChargeRateKW  float64   `json:"ac_charge_rate_kw" yaml:"ac_charge_rate_kw"`
}

// Validate checks that the vehicle type is usable by the profile factories.
func (v EV) Validate() error {
	switch {
	case v.Type == "":
		return errors.New("ev type must not be empty")
	case v.BatterySizeKWh <= 0:
		return fmt.Errorf("ev %s: battery capacity must be positive", v.Type)
	case v.BatterySizeAh1C <= 0:
		return fmt.Errorf("ev %s: 1C current must be positive", v.Type)
	case v.ACChargeRateKW <= 0:
		return fmt.Errorf("ev %s: AC charge rate must be positive", v.Type)
	}
	return nil
}

// EVSE describes a supply equipment type.
type EVSE struct {
	Type          string  `json:"type" yaml:"type"`
	Level         Level   `json:"level" yaml:"level"`
	PowerLimitKW  float64 `json:"power_limit_kw" yaml:"power_limit_kw"`
	CurrentLimitA float64 `json:"current_limit_a" yaml:"current_limit_a"`
}

// Validate checks the equipment limits.
func (e EVSE) Validate() error {
	switch {
	case e.Type == "":
		return errors.New("evse type must not be empty")
	case e.PowerLimitKW <= 0:
		return fmt.Errorf("evse %s: power limit must be positive", e.Type)
	case e.Level == DCFC && e.CurrentLimitA <= 0:
		return fmt.Errorf("evse %s: DCFC current limit must be positive", e.Type)
	}
	return nil
}
