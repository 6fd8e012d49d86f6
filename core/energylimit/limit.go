// Package energylimit computes how much energy a battery can take or give in
// one timestep when it follows a piecewise linear SOC vs P2 curve.
package energylimit

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSegment is returned when a calculator is built on an empty curve.
	ErrNoSegment = errors.New("soc vs p2 curve has no segments")
	// ErrBatterySize is returned for a non-positive battery capacity.
	ErrBatterySize = errors.New("battery size must be positive")
)

// Status tells whether a target SOC is reachable within the timestep.
type Status int

const (
	CanNotReach Status = iota
	CanReach
	HavePassed
	Unknown
	TargetP2IsZero
)

var statusNames = [...]string{
	CanNotReach:    "can_not_reach_this_timestep",
	CanReach:       "can_reach_this_timestep",
	HavePassed:     "have_passed_target",
	Unknown:        "unknown",
	TargetP2IsZero: "target_P2_is_zero",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// Limit is the E1 (battery side) energy bound for one timestep.
type Limit struct {
	TargetSOC          float64 `json:"target_soc"`
	MaxE1KWh           float64 `json:"max_E1_energy_kWh"`
	MaxE1ChargeTimeHrs float64 `json:"max_E1_energy_charge_time_hrs"`
	Status             Status  `json:"reached_target_status"`
	E1ToTargetKWh      float64 `json:"E1_energy_to_target_soc_kWh"`
	MinTimeToTargetHrs float64 `json:"min_time_to_target_soc_hrs"`
}

// Reachable reports whether the target can be reached within the step.
func (l Limit) Reachable() bool { return l.Status == CanReach }
