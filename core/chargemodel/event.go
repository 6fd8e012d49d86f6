// Package chargemodel drives one battery through a charge event: arrival,
// charging toward the requested SOC and completion.
package chargemodel

import (
	"fmt"
	"strings"
)

// DecisionMetric selects what ends a charge event.
type DecisionMetric int

const (
	StopAtTargetSOC DecisionMetric = iota
	StopAtDepartTime
	StopWhicheverFirst
)

var metricNames = map[DecisionMetric]string{
	StopAtTargetSOC:    "target_soc",
	StopAtDepartTime:   "depart_time",
	StopWhicheverFirst: "whichever_first",
}

func (m DecisionMetric) String() string {
	if s, ok := metricNames[m]; ok {
		return s
	}
	return fmt.Sprintf("DecisionMetric(%d)", int(m))
}

func (m DecisionMetric) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *DecisionMetric) UnmarshalText(b []byte) error {
	for k, v := range metricNames {
		if strings.EqualFold(v, string(b)) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown decision metric %q", string(b))
}

// StopMode is how strictly a stop condition is applied. Block charging
// accepts stopping up to an undershoot percentage of the last step early.
type StopMode int

const (
	TargetCharging StopMode = iota
	BlockCharging
)

func (m StopMode) String() string {
	if m == BlockCharging {
		return "block_charging"
	}
	return "target_charging"
}

func (m StopMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *StopMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "target_charging":
		*m = TargetCharging
	case "block_charging":
		*m = BlockCharging
	default:
		return fmt.Errorf("unknown stop mode %q", string(b))
	}
	return nil
}

// StopCriteria configures when the charge needs of an event are met.
type StopCriteria struct {
	DecisionMetric                  DecisionMetric `json:"decision_metric" yaml:"decision_metric"`
	SOCMode                         StopMode       `json:"soc_mode" yaml:"soc_mode"`
	DepartTimeMode                  StopMode       `json:"depart_time_mode" yaml:"depart_time_mode"`
	SOCBlockMaxUndershootPct        float64        `json:"soc_block_max_undershoot_pct" yaml:"soc_block_max_undershoot_pct"`
	DepartTimeBlockMaxUndershootPct float64        `json:"depart_time_block_max_undershoot_pct" yaml:"depart_time_block_max_undershoot_pct"`
}

// Event is one stay of a vehicle at a charger. Times are unix seconds.
type Event struct {
	ID            string       `json:"id"`
	VehicleType   string       `json:"vehicle_type"`
	ArrivalUnix   float64      `json:"arrival_unix_time"`
	DepartureUnix float64      `json:"departure_unix_time"`
	ArrivalSOC    float64      `json:"arrival_soc"`
	DepartureSOC  float64      `json:"departure_soc"`
	Stop          StopCriteria `json:"stop_charge"`
}

// Validate checks the event times and SOC values.
func (e Event) Validate() error {
	switch {
	case !(e.ArrivalUnix < e.DepartureUnix):
		return fmt.Errorf("event %s: arrival %g must be before departure %g", e.ID, e.ArrivalUnix, e.DepartureUnix)
	case e.ArrivalSOC < 0 || e.ArrivalSOC > 100:
		return fmt.Errorf("event %s: arrival soc %g out of range", e.ID, e.ArrivalSOC)
	case e.DepartureSOC < 0 || e.DepartureSOC > 100:
		return fmt.Errorf("event %s: departure soc %g out of range", e.ID, e.DepartureSOC)
	}
	return nil
}
