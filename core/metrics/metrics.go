package metrics

import (
	"time"

	"github.com/kilianp07/evcharge/core/energylimit"
)

// StepEvent is the outcome of one battery timestep of a charge event.
type StepEvent struct {
	EventID string             `json:"event_id"`
	Vehicle string             `json:"vehicle_type"`
	EVSE    string             `json:"evse_type"`
	Time    time.Time          `json:"time"`
	SOC     float64            `json:"soc"`
	P1KW    float64            `json:"P1_kW"`
	P2KW    float64            `json:"P2_kW"`
	P3KW    float64            `json:"P3_kW"`
	Q3KVAR  float64            `json:"Q3_kVAR"`
	Status  energylimit.Status `json:"status"`
}

// SessionEvent summarizes a finished charge event.
type SessionEvent struct {
	EventID   string  `json:"event_id"`
	Vehicle   string  `json:"vehicle_type"`
	EVSE      string  `json:"evse_type"`
	EnergyKWh float64 `json:"energy_kWh"`
	// GridEnergyKWh is the active energy drawn on the grid side of the charger.
	GridEnergyKWh float64       `json:"grid_energy_kWh"`
	InitialSOC    float64       `json:"initial_soc"`
	FinalSOC      float64       `json:"final_soc"`
	NeedsMet      bool          `json:"needs_met"`
	Duration      time.Duration `json:"duration"`
	Time          time.Time     `json:"time"`
}

// Sink records battery steps.
type Sink interface {
	RecordStep(ev StepEvent) error
}

// SessionRecorder is implemented by sinks that also record session summaries.
type SessionRecorder interface {
	RecordSession(ev SessionEvent) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

// NopSink implements Sink and SessionRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordStep(StepEvent) error       { return nil }
func (NopSink) RecordSession(SessionEvent) error { return nil }
