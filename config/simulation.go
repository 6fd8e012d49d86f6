package config

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/simulator"
)

// SimulationConfig holds the stepping parameters shared by every command.
type SimulationConfig struct {
	TimestepSec  float64 `json:"timestep_sec"`
	HorizonHours float64 `json:"horizon_hours"`
	PuVrms       float64 `json:"pu_vrms"`
	// SEP2LimitKW caps supply equipment power when positive.
	SEP2LimitKW float64 `json:"sep2_limit_kw"`
	// DecisionMetric is target_soc, depart_time or whichever_first.
	DecisionMetric string `json:"decision_metric"`
	// SOCMode is target_charging or block_charging.
	SOCMode                         string  `json:"soc_mode"`
	DepartTimeMode                  string  `json:"depart_time_mode"`
	SOCBlockMaxUndershootPct        float64 `json:"soc_block_max_undershoot_pct"`
	DepartTimeBlockMaxUndershootPct float64 `json:"depart_time_block_max_undershoot_pct"`
	// Converter is pf or Q_setpoint.
	Converter    string  `json:"converter"`
	TargetQ3KVAR float64 `json:"target_q3_kvar"`
	TargetP3KW   float64 `json:"target_p3_kw"`
}

// SetDefaults applies fallback values for optional fields.
func (c *SimulationConfig) SetDefaults() {
	if c.TimestepSec == 0 {
		c.TimestepSec = 60
	}
	if c.HorizonHours == 0 {
		c.HorizonHours = 12
	}
	if c.PuVrms == 0 {
		c.PuVrms = 1
	}
	if c.DecisionMetric == "" {
		c.DecisionMetric = chargemodel.StopAtTargetSOC.String()
	}
	if c.SOCMode == "" {
		c.SOCMode = chargemodel.TargetCharging.String()
	}
	if c.DepartTimeMode == "" {
		c.DepartTimeMode = chargemodel.TargetCharging.String()
	}
	if c.Converter == "" {
		c.Converter = converter.PowerFactor.String()
	}
}

// Validate checks the configuration ranges.
func (c SimulationConfig) Validate() error {
	if c.TimestepSec <= 0 {
		return fmt.Errorf("timestep_sec must be >0")
	}
	if c.HorizonHours <= 0 {
		return fmt.Errorf("horizon_hours must be >0")
	}
	if c.PuVrms <= 0 {
		return fmt.Errorf("pu_vrms must be >0")
	}
	if c.SEP2LimitKW < 0 {
		return fmt.Errorf("sep2_limit_kw must not be negative")
	}
	if c.TargetP3KW < 0 {
		return fmt.Errorf("target_p3_kw must not be negative")
	}
	if _, err := converter.ParseKind(c.Converter); err != nil {
		return fmt.Errorf("converter: %w", err)
	}
	_, err := c.StopCriteria()
	return err
}

// StopCriteria parses the stop settings.
func (c SimulationConfig) StopCriteria() (chargemodel.StopCriteria, error) {
	s := chargemodel.StopCriteria{
		SOCBlockMaxUndershootPct:        c.SOCBlockMaxUndershootPct,
		DepartTimeBlockMaxUndershootPct: c.DepartTimeBlockMaxUndershootPct,
	}
	if err := s.DecisionMetric.UnmarshalText([]byte(c.DecisionMetric)); err != nil {
		return s, err
	}
	if err := s.SOCMode.UnmarshalText([]byte(c.SOCMode)); err != nil {
		return s, err
	}
	if err := s.DepartTimeMode.UnmarshalText([]byte(c.DepartTimeMode)); err != nil {
		return s, err
	}
	return s, nil
}

// RunConfig returns the runner parameters with the given worker bound. An
// unparsable converter falls back to the runner default; Validate reports it.
func (c SimulationConfig) RunConfig(workers int) simulator.RunConfig {
	kind, _ := converter.ParseKind(c.Converter)
	return simulator.RunConfig{
		TimestepSec:  c.TimestepSec,
		PuVrms:       c.PuVrms,
		Workers:      workers,
		SEP2LimitKW:  c.SEP2LimitKW,
		Converter:    kind,
		TargetQ3KVAR: c.TargetQ3KVAR,
		TargetP3KW:   c.TargetP3KW,
	}
}

// FleetConfig configures generated fleets.
type FleetConfig struct {
	Size    int   `json:"size"`
	Seed    int64 `json:"seed"`
	Workers int   `json:"workers"`
	// StochasticDegradation draws a degraded capacity for every battery.
	StochasticDegradation bool     `json:"stochastic_degradation"`
	EVTypes               []string `json:"ev_types"`
	EVSETypes             []string `json:"evse_types"`
	// Start is the RFC3339 start of the arrival window.
	Start         string  `json:"start"`
	StayMinHours  float64 `json:"stay_min_hours"`
	StayMaxHours  float64 `json:"stay_max_hours"`
	ArrivalSOCMin float64 `json:"arrival_soc_min"`
	ArrivalSOCMax float64 `json:"arrival_soc_max"`
	DepartureSOC  float64 `json:"departure_soc"`
	// AvailabilityFile is a JSON map of hour to arrival weight.
	AvailabilityFile string `json:"availability_file"`
}

// SetDefaults applies fallback values for optional fields.
func (c *FleetConfig) SetDefaults() {
	if c.Size == 0 {
		c.Size = 100
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.Start == "" {
		c.Start = "2024-01-01T00:00:00Z"
	}
	if c.StayMinHours == 0 {
		c.StayMinHours = 1
	}
	if c.StayMaxHours == 0 {
		c.StayMaxHours = 10
	}
	if c.ArrivalSOCMax == 0 {
		c.ArrivalSOCMin, c.ArrivalSOCMax = 10, 50
	}
	if c.DepartureSOC == 0 {
		c.DepartureSOC = 90
	}
}

// Validate checks the configuration ranges.
func (c FleetConfig) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if _, err := time.Parse(time.RFC3339, c.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if c.StayMinHours <= 0 || c.StayMinHours > c.StayMaxHours {
		return fmt.Errorf("stay_min_hours > stay_max_hours")
	}
	if c.ArrivalSOCMin < 0 || c.ArrivalSOCMin > c.ArrivalSOCMax || c.ArrivalSOCMax > 100 {
		return fmt.Errorf("arrival soc range [%g, %g] invalid", c.ArrivalSOCMin, c.ArrivalSOCMax)
	}
	if c.DepartureSOC <= 0 || c.DepartureSOC > 100 {
		return fmt.Errorf("departure_soc must be in (0, 100]")
	}
	return nil
}

// Rand returns the seeded random source of the fleet.
func (c FleetConfig) Rand() *rand.Rand { return rand.New(rand.NewSource(c.Seed)) }

// Generator converts the section into generation parameters, reading the
// availability file when one is set.
func (c FleetConfig) Generator(stop chargemodel.StopCriteria) (simulator.FleetConfig, error) {
	start, err := time.Parse(time.RFC3339, c.Start)
	if err != nil {
		return simulator.FleetConfig{}, err
	}
	g := simulator.FleetConfig{
		Size:          c.Size,
		Start:         start,
		EVTypes:       c.EVTypes,
		EVSETypes:     c.EVSETypes,
		StayMin:       hours(c.StayMinHours),
		StayMax:       hours(c.StayMaxHours),
		ArrivalSOCMin: c.ArrivalSOCMin,
		ArrivalSOCMax: c.ArrivalSOCMax,
		DepartureSOC:  c.DepartureSOC,
		Stop:          stop,
	}
	if c.AvailabilityFile != "" {
		data, err := os.ReadFile(c.AvailabilityFile)
		if err != nil {
			return simulator.FleetConfig{}, err
		}
		if g.Availability, err = simulator.LoadAvailabilityProfile(data); err != nil {
			return simulator.FleetConfig{}, fmt.Errorf("availability file: %w", err)
		}
	}
	return g, nil
}

func hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }
