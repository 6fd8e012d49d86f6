// Package simulator generates charge sessions and drives their charge
// models over a fixed timestep.
package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/core/model"
)

// FleetConfig holds parameters for bulk session generation.
type FleetConfig struct {
	Size  int
	Start time.Time
	// EVTypes and EVSETypes restrict the drawn equipment; empty means all
	// types of the inventory.
	EVTypes   []string
	EVSETypes []string
	// Availability weights the arrival hour after Start; all zero means uniform.
	Availability  [24]float64
	StayMin       time.Duration
	StayMax       time.Duration
	ArrivalSOCMin float64
	ArrivalSOCMax float64
	DepartureSOC  float64
	Stop          chargemodel.StopCriteria
}

// Validate checks the generation bounds.
func (c FleetConfig) Validate() error {
	switch {
	case c.Size < 0:
		return fmt.Errorf("fleet size %d must not be negative", c.Size)
	case c.StayMin <= 0 || c.StayMax < c.StayMin:
		return fmt.Errorf("stay range [%s, %s] invalid", c.StayMin, c.StayMax)
	case c.ArrivalSOCMin < 0 || c.ArrivalSOCMax > 100 || c.ArrivalSOCMax < c.ArrivalSOCMin:
		return fmt.Errorf("arrival soc range [%g, %g] invalid", c.ArrivalSOCMin, c.ArrivalSOCMax)
	case c.DepartureSOC <= 0 || c.DepartureSOC > 100:
		return fmt.Errorf("departure soc %g out of range", c.DepartureSOC)
	}
	for h, w := range c.Availability {
		if w < 0 {
			return fmt.Errorf("availability hour %d is negative", h)
		}
	}
	return nil
}

// Session is a charge event bound to the EVSE type it charges at.
type Session struct {
	Event    chargemodel.Event `json:"event"`
	EVSEType string            `json:"evse_type"`
}

// GenerateFleet draws cfg.Size sessions from inv. All randomness, including
// the event ids, comes from rng so a seed reproduces the fleet.
func GenerateFleet(cfg FleetConfig, inv model.Inventory, rng *rand.Rand) ([]Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("generate fleet: nil random source")
	}
	evs := cfg.EVTypes
	if len(evs) == 0 {
		evs = inv.EVTypes()
	}
	evses := cfg.EVSETypes
	if len(evses) == 0 {
		evses = inv.EVSETypes()
	}
	if len(evs) == 0 || len(evses) == 0 {
		return nil, errors.New("generate fleet: empty inventory")
	}
	for _, t := range evs {
		if _, err := inv.EV(t); err != nil {
			return nil, err
		}
	}
	for _, t := range evses {
		if _, err := inv.EVSE(t); err != nil {
			return nil, err
		}
	}

	start := float64(cfg.Start.Unix())
	out := make([]Session, cfg.Size)
	for i := range out {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("event id: %w", err)
		}
		arrival := start + (float64(arrivalHour(cfg.Availability, rng))+rng.Float64())*3600
		stay := cfg.StayMin.Seconds() + rng.Float64()*(cfg.StayMax-cfg.StayMin).Seconds()
		out[i] = Session{
			Event: chargemodel.Event{
				ID:            id.String(),
				VehicleType:   evs[rng.Intn(len(evs))],
				ArrivalUnix:   arrival,
				DepartureUnix: arrival + stay,
				ArrivalSOC:    cfg.ArrivalSOCMin + rng.Float64()*(cfg.ArrivalSOCMax-cfg.ArrivalSOCMin),
				DepartureSOC:  cfg.DepartureSOC,
				Stop:          cfg.Stop,
			},
			EVSEType: evses[rng.Intn(len(evses))],
		}
	}
	return out, nil
}

func arrivalHour(weights [24]float64, rng *rand.Rand) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return rng.Intn(24)
	}
	r := rng.Float64() * total
	for h, w := range weights {
		if r < w {
			return h
		}
		r -= w
	}
	return 23
}

// LoadAvailabilityProfile reads an hourly arrival weighting from JSON
// keyed by hour ("0" to "23"). Other keys are ignored.
func LoadAvailabilityProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		var hour int
		if _, err := fmt.Sscanf(h, "%d", &hour); err != nil {
			continue
		}
		if hour >= 0 && hour < 24 {
			prof[hour] = v
		}
	}
	return prof, nil
}
