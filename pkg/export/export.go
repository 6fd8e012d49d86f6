// Package export writes simulation traces and fleet results as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/evcharge/simulator"
)

// StepHeader is the CSV header written by WriteCSV.
var StepHeader = []string{
	"time_unix",
	"soc_t1",
	"P1_kW",
	"P2_kW",
	"time_step_duration_hrs",
	"reached_target_status",
	"E1_energy_to_target_soc_kWh",
	"min_time_to_target_soc_hrs",
	"P2_kW_LB",
	"P2_kW_UB",
	"P3_kW",
	"Q3_kVAR",
}

// ResultHeader is the CSV header written by WriteResultsCSV.
var ResultHeader = []string{
	"event_id",
	"vehicle_type",
	"evse_type",
	"energy_kWh",
	"grid_energy_kWh",
	"initial_soc",
	"final_soc",
	"needs_met",
	"completed",
	"duration_s",
	"steps",
}

// WriteJSON writes v to w as JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes a battery trace to w, one row per step.
func WriteCSV(w io.Writer, steps []simulator.Step) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StepHeader); err != nil {
		return err
	}
	for _, s := range steps {
		rec := []string{
			ff(s.TimeUnix),
			ff(s.SOC),
			ff(s.P1KW),
			ff(s.P2KW),
			ff(s.TimeStepHrs),
			s.Status.String(),
			ff(s.E1ToTargetKWh),
			ff(s.MinTimeToTargetHrs),
			ff(s.P2LowerKW),
			ff(s.P2UpperKW),
			ff(s.P3KW),
			ff(s.Q3KVAR),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultsCSV writes fleet session results to w.
func WriteResultsCSV(w io.Writer, results []simulator.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.EventID,
			r.Vehicle,
			r.EVSE,
			ff(r.EnergyKWh),
			ff(r.GridEnergyKWh),
			ff(r.InitialSOC),
			ff(r.FinalSOC),
			strconv.FormatBool(r.NeedsMet),
			strconv.FormatBool(r.Completed),
			ff(r.Duration.Round(time.Millisecond).Seconds()),
			strconv.Itoa(r.Steps),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
