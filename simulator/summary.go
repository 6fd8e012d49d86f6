package simulator

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats describes the distribution of one quantity over a fleet.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summary aggregates the results of a fleet run.
type Summary struct {
	Sessions     int     `json:"sessions"`
	NeedsMet     int     `json:"needs_met"`
	TotalKWh     float64 `json:"total_energy_kWh"`
	TotalGridKWh float64 `json:"total_grid_energy_kWh"`
	EnergyKWh    Stats   `json:"energy_kWh"`
	FinalSOC     Stats   `json:"final_soc"`
	DurationMin  Stats   `json:"charge_duration_min"`
}

// Summarize computes fleet statistics over results.
func Summarize(results []Result) Summary {
	s := Summary{Sessions: len(results)}
	if len(results) == 0 {
		return s
	}
	energy := make([]float64, len(results))
	soc := make([]float64, len(results))
	dur := make([]float64, len(results))
	grid := make([]float64, len(results))
	for i, r := range results {
		energy[i] = r.EnergyKWh
		grid[i] = r.GridEnergyKWh
		soc[i] = r.FinalSOC
		dur[i] = r.Duration.Minutes()
		if r.NeedsMet {
			s.NeedsMet++
		}
	}
	s.TotalKWh = floats.Sum(energy)
	s.TotalGridKWh = floats.Sum(grid)
	s.EnergyKWh = describe(energy)
	s.FinalSOC = describe(soc)
	s.DurationMin = describe(dur)
	return s
}

func describe(x []float64) Stats {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	return Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		P50:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
}
