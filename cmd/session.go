package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kilianp07/evcharge/config"
	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/infra/logger"
	"github.com/kilianp07/evcharge/simulator"
)

// sessionFlags describe the single charge session of simulate and plot.
type sessionFlags struct {
	ev           string
	evse         string
	arrivalSOC   float64
	departureSOC float64
	hours        float64
	output       string
}

func (f *sessionFlags) register(cmd *cobra.Command, defaultOutput string) {
	cmd.Flags().StringVar(&f.ev, "ev", "ld_50kWh", "vehicle type")
	cmd.Flags().StringVar(&f.evse, "evse", "L2_7200", "supply equipment type")
	cmd.Flags().Float64Var(&f.arrivalSOC, "arrival-soc", 20, "SOC at arrival in percent")
	cmd.Flags().Float64Var(&f.departureSOC, "departure-soc", 80, "requested SOC at departure in percent")
	cmd.Flags().Float64Var(&f.hours, "hours", 0, "stay length in hours (0 uses simulation.horizon_hours)")
	cmd.Flags().StringVarP(&f.output, "output", "o", defaultOutput, "output file (- for stdout)")
}

func (f *sessionFlags) session(cfg *config.Config) (simulator.Session, error) {
	stop, err := cfg.Simulation.StopCriteria()
	if err != nil {
		return simulator.Session{}, err
	}
	start, err := time.Parse(time.RFC3339, cfg.Fleet.Start)
	if err != nil {
		return simulator.Session{}, err
	}
	hours := f.hours
	if hours <= 0 {
		hours = cfg.Simulation.HorizonHours
	}
	arrival := float64(start.Unix())
	s := simulator.Session{
		Event: chargemodel.Event{
			ID:            uuid.NewString(),
			VehicleType:   f.ev,
			ArrivalUnix:   arrival,
			DepartureUnix: arrival + hours*3600,
			ArrivalSOC:    f.arrivalSOC,
			DepartureSOC:  f.departureSOC,
			Stop:          stop,
		},
		EVSEType: f.evse,
	}
	if err := s.Event.Validate(); err != nil {
		return simulator.Session{}, err
	}
	return s, nil
}

// trace loads the configuration and simulates the flagged session.
func (f *sessionFlags) trace(ctx context.Context, cmd *cobra.Command, component string) ([]simulator.Step, simulator.Result, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, simulator.Result{}, err
	}
	fac, err := newFactory(cfg)
	if err != nil {
		return nil, simulator.Result{}, err
	}
	s, err := f.session(cfg)
	if err != nil {
		return nil, simulator.Result{}, err
	}
	log := logger.New(component)
	r, err := simulator.NewRunner(fac, cfg.Simulation.RunConfig(1), simulator.WithLogger(log))
	if err != nil {
		return nil, simulator.Result{}, err
	}
	steps, res, err := r.Trace(ctx, s)
	if err != nil {
		return nil, simulator.Result{}, err
	}
	log.Infof("%s on %s: %d steps, %.3f kWh (%.3f kWh from grid), soc %.2f -> %.2f, needs met %t",
		f.ev, f.evse, res.Steps, res.EnergyKWh, res.GridEnergyKWh, res.InitialSOC, res.FinalSOC, res.NeedsMet)
	return steps, res, nil
}

// openOutput returns stdout for "-" and a created file otherwise.
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" || path == "" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
