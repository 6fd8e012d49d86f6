package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evcharge/config"
	"github.com/kilianp07/evcharge/core/logger"
	coremetrics "github.com/kilianp07/evcharge/core/metrics"
	infralogger "github.com/kilianp07/evcharge/infra/logger"
	inframetrics "github.com/kilianp07/evcharge/infra/metrics"
	"github.com/kilianp07/evcharge/infra/mqtt"
	"github.com/kilianp07/evcharge/internal/eventbus"
	"github.com/kilianp07/evcharge/pkg/export"
	"github.com/kilianp07/evcharge/simulator"
)

// progressEvery is the number of steps between progress log lines.
const progressEvery = 10000

var (
	fleetSize    int
	fleetSeed    int64
	fleetResults string
	fleetJSON    bool
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Simulate a seeded fleet of charge sessions and summarize it",
	RunE:  runFleet,
}

func init() {
	fleetCmd.Flags().IntVarP(&fleetSize, "size", "n", 0, "number of sessions (overrides fleet.size)")
	fleetCmd.Flags().Int64Var(&fleetSeed, "seed", 0, "random seed (overrides fleet.seed)")
	fleetCmd.Flags().StringVar(&fleetResults, "results", "", "write per-session results as CSV to this file")
	fleetCmd.Flags().BoolVar(&fleetJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(fleetCmd)
}

func runFleet(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("size") {
		cfg.Fleet.Size = fleetSize
	}
	if cmd.Flags().Changed("seed") {
		cfg.Fleet.Seed = fleetSeed
	}
	log := infralogger.New("fleet")

	f, err := newFactory(cfg)
	if err != nil {
		return err
	}
	stopCriteria, err := cfg.Simulation.StopCriteria()
	if err != nil {
		return err
	}
	gen, err := cfg.Fleet.Generator(stopCriteria)
	if err != nil {
		return err
	}
	sessions, err := simulator.GenerateFleet(gen, f.Inventory(), cfg.Fleet.Rand())
	if err != nil {
		return fmt.Errorf("generate fleet: %w", err)
	}
	log.Infof("generated %d sessions (seed %d)", len(sessions), cfg.Fleet.Seed)

	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink(sink, log)

	if cfg.Prometheus.Addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, cfg.Prometheus.Addr, nil); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}

	bus := eventbus.NewTyped[coremetrics.StepEvent]()
	done := watchProgress(bus.Subscribe(), log)

	runner, err := simulator.NewRunner(f, cfg.Simulation.RunConfig(cfg.Fleet.Workers),
		simulator.WithSink(sink),
		simulator.WithBus(bus),
		simulator.WithLogger(log),
	)
	if err != nil {
		return err
	}
	results, err := runner.Run(ctx, sessions)
	bus.Close()
	<-done
	if err != nil {
		return err
	}
	if n := bus.Dropped(); n > 0 {
		log.Warnf("progress watcher missed %d steps", n)
	}
	if n := runner.SinkErrors(); n > 0 {
		log.Warnf("%d metrics writes failed", n)
	}

	if fleetResults != "" {
		if err := writeResults(fleetResults, results); err != nil {
			return err
		}
	}
	summary := simulator.Summarize(results)
	if fleetJSON {
		return export.WriteJSON(cmd.OutOrStdout(), summary)
	}
	return printSummary(cmd.OutOrStdout(), summary)
}

// buildSink assembles the configured sinks plus the MQTT publisher when a
// broker is set.
func buildSink(cfg *config.Config) (coremetrics.Sink, error) {
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	if !cfg.MQTT.Enabled() {
		return sink, nil
	}
	pub, err := mqtt.NewTelemetryPublisher(cfg.MQTT)
	if err != nil {
		closeSink(sink, logger.NopLogger{})
		return nil, fmt.Errorf("mqtt telemetry: %w", err)
	}
	return coremetrics.NewMultiSink(sink, pub), nil
}

func closeSink(s coremetrics.Sink, log logger.Logger) {
	if c, ok := s.(coremetrics.Closer); ok {
		if err := c.Close(); err != nil {
			log.Errorf("close sink: %v", err)
		}
	}
}

func watchProgress(sub <-chan coremetrics.StepEvent, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var n int
		for range sub {
			n++
			if n%progressEvery == 0 {
				log.Debugf("%d steps simulated", n)
			}
		}
		log.Infof("%d steps simulated", n)
	}()
	return done
}

func writeResults(path string, results []simulator.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteResultsCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, s simulator.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sessions\t%d\n", s.Sessions)
	fmt.Fprintf(tw, "needs met\t%d\n", s.NeedsMet)
	fmt.Fprintf(tw, "total energy (kWh)\t%.2f\n", s.TotalKWh)
	fmt.Fprintf(tw, "total grid energy (kWh)\t%.2f\n", s.TotalGridKWh)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "\tmean\tstddev\tmin\tp50\tp90\tmax")
	for _, row := range []struct {
		name string
		st   simulator.Stats
	}{
		{"energy (kWh)", s.EnergyKWh},
		{"final soc (%)", s.FinalSOC},
		{"duration (min)", s.DurationMin},
	} {
		st := row.st
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", row.name, st.Mean, st.StdDev, st.Min, st.P50, st.P90, st.Max)
	}
	return tw.Flush()
}
