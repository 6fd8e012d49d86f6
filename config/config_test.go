package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/evcharge/core/chargemodel"
	"github.com/kilianp07/evcharge/core/converter"
	"github.com/kilianp07/evcharge/core/model"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `simulation:
  timestep_sec: 30
  pu_vrms: 0.98
  decision_metric: "whichever_first"
  soc_mode: "block_charging"
  converter: "q_setpoint"
  target_q3_kvar: -2.5
fleet:
  size: 25
  seed: 42
  workers: 4
  stochastic_degradation: true
  evse_types: ["L2_7200", "dcfc_50"]
logging:
  level: "debug"
metrics:
  sinks:
    - type: "nop"
    - type: "influx"
      conf:
        url: "http://localhost:8086"
prometheus:
  addr: ":2112"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "fleet/a"
  qos: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"timestep_sec", cfg.Simulation.TimestepSec, 30.0},
		{"horizon_default", cfg.Simulation.HorizonHours, 12.0},
		{"pu_vrms", cfg.Simulation.PuVrms, 0.98},
		{"fleet.size", cfg.Fleet.Size, 25},
		{"fleet.seed", cfg.Fleet.Seed, int64(42)},
		{"fleet.workers", cfg.Fleet.Workers, 4},
		{"fleet.degradation", cfg.Fleet.StochasticDegradation, true},
		{"fleet.evse_types", len(cfg.Fleet.EVSETypes), 2},
		{"fleet.departure_default", cfg.Fleet.DepartureSOC, 90.0},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"metrics_sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics_influx", cfg.Metrics.Sinks[1].Conf["url"], "http://localhost:8086"},
		{"prometheus.addr", cfg.Prometheus.Addr, ":2112"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "fleet/a"},
		{"qos", cfg.MQTT.QoS, byte(1)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}

	stop, err := cfg.Simulation.StopCriteria()
	if err != nil {
		t.Fatalf("stop criteria: %v", err)
	}
	if stop.DecisionMetric != chargemodel.StopWhicheverFirst || stop.SOCMode != chargemodel.BlockCharging {
		t.Fatalf("unexpected stop criteria %+v", stop)
	}
	if rc := cfg.Simulation.RunConfig(cfg.Fleet.Workers); rc.TimestepSec != 30 || rc.Workers != 4 ||
		rc.Converter != converter.QSetpoint || rc.TargetQ3KVAR != -2.5 {
		t.Fatalf("unexpected run config %+v", rc)
	}
}

func TestLoadJSONWithEnv(t *testing.T) {
	path := writeFile(t, "config.json", `{"fleet": {"size": 3}, "logging": {"level": "warn"}}`)
	t.Setenv("EVCHARGE_FLEET__SIZE", "7")
	t.Setenv("EVCHARGE_SIMULATION__TIMESTEP_SEC", "15")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Fleet.Size != 7 {
		t.Fatalf("env override not applied: size %d", cfg.Fleet.Size)
	}
	if cfg.Simulation.TimestepSec != 15 {
		t.Fatalf("env override not applied: timestep %g", cfg.Simulation.TimestepSec)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level %s", cfg.Logging.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Simulation.TimestepSec != 60 || cfg.Fleet.Size != 100 || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MQTT.Enabled() {
		t.Fatalf("mqtt enabled without broker")
	}
	stop, err := cfg.Simulation.StopCriteria()
	if err != nil || stop != (chargemodel.StopCriteria{}) {
		t.Fatalf("unexpected default stop criteria %+v (%v)", stop, err)
	}
	if rc := cfg.Simulation.RunConfig(1); rc.Converter != converter.PowerFactor || rc.TargetP3KW != 0 {
		t.Fatalf("unexpected default converter %+v", rc)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"config.toml":   "",
		"bad_ts.yaml":   "simulation:\n  timestep_sec: -1\n",
		"bad_lvl.yaml":  "logging:\n  level: loud\n",
		"bad_stop.yaml": "simulation:\n  decision_metric: never\n",
		"bad_soc.yaml":  "fleet:\n  arrival_soc_min: 60\n  arrival_soc_max: 40\n",
		"bad_qos.yaml":  "mqtt:\n  broker: tcp://x:1883\n  qos: 3\n",
		"bad_sink.yaml": "metrics:\n  sinks:\n    - conf:\n        addr: x\n",
		"bad_conv.yaml": "simulation:\n  converter: droop\n",
		"bad_p3.yaml":   "simulation:\n  target_p3_kw: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, name, data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFleetGenerator(t *testing.T) {
	avail := writeFile(t, "avail.json", `{"7": 1, "8": 3}`)
	c := FleetConfig{Size: 5, AvailabilityFile: avail}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	g, err := c.Generator(chargemodel.StopCriteria{})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	if g.Size != 5 || g.StayMin != time.Hour || g.StayMax != 10*time.Hour {
		t.Fatalf("unexpected generator %+v", g)
	}
	if g.Availability[8] != 3 || g.Availability[0] != 0 {
		t.Fatalf("availability not loaded: %v", g.Availability)
	}
	if !g.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start %v", g.Start)
	}
	if c.Rand().Int63() != (FleetConfig{Seed: 1}).Rand().Int63() {
		t.Fatalf("seeded sources differ")
	}

	c.AvailabilityFile = filepath.Join(t.TempDir(), "none.json")
	if _, err := c.Generator(chargemodel.StopCriteria{}); err == nil {
		t.Fatalf("expected error for missing availability file")
	}
}

func TestParseInventory(t *testing.T) {
	inv, opts, err := ParseInventory([]byte(`evs:
  - type: van
    chemistry: LMO
    battery_size_kwh: 80
    battery_size_ah_1c: 200
    ac_charge_rate_kw: 11
evses:
  - type: depot_dc
    level: DCFC
    power_limit_kw: 60
    current_limit_a: 150
ramping:
  - ev: van
    on_to_off: {delay_sec: 0.5, kw_per_sec: -100}
    off_to_on: {delay_sec: 5, kw_per_sec: 10}
    ramp_up: {delay_sec: 1, kw_per_sec: 10}
    ramp_down: {delay_sec: 1, kw_per_sec: -10}
  - ev: van
    evse: depot_dc
    off_to_on: {delay_sec: 2, kw_per_sec: 20}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ev, err := inv.EV("van")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ev.Chemistry != model.LMO || ev.BatterySizeKWh != 80 {
		t.Fatalf("unexpected ev %+v", ev)
	}
	evse, err := inv.EVSE("depot_dc")
	if err != nil || evse.Level != model.DCFC {
		t.Fatalf("unexpected evse %+v (%v)", evse, err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected 2 ramping options got %d", len(opts))
	}
}

func TestParseInventoryErrors(t *testing.T) {
	_, _, err := ParseInventory([]byte("evs:\n  - type: x\n    chemistry: lead_acid\n"))
	if err == nil {
		t.Fatalf("expected chemistry error")
	}
	_, _, err = ParseInventory([]byte("ramping:\n  - ev: ghost\n"))
	if !errors.Is(err, model.ErrUnknownEV) {
		t.Fatalf("expected ErrUnknownEV got %v", err)
	}
}

func TestLoadInventoryDefault(t *testing.T) {
	inv, opts, err := LoadInventory("")
	if err != nil || opts != nil {
		t.Fatalf("default inventory: %v", err)
	}
	if _, err := inv.EVSE("xfc_350"); err != nil {
		t.Fatalf("default inventory incomplete: %v", err)
	}
}
