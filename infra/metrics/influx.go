package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evcharge/core/metrics"
	"github.com/kilianp07/evcharge/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket steps are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes battery steps to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStep writes one battery step.
func (s *InfluxSink) RecordStep(ev coremetrics.StepEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, stepPoint(ev))
}

// RecordSession writes a finished session summary.
func (s *InfluxSink) RecordSession(ev coremetrics.SessionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, sessionPoint(ev))
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func stepPoint(ev coremetrics.StepEvent) *write.Point {
	return write.NewPointWithMeasurement("battery_step").
		AddTag("event_id", ev.EventID).
		AddTag("vehicle_type", ev.Vehicle).
		AddTag("evse_type", ev.EVSE).
		AddTag("status", ev.Status.String()).
		AddField("soc", round3(ev.SOC)).
		AddField("p1_kw", round3(ev.P1KW)).
		AddField("p2_kw", round3(ev.P2KW)).
		AddField("p3_kw", round3(ev.P3KW)).
		AddField("q3_kvar", round3(ev.Q3KVAR)).
		SetTime(ev.Time)
}

func sessionPoint(ev coremetrics.SessionEvent) *write.Point {
	return write.NewPointWithMeasurement("charge_session").
		AddTag("event_id", ev.EventID).
		AddTag("vehicle_type", ev.Vehicle).
		AddTag("evse_type", ev.EVSE).
		AddTag("needs_met", strconv.FormatBool(ev.NeedsMet)).
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		AddField("grid_energy_kwh", round3(ev.GridEnergyKWh)).
		AddField("initial_soc", round3(ev.InitialSOC)).
		AddField("final_soc", round3(ev.FinalSOC)).
		AddField("duration_s", ev.Duration.Seconds()).
		SetTime(ev.Time)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
