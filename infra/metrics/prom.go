package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evcharge/core/metrics"
)

// PromSink exposes battery steps and charge sessions as Prometheus metrics.
type PromSink struct {
	soc     *prometheus.GaugeVec
	p1      *prometheus.GaugeVec
	p2      *prometheus.GaugeVec
	p3      *prometheus.GaugeVec
	q3      *prometheus.GaugeVec
	steps   *prometheus.CounterVec
	energy  *prometheus.HistogramVec
	reached *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by an earlier sink are shared.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.soc, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evcharge_soc_percent",
		Help: "Battery state of charge at the end of the last step",
	}, []string{"event_id"})); err != nil {
		return nil, err
	}
	if s.p1, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evcharge_p1_kw",
		Help: "Average battery-side power over the last step",
	}, []string{"event_id"})); err != nil {
		return nil, err
	}
	if s.p2, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evcharge_p2_kw",
		Help: "Average converter-side power over the last step",
	}, []string{"event_id"})); err != nil {
		return nil, err
	}
	if s.p3, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evcharge_p3_kw",
		Help: "Average grid-side active power over the last step",
	}, []string{"event_id"})); err != nil {
		return nil, err
	}
	if s.q3, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evcharge_q3_kvar",
		Help: "Average grid-side reactive power over the last step",
	}, []string{"event_id"})); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_steps_total",
		Help: "Battery steps by energy limit status",
	}, []string{"vehicle_type", "status"})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evcharge_session_energy_kwh",
		Help:    "Battery-side energy delivered per charge session",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 100, 200},
	}, []string{"vehicle_type"})); err != nil {
		return nil, err
	}
	if s.reached, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_sessions_total",
		Help: "Finished charge sessions by whether their needs were met",
	}, []string{"vehicle_type", "needs_met"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStep updates the per-event gauges and the status counter.
func (s *PromSink) RecordStep(ev coremetrics.StepEvent) error {
	s.soc.WithLabelValues(ev.EventID).Set(ev.SOC)
	s.p1.WithLabelValues(ev.EventID).Set(ev.P1KW)
	s.p2.WithLabelValues(ev.EventID).Set(ev.P2KW)
	s.p3.WithLabelValues(ev.EventID).Set(ev.P3KW)
	s.q3.WithLabelValues(ev.EventID).Set(ev.Q3KVAR)
	s.steps.WithLabelValues(ev.Vehicle, ev.Status.String()).Inc()
	return nil
}

// RecordSession observes the session energy and drops the event's gauges.
func (s *PromSink) RecordSession(ev coremetrics.SessionEvent) error {
	s.energy.WithLabelValues(ev.Vehicle).Observe(ev.EnergyKWh)
	met := "false"
	if ev.NeedsMet {
		met = "true"
	}
	s.reached.WithLabelValues(ev.Vehicle, met).Inc()
	s.soc.DeleteLabelValues(ev.EventID)
	s.p1.DeleteLabelValues(ev.EventID)
	s.p2.DeleteLabelValues(ev.EventID)
	s.p3.DeleteLabelValues(ev.EventID)
	s.q3.DeleteLabelValues(ev.EventID)
	return nil
}
