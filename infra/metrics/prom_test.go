package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/evcharge/core/energylimit"
	coremetrics "github.com/kilianp07/evcharge/core/metrics"
)

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	for _, st := range []energylimit.Status{energylimit.CanNotReach, energylimit.CanNotReach, energylimit.CanReach} {
		ev := coremetrics.StepEvent{EventID: "e1", Vehicle: "ld_50kWh", SOC: 55, P1KW: 7, P2KW: 7.2, P3KW: 7.8, Q3KVAR: -0.4, Status: st}
		if err := s.RecordStep(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if got := testutil.ToFloat64(s.soc.WithLabelValues("e1")); got != 55 {
		t.Fatalf("soc gauge %v", got)
	}
	if got := testutil.ToFloat64(s.p3.WithLabelValues("e1")); got != 7.8 {
		t.Fatalf("p3 gauge %v", got)
	}
	if got := testutil.ToFloat64(s.q3.WithLabelValues("e1")); got != -0.4 {
		t.Fatalf("q3 gauge %v", got)
	}
	if got := testutil.ToFloat64(s.steps.WithLabelValues("ld_50kWh", energylimit.CanNotReach.String())); got != 2 {
		t.Fatalf("steps counter %v", got)
	}

	if err := s.RecordSession(coremetrics.SessionEvent{EventID: "e1", Vehicle: "ld_50kWh", EnergyKWh: 12, NeedsMet: true}); err != nil {
		t.Fatalf("record session: %v", err)
	}
	for _, g := range []*prometheus.GaugeVec{s.soc, s.p1, s.p2, s.p3, s.q3} {
		if n := testutil.CollectAndCount(g); n != 0 {
			t.Fatalf("gauge not dropped after session: %d series", n)
		}
	}
	if n := testutil.CollectAndCount(s.energy); n != 1 {
		t.Fatalf("expected one energy histogram, got %d", n)
	}
	if got := testutil.ToFloat64(s.reached.WithLabelValues("ld_50kWh", "true")); got != 1 {
		t.Fatalf("sessions counter %v", got)
	}
}

func TestPromSink_SharesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := a.RecordStep(coremetrics.StepEvent{EventID: "x", Vehicle: "v"}); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordStep(coremetrics.StepEvent{EventID: "x", Vehicle: "v"}); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(b.steps.WithLabelValues("v", energylimit.CanNotReach.String())); got != 2 {
		t.Fatalf("collectors not shared: %v", got)
	}
}
