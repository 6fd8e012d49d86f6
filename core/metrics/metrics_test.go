package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evcharge/core/factory"
	metrics "github.com/kilianp07/evcharge/core/metrics"
	_ "github.com/kilianp07/evcharge/infra/metrics"
)

type recordSink struct {
	steps, sessions int
	fail            bool
	closed          bool
}

func (r *recordSink) RecordStep(metrics.StepEvent) error {
	r.steps++
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recordSink) RecordSession(metrics.SessionEvent) error {
	r.sessions++
	return nil
}

func (r *recordSink) Close() error {
	r.closed = true
	return nil
}

type stepOnly struct{ steps int }

func (s *stepOnly) RecordStep(metrics.StepEvent) error {
	s.steps++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &stepOnly{}
	m := metrics.NewMultiSink(s1, s2)
	if err := m.RecordStep(metrics.StepEvent{}); err != nil {
		t.Fatalf("record step: %v", err)
	}
	if err := m.RecordSession(metrics.SessionEvent{}); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if s1.steps != 1 || s2.steps != 1 || s1.sessions != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
	if err := m.Close(); err != nil || !s1.closed {
		t.Fatalf("close not forwarded: %v", err)
	}
}

func TestRecorderCountsFailures(t *testing.T) {
	s := &recordSink{fail: true}
	r := metrics.NewRecorder(s, nil)
	r.Step(metrics.StepEvent{EventID: "a"})
	r.Step(metrics.StepEvent{EventID: "b"})
	r.Session(metrics.SessionEvent{EventID: "a"})
	if r.Errors() != 2 {
		t.Fatalf("expected 2 errors, got %d", r.Errors())
	}
	if s.sessions != 1 {
		t.Fatalf("session not recorded")
	}
	metrics.NewRecorder(&stepOnly{}, nil).Session(metrics.SessionEvent{})
}

type mockSink struct{ mock.Mock }

func (m *mockSink) RecordStep(ev metrics.StepEvent) error { return m.Called(ev).Error(0) }

func (m *mockSink) RecordSession(ev metrics.SessionEvent) error { return m.Called(ev).Error(0) }

func TestRecorderWithMockSink(t *testing.T) {
	s := &mockSink{}
	s.On("RecordStep", mock.MatchedBy(func(ev metrics.StepEvent) bool { return ev.EventID == "ok" })).Return(nil)
	s.On("RecordStep", mock.Anything).Return(errors.New("down"))
	s.On("RecordSession", mock.Anything).Return(nil).Once()

	r := metrics.NewRecorder(s, nil)
	r.Step(metrics.StepEvent{EventID: "ok"})
	r.Step(metrics.StepEvent{EventID: "lost"})
	r.Session(metrics.SessionEvent{EventID: "ok"})

	s.AssertExpectations(t)
	s.AssertNumberOfCalls(t, "RecordStep", 2)
	if r.Errors() != 1 {
		t.Fatalf("expected 1 error, got %d", r.Errors())
	}
}

/*
TestSinkFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop sink
	- unknown type returns error
*/
func TestSinkFactory_Builtins(t *testing.T) {
	s, err := metrics.NewSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewSink([]factory.ModuleConfig{{Type: "missing"}}); !errors.Is(err, factory.ErrUnknownModule) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if len(metrics.SinkTypes()) < 3 {
		t.Fatalf("builtin sinks not registered: %v", metrics.SinkTypes())
	}
}

func TestNewSink_Multi(t *testing.T) {
	s, err := metrics.NewSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	data := `sinks:
  - type: nop
  - type: nop
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	s, err = metrics.NewSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

func TestConfigDecodeJSON_Invalid(t *testing.T) {
	data := `{"sinks":[{"type":"nop"},{"type":"missing"}]}`
	var cfg metrics.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewSink(cfg.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
