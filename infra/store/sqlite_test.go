package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/evcharge/core/energylimit"
	coremetrics "github.com/kilianp07/evcharge/core/metrics"
)

func TestSQLiteStoreSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dep := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := coremetrics.SessionEvent{
		EventID: "a", Vehicle: "ld_50kWh", EVSE: "L2_7200",
		EnergyKWh: 10, GridEnergyKWh: 10.9, InitialSOC: 20, FinalSOC: 40, NeedsMet: false,
		Duration: 90 * time.Minute, Time: dep,
	}
	if err := s.RecordSession(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	ev.FinalSOC, ev.NeedsMet = 80, true
	if err := s.RecordSession(ev); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.RecordStep(coremetrics.StepEvent{EventID: "a", Time: dep}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = NewSQLiteStore(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	got, err := s.Sessions()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session got %d", len(got))
	}
	if !got[0].Time.Equal(ev.Time) {
		t.Fatalf("departure %v want %v", got[0].Time, ev.Time)
	}
	got[0].Time = ev.Time
	if got[0] != ev {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[0], ev)
	}
	if n, err := s.StepCount("a"); err != nil || n != 0 {
		t.Fatalf("steps stored while disabled: %d (%v)", n, err)
	}
}

func TestSQLiteStoreSteps(t *testing.T) {
	s, err := NewSQLiteStore(Config{Path: ":memory:", Steps: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	t0 := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		ev := coremetrics.StepEvent{EventID: "b", Time: t0.Add(time.Duration(i) * time.Minute), SOC: 50,
			P3KW: 7.8, Q3KVAR: -0.4, Status: energylimit.CanReach}
		if err := s.RecordStep(ev); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if n, err := s.StepCount("b"); err != nil || n != 3 {
		t.Fatalf("expected 3 steps got %d (%v)", n, err)
	}
}
