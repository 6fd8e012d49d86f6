package chargemodel

import (
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/battery"
	"github.com/kilianp07/evcharge/core/energylimit"
)

// completionP1KW is the |P1| under which a satisfied event counts as done.
const completionP1KW = 0.001

// Model is the vehicle side of a charge event. It is not safe for
// concurrent use.
type Model struct {
	event        Event
	bat          *battery.Battery
	fullSOC      float64
	departSOC    float64
	stopAtTarget bool

	targetP2  float64
	prevSOC   float64
	needsMet  bool
	completed bool
}

// New wraps b, which must start at the event's arrival SOC.
func New(ev Event, b *battery.Battery, fullSOC float64) (*Model, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("event %s: nil battery", ev.ID)
	}
	m := &Model{
		event:        ev,
		bat:          b,
		fullSOC:      fullSOC,
		departSOC:    math.Min(ev.DepartureSOC, fullSOC),
		stopAtTarget: ev.Stop.SOCMode == TargetCharging && ev.Stop.DecisionMetric != StopAtDepartTime,
		prevSOC:      ev.ArrivalSOC,
	}
	b.SetTargetP2(0)
	return m, nil
}

// Event returns the event being charged.
func (m *Model) Event() Event { return m.event }

// Battery exposes the underlying battery.
func (m *Model) Battery() *battery.Battery { return m.bat }

// SetTargetP2 sets the requested P2 for the following steps.
func (m *Model) SetTargetP2(kw float64) { m.targetP2 = kw }

// TargetP2 returns the requested P2.
func (m *Model) TargetP2() float64 { return m.targetP2 }

// DepartSOC is the requested departure SOC capped at the full threshold.
func (m *Model) DepartSOC() float64 { return m.departSOC }

// StopAtTarget reports whether charging is cut exactly at the departure SOC.
func (m *Model) StopAtTarget() bool { return m.stopAtTarget }

// HasArrived reports whether the vehicle is at the charger at now.
func (m *Model) HasArrived(now float64) bool { return m.event.ArrivalUnix <= now }

// IsConnected reports whether now falls within the stay.
func (m *Model) IsConnected(now float64) bool {
	return m.event.ArrivalUnix <= now && now <= m.event.DepartureUnix
}

// NeedsMet reports whether the stop criteria are satisfied.
func (m *Model) NeedsMet() bool { return m.needsMet }

// Completed reports whether needs are met and power has stopped flowing.
func (m *Model) Completed() bool { return m.completed }

// SOC returns the current battery SOC.
func (m *Model) SOC() float64 { return m.bat.SOC() }

// Next advances the event over [prev, now] (unix seconds).
func (m *Model) Next(prev, now, puVrms float64) (battery.State, error) {
	target := 0.0
	if m.HasArrived(now) && !m.needsMet && m.prevSOC < m.fullSOC {
		target = m.targetP2
	}
	m.bat.SetTargetP2(target)

	st, err := m.bat.Next(prev, now, m.departSOC, puVrms, m.stopAtTarget)
	if err != nil {
		return battery.State{}, fmt.Errorf("event %s: %w", m.event.ID, err)
	}

	m.completed = m.needsMet && math.Abs(st.P1KW) < completionP1KW
	if !m.needsMet {
		m.needsMet = m.evaluateNeeds(prev, now, st)
	}
	m.prevSOC = st.SOC
	return st, nil
}

func (m *Model) evaluateNeeds(prev, now float64, st battery.State) bool {
	stop := m.event.Stop

	var socMet bool
	switch stop.SOCMode {
	case TargetCharging:
		socMet = m.departSOC <= st.SOC ||
			(st.Status == energylimit.CanReach && st.E1ToTargetKWh < st.P1KW*st.TimeStepHrs)
	case BlockCharging:
		boundary := st.SOC + (st.SOC-m.prevSOC)*stop.SOCBlockMaxUndershootPct/100
		socMet = m.departSOC <= boundary
	}

	var timeMet bool
	switch stop.DepartTimeMode {
	case TargetCharging:
		timeMet = m.event.DepartureUnix <= now
	case BlockCharging:
		boundary := now + (now-prev)*stop.DepartTimeBlockMaxUndershootPct/100
		timeMet = m.event.DepartureUnix <= boundary
	}

	if stop.DecisionMetric == StopAtDepartTime {
		return timeMet
	}
	if m.fullSOC <= st.SOC {
		return true
	}
	switch stop.DecisionMetric {
	case StopAtTargetSOC:
		return socMet
	case StopWhicheverFirst:
		return socMet || timeMet
	}
	return false
}
