package energylimit

import "github.com/kilianp07/evcharge/core/curve"

// Walker computes the E1 limit of a timestep by walking the curve segments
// from the initial SOC toward 100 (charging) or 0 (discharging).
type Walker struct {
	solver Solver
}

// NewWalker wraps s. The walk direction follows the solver kind.
func NewWalker(s Solver) Walker { return Walker{solver: s} }

// Direction of the walk.
func (w *Walker) Direction() curve.Direction { return w.solver.kind.Direction() }

// SetCurve replaces the curve used by subsequent walks.
func (w *Walker) SetCurve(c curve.SOCvsP2) { w.solver.SetCurve(c) }

// E1Limit returns the energy bound for a step of dtSec seconds starting at
// initSOC, and whether targetSOC is reached within it.
func (w *Walker) E1Limit(dtSec, initSOC, targetSOC float64) Limit {
	if w.Direction() == curve.Discharging {
		return w.discharging(dtSec, initSOC, targetSOC)
	}
	return w.charging(dtSec, initSOC, targetSOC)
}

func (w *Walker) charging(dtSec, initSOC, targetSOC float64) Limit {
	s := &w.solver
	if !s.Seek(initSOC) {
		return Limit{TargetSOC: 100, Status: Unknown, MinTimeToTargetHrs: -1}
	}

	if targetSOC > 100 {
		targetSOC = 100
	}
	status := Unknown
	if targetSOC <= initSOC {
		status = HavePassed
		targetSOC = 100
	}

	var (
		soc0     = initSOC
		soc1     float64
		remain   = dtSec / 3600
		elapsed  float64
		minTime  float64
		breakNow bool
	)
	for {
		_, ub := s.Bounds()
		soc1 = s.SOCAt(remain, soc0)
		if soc1 > 100 {
			soc1 = 100
		}
		// soc1 <= 100 < ub on the last segment, so the walk ends there
		if ub < soc1 {
			soc1 = ub
		} else {
			breakNow = true
		}

		if status == Unknown && soc0 <= targetSOC && targetSOC <= soc1 {
			status = CanReach
			minTime = elapsed + s.TimeToSOC(soc0, targetSOC)
		}

		if breakNow {
			elapsed += remain
			break
		}
		hrs := s.TimeToSOC(soc0, soc1)
		elapsed += hrs
		remain -= hrs
		soc0 = soc1
		if !s.Advance() {
			break
		}
	}
	return w.result(status, initSOC, soc1, targetSOC, elapsed, minTime)
}

func (w *Walker) discharging(dtSec, initSOC, targetSOC float64) Limit {
	s := &w.solver
	if !s.Seek(initSOC) {
		return Limit{TargetSOC: 0, Status: Unknown, MinTimeToTargetHrs: -1}
	}

	if targetSOC < 0 {
		targetSOC = 0
	}
	status := Unknown
	if initSOC <= targetSOC {
		status = HavePassed
		targetSOC = 0
	}

	var (
		soc0     = initSOC
		soc1     float64
		remain   = dtSec / 3600
		elapsed  float64
		minTime  float64
		breakNow bool
	)
	for {
		lb, _ := s.Bounds()
		soc1 = s.SOCAt(remain, soc0)
		if soc1 < 0 {
			soc1 = 0
		}
		// lb < 0 <= soc1 on the first segment
		if soc1 < lb {
			soc1 = lb
		} else {
			breakNow = true
		}

		if status == Unknown && soc1 <= targetSOC && targetSOC <= soc0 {
			status = CanReach
			minTime = elapsed + s.TimeToSOC(soc0, targetSOC)
		}

		if breakNow {
			elapsed += remain
			break
		}
		hrs := s.TimeToSOC(soc0, soc1)
		elapsed += hrs
		remain -= hrs
		soc0 = soc1
		if !s.Advance() {
			break
		}
	}
	return w.result(status, initSOC, soc1, targetSOC, elapsed, minTime)
}

func (w *Walker) result(status Status, initSOC, soc1, targetSOC, elapsed, minTime float64) Limit {
	if status == Unknown {
		status = CanNotReach
	}
	ste := w.solver.socToEnergy
	l := Limit{
		TargetSOC:          targetSOC,
		MaxE1KWh:           (soc1 - initSOC) * ste,
		MaxE1ChargeTimeHrs: elapsed,
		Status:             status,
		MinTimeToTargetHrs: -1,
	}
	if status == CanReach {
		l.E1ToTargetKWh = (targetSOC - initSOC) * ste
		l.MinTimeToTargetHrs = minTime
	}
	return l
}
