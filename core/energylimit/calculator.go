package energylimit

import (
	"fmt"
	"math"

	"github.com/kilianp07/evcharge/core/curve"
)

// DefaultMaxP2ErrorKW is the ceiling change that triggers a re-clip.
const DefaultMaxP2ErrorKW = 0.5

// Config describes one direction of a battery's energy limit.
type Config struct {
	Direction      curve.Direction
	Losses         bool
	BatterySizeKWh float64
	Efficiency     curve.Efficiency
	Curve          curve.SOCvsP2
	// VoltageLimit maps pu Vrms to the P2 ceiling in kW. It is always
	// positive; the discharging floor is its negation.
	VoltageLimit            curve.PolyFunction
	RecalcExponentThreshold float64
	MaxP2ErrorKW            float64
}

// Calculator applies the voltage dependent P2 ceiling to the curve and
// computes the per step E1 limit.
type Calculator struct {
	dir        curve.Direction
	walker     Walker
	voltage    curve.PolyFunction
	maxP2Error float64

	orig        curve.SOCvsP2
	cur         curve.SOCvsP2
	maxAbsP2    float64
	prevLimit   float64
	prevBinding bool
}

// NewCalculator validates cfg and returns a calculator with the unclipped
// curve active.
func NewCalculator(cfg Config) (Calculator, error) {
	kind := KindFor(cfg.Direction, cfg.Losses)
	s, err := NewSolver(kind, cfg.BatterySizeKWh, cfg.Efficiency.Line(cfg.Direction), cfg.Curve, cfg.RecalcExponentThreshold)
	if err != nil {
		return Calculator{}, fmt.Errorf("energy limit %s: %w", cfg.Direction, err)
	}
	maxErr := cfg.MaxP2ErrorKW
	if maxErr <= 0 {
		maxErr = DefaultMaxP2ErrorKW
	}
	c := Calculator{
		dir:         cfg.Direction,
		walker:      NewWalker(s),
		voltage:     cfg.VoltageLimit,
		maxP2Error:  maxErr,
		orig:        cfg.Curve,
		cur:         cfg.Curve,
		maxAbsP2:    cfg.Curve.Extreme(cfg.Direction),
		prevBinding: true,
		prevLimit:   -1e9,
	}
	if cfg.Direction == curve.Discharging {
		c.prevLimit = 1e9
	}
	return c, nil
}

// Direction of the limit.
func (c *Calculator) Direction() curve.Direction { return c.dir }

// Curve returns the curve used by the last E1Limit call.
func (c *Calculator) Curve() curve.SOCvsP2 { return c.cur }

// Binding reports whether the last applied ceiling clipped the curve.
func (c *Calculator) Binding() bool { return c.prevBinding }

// P2Limit returns the signed P2 ceiling for puVrms.
func (c *Calculator) P2Limit(puVrms float64) float64 {
	v := c.voltage.Value(puVrms)
	if c.dir == curve.Discharging {
		return -v
	}
	return v
}

// E1Limit returns the limit for a dtSec step from soc toward targetSOC at
// the given voltage.
func (c *Calculator) E1Limit(dtSec, soc, targetSOC, puVrms float64) Limit {
	limit := c.P2Limit(puVrms)
	binding := limit < c.maxAbsP2
	if c.dir == curve.Discharging {
		binding = c.maxAbsP2 < limit
	}

	if math.Abs(c.prevLimit-limit) > c.maxP2Error {
		c.prevLimit = limit
		switch {
		case binding:
			c.cur = c.orig.Clip(limit, c.dir)
			c.walker.SetCurve(c.cur)
		case c.prevBinding:
			c.cur = c.orig
			c.walker.SetCurve(c.cur)
		}
		c.prevBinding = binding
	}
	return c.walker.E1Limit(dtSec, soc, targetSOC)
}
