// Package converter models the charger's AC to DC stage: it turns the
// converter-side power P2 into grid-side active power P3 and reactive
// power Q3.
package converter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/evcharge/core/curve"
)

var (
	// ErrKind is returned for an unknown converter kind.
	ErrKind = errors.New("unknown converter kind")
	// ErrMissingCurve is returned when a curve the kind needs is empty.
	ErrMissingCurve = errors.New("converter curve is missing")
)

const (
	// approxToleranceKW is how close ApproxP2 brings P3(P2) to the request.
	approxToleranceKW   = 0.001
	maxApproxIterations = 200
)

// Kind selects how reactive power is produced.
type Kind int

const (
	// PowerFactor derives Q3 from a power factor curve of P3.
	PowerFactor Kind = iota + 1
	// QSetpoint follows a commanded Q3 within the apparent power rating.
	QSetpoint
)

func (k Kind) String() string {
	switch k {
	case PowerFactor:
		return "pf"
	case QSetpoint:
		return "Q_setpoint"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses "pf" or "Q_setpoint", case insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "pf":
		return PowerFactor, nil
	case "q_setpoint":
		return QSetpoint, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrKind)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ACPower is the power flow of one timestep on both sides of the converter.
type ACPower struct {
	TimeStepHrs float64 `json:"time_step_duration_hrs"`
	P1KW        float64 `json:"P1_kW"`
	P2KW        float64 `json:"P2_kW"`
	P3KW        float64 `json:"P3_kW"`
	Q3KVAR      float64 `json:"Q3_kVAR"`
}

// Config configures a Converter.
type Config struct {
	Kind Kind
	// InvEffFromP2 is the inverter efficiency as a function of P2.
	InvEffFromP2 curve.PolyFunction
	// InvPFFromP3 is the power factor as a function of P3. Its sign is the
	// sign of Q3. Only PowerFactor uses it.
	InvPFFromP3 curve.PolyFunction
	// MaxP3KW and S3kVAMultiplier size the apparent power rating. A zero
	// multiplier means 1.
	MaxP3KW         float64
	S3kVAMultiplier float64
}

// Converter is a value type; copies are independent.
type Converter struct {
	kind     Kind
	invEff   curve.PolyFunction
	invPF    curve.PolyFunction
	maxS3kVA float64
	targetQ3 float64
}

// New validates cfg.
func New(cfg Config) (Converter, error) {
	switch cfg.Kind {
	case PowerFactor:
		if len(cfg.InvPFFromP3.Segments()) == 0 {
			return Converter{}, fmt.Errorf("%s power factor: %w", cfg.Kind, ErrMissingCurve)
		}
	case QSetpoint:
	default:
		return Converter{}, fmt.Errorf("%d: %w", int(cfg.Kind), ErrKind)
	}
	if len(cfg.InvEffFromP2.Segments()) == 0 {
		return Converter{}, fmt.Errorf("%s efficiency: %w", cfg.Kind, ErrMissingCurve)
	}
	mult := cfg.S3kVAMultiplier
	if mult == 0 {
		mult = 1
	}
	return Converter{
		kind:     cfg.Kind,
		invEff:   cfg.InvEffFromP2,
		invPF:    cfg.InvPFFromP3,
		maxS3kVA: mult * cfg.MaxP3KW,
	}, nil
}

// Kind returns the reactive power mode.
func (c Converter) Kind() Kind { return c.kind }

// CanProvideReactivePower reports whether Q3 follows SetTargetQ3.
func (c Converter) CanProvideReactivePower() bool { return c.kind == QSetpoint }

// MaxNominalS3kVA is the apparent power rating.
func (c Converter) MaxNominalS3kVA() float64 { return c.maxS3kVA }

// SetTargetQ3 sets the commanded reactive power of a QSetpoint converter.
func (c *Converter) SetTargetQ3(kvar float64) { c.targetQ3 = kvar }

// P3 is the grid-side power that yields p2 on the converter side.
func (c Converter) P3(p2 float64) float64 {
	return p2 / c.invEff.Value(p2)
}

// ApproxP2 inverts P3 by bracketing: it returns a P2 whose P3 is within
// approxToleranceKW of p3.
func (c Converter) ApproxP2(p3 float64) float64 {
	p2 := p3 * c.invEff.Value(p3)
	var lo, hi float64
	haveLo, haveHi := false, false
	for i := 0; i < maxApproxIterations; i++ {
		got := c.P3(p2)
		if math.Abs(p3-got) < approxToleranceKW {
			break
		}
		if math.Abs(got) < math.Abs(p3) {
			lo, haveLo = p2, true
		} else {
			hi, haveHi = p2, true
		}
		switch {
		case haveLo && haveHi:
			p2 = 0.5 * (lo + hi)
		case haveLo:
			p2 = 1.1 * lo
		default:
			p2 = 0.9 * hi
		}
	}
	return p2
}

// Next converts the average powers of one timestep.
func (c Converter) Next(dtHrs, p1, p2 float64) ACPower {
	p3 := c.P3(p2)
	var q3 float64
	if c.kind == PowerFactor {
		q3 = reactiveFromPF(p3, c.invPF.Value(p3))
	} else {
		q3 = c.limitQ3(p3)
	}
	return ACPower{TimeStepHrs: dtHrs, P1KW: p1, P2KW: p2, P3KW: p3, Q3KVAR: q3}
}

// reactiveFromPF is P3*sqrt(1/pf^2 - 1), negative whenever pf is.
func reactiveFromPF(p3, pf float64) float64 {
	if pf == 0 || math.Abs(pf) >= 1 {
		return 0
	}
	q := p3 * math.Sqrt(1/(pf*pf)-1)
	if pf < 0 {
		q = -math.Abs(q)
	}
	return q
}

// limitQ3 clips the commanded Q3 to what the rating leaves beside p3.
func (c Converter) limitQ3(p3 float64) float64 {
	if c.maxS3kVA < math.Abs(p3) {
		return 0
	}
	lim := math.Sqrt(c.maxS3kVA*c.maxS3kVA - p3*p3)
	if math.Abs(c.targetQ3) < lim {
		return c.targetQ3
	}
	if c.targetQ3 >= 0 {
		return lim
	}
	return -lim
}
