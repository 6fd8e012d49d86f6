package transition

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStateHasNoDefinition is returned when a Definition is built for off or on_steady_state.
	ErrStateHasNoDefinition = errors.New("state has no transition definition")
	// ErrTooFewCriteria is returned when a Definition has fewer than MinCriteria criteria.
	ErrTooFewCriteria = errors.New("transition needs at least three criteria")
	// ErrFinalCriterion is returned when the last criterion is not from_final_X with value 0.
	ErrFinalCriterion = errors.New("last criterion must be from_final_X with value 0")
	// ErrCriterionSlope is returned when a criterion's slope does not fit its type.
	ErrCriterionSlope = errors.New("criterion slope does not fit its type")
	// ErrZeroCrossingShape is returned for zero-crossing transitions that break the unique-mode rules.
	ErrZeroCrossingShape = errors.New("zero-crossing transition must have from_final_X only last and non-decreasing |slope|")
)

// MinCriteria is the minimum number of criteria in a Definition.
const MinCriteria = 3

// Criterion describes one segment of a transition.
type Criterion struct {
	Type  CriteriaType `json:"type"`
	Value float64      `json:"value"`
	// InterruptOnDeviation restarts the transition when the target moves
	// further than DeviationLimit in the direction of travel.
	InterruptOnDeviation bool    `json:"interrupt_on_deviation"`
	DeviationLimit       float64 `json:"deviation_limit"`
	// Slope is the ramp rate of X in units per second.
	Slope float64 `json:"slope"`
}

// Definition is an immutable ordered list of criteria for one directional state.
type Definition struct {
	state     State
	xDeadband float64
	criteria  []Criterion
}

// NewDefinition validates criteria for state.
func NewDefinition(state State, xDeadband float64, criteria []Criterion) (Definition, error) {
	if !state.IsDirectional() {
		return Definition{}, fmt.Errorf("%s: %w", state, ErrStateHasNoDefinition)
	}
	if len(criteria) < MinCriteria {
		return Definition{}, fmt.Errorf("%s has %d criteria: %w", state, len(criteria), ErrTooFewCriteria)
	}
	last := criteria[len(criteria)-1]
	if last.Type != FromFinalX || last.Value != 0 {
		return Definition{}, fmt.Errorf("%s: %w", state, ErrFinalCriterion)
	}
	for i, c := range criteria {
		if c.Slope == 0 && c.Type != TimeDelay {
			return Definition{}, fmt.Errorf("%s criterion %d (%s) has zero slope: %w", state, i, c.Type, ErrCriterionSlope)
		}
		if math.IsNaN(c.Slope) || math.IsNaN(c.Value) {
			return Definition{}, fmt.Errorf("%s criterion %d is NaN: %w", state, i, ErrCriterionSlope)
		}
	}
	cs := make([]Criterion, len(criteria))
	copy(cs, criteria)
	return Definition{state: state, xDeadband: xDeadband, criteria: cs}, nil
}

// MustDefinition is like NewDefinition but panics on error.
func MustDefinition(state State, xDeadband float64, criteria []Criterion) Definition {
	d, err := NewDefinition(state, xDeadband, criteria)
	if err != nil {
		panic(err)
	}
	return d
}

// State returns the directional state the definition belongs to.
func (d Definition) State() State { return d.state }

// XDeadband is the tolerance within which the transition counts as complete.
func (d Definition) XDeadband() float64 { return d.xDeadband }

// TowardPosInf reports whether X increases during the transition.
func (d Definition) TowardPosInf() bool { return d.state.towardPosInf() }

// Criteria returns a copy of the criteria.
func (d Definition) Criteria() []Criterion {
	out := make([]Criterion, len(d.criteria))
	copy(out, d.criteria)
	return out
}

// NominalDuration is the time in seconds an uninterrupted transition takes
// to move X from x0 to target.
func (d Definition) NominalDuration(x0, target float64) float64 {
	var total float64
	x := x0
	for _, c := range d.criteria {
		switch c.Type {
		case TimeDelay:
			total += c.Value
			x += c.Slope * c.Value
		case DeltaX:
			total += math.Abs(c.Value / c.Slope)
			if d.TowardPosInf() {
				x += c.Value
			} else {
				x -= c.Value
			}
		case FromFinalX:
			remaining := math.Abs(x-target) - c.Value
			if remaining > 0 {
				total += remaining / math.Abs(c.Slope)
				if d.TowardPosInf() {
					x = target - c.Value
				} else {
					x = target + c.Value
				}
			}
		}
	}
	return total
}

// validZeroCrossing checks the shape required for zero-crossing transitions
// when positive and negative transitions are unique.
func (d Definition) validZeroCrossing() error {
	prev := 0.0
	for i, c := range d.criteria {
		if c.Type == FromFinalX && i != len(d.criteria)-1 {
			return fmt.Errorf("%s criterion %d: %w", d.state, i, ErrZeroCrossingShape)
		}
		if math.Abs(c.Slope) < prev {
			return fmt.Errorf("%s criterion %d: %w", d.state, i, ErrZeroCrossingShape)
		}
		prev = math.Abs(c.Slope)
	}
	return nil
}
