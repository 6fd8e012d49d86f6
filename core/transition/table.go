package transition

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteTable is returned when a Table misses a directional state.
	ErrIncompleteTable = errors.New("transition table must define all ten directional states")
	// ErrDuplicateDefinition is returned when a Table defines a state twice.
	ErrDuplicateDefinition = errors.New("transition state defined twice")
)

// TableConfig holds the deadbands shared by every definition in a Table.
type TableConfig struct {
	// TargetDeadband is the target change below which a new target is ignored.
	TargetDeadband float64 `json:"target_deadband"`
	// OffDeadband separates zero from near-zero values.
	OffDeadband float64 `json:"off_deadband"`
	// Unique selects the sign-specific pos_/neg_ moving states instead of
	// the shared moving_toward_* states.
	Unique bool `json:"pos_and_neg_transitions_are_unique"`
}

// Table is the immutable set of ten directional definitions for one piece
// of equipment. A *Table is safe to share between goroutines.
type Table struct {
	cfg  TableConfig
	defs [NumDirectional]Definition
}

// NewTable validates that defs holds each directional state exactly once.
func NewTable(cfg TableConfig, defs []Definition) (*Table, error) {
	t := &Table{cfg: cfg}
	var seen [NumDirectional]bool
	for _, d := range defs {
		if !d.state.IsDirectional() || len(d.criteria) == 0 {
			return nil, fmt.Errorf("definition for %s: %w", d.state, ErrStateHasNoDefinition)
		}
		i := d.state.index()
		if seen[i] {
			return nil, fmt.Errorf("%s: %w", d.state, ErrDuplicateDefinition)
		}
		seen[i] = true
		t.defs[i] = d
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("missing %s: %w", State(i)+PosToOff, ErrIncompleteTable)
		}
	}
	if cfg.Unique {
		for _, s := range []State{PosMovingTowardNegInf, NegMovingTowardPosInf} {
			if err := t.defs[s.index()].validZeroCrossing(); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Config returns the deadbands and mode.
func (t *Table) Config() TableConfig { return t.cfg }

// Definition returns the definition of a directional state.
func (t *Table) Definition(s State) (Definition, bool) {
	if !s.IsDirectional() {
		return Definition{}, false
	}
	return t.defs[s.index()], true
}

// Definitions returns the ten definitions in State order.
func (t *Table) Definitions() []Definition {
	out := make([]Definition, NumDirectional)
	copy(out, t.defs[:])
	return out
}

func (t *Table) def(s State) *Definition { return &t.defs[s.index()] }

// moving picks the moving state for X on the positive or negative side.
func (t *Table) moving(positive, towardPos bool) State {
	if !t.cfg.Unique {
		if towardPos {
			return MovingTowardPosInf
		}
		return MovingTowardNegInf
	}
	switch {
	case positive && towardPos:
		return PosMovingTowardPosInf
	case positive:
		return PosMovingTowardNegInf
	case towardPos:
		return NegMovingTowardPosInf
	default:
		return NegMovingTowardNegInf
	}
}

// reversal returns the state a running transition switches to when the
// target moves behind it.
func (t *Table) reversal(s State, towardPos bool) (State, bool) {
	switch s {
	case OffToPos:
		if !towardPos {
			return t.moving(true, false), true
		}
	case OffToNeg:
		if towardPos {
			return t.moving(false, true), true
		}
	case MovingTowardNegInf:
		if towardPos {
			return MovingTowardPosInf, true
		}
	case MovingTowardPosInf:
		if !towardPos {
			return MovingTowardNegInf, true
		}
	case PosMovingTowardNegInf:
		if towardPos {
			return PosMovingTowardPosInf, true
		}
	case NegMovingTowardPosInf:
		if !towardPos {
			return NegMovingTowardNegInf, true
		}
	case PosMovingTowardPosInf:
		if !towardPos {
			return PosMovingTowardNegInf, true
		}
	case NegMovingTowardNegInf:
		if towardPos {
			return NegMovingTowardPosInf, true
		}
	}
	return s, false
}
