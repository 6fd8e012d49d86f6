package transition

import "fmt"

// State is the mode of the integrator. Off and OnSteadyState hold X; the
// other ten are directional transitions with their own Definition.
type State int

const (
	Off State = iota
	OnSteadyState
	PosToOff
	NegToOff
	OffToPos
	OffToNeg
	MovingTowardPosInf
	MovingTowardNegInf
	PosMovingTowardPosInf
	PosMovingTowardNegInf
	NegMovingTowardPosInf
	NegMovingTowardNegInf
)

// NumDirectional is the number of states that own a Definition.
const NumDirectional = 10

var stateNames = [...]string{
	Off:                   "off",
	OnSteadyState:         "on_steady_state",
	PosToOff:              "pos_to_off",
	NegToOff:              "neg_to_off",
	OffToPos:              "off_to_pos",
	OffToNeg:              "off_to_neg",
	MovingTowardPosInf:    "moving_toward_pos_inf",
	MovingTowardNegInf:    "moving_toward_neg_inf",
	PosMovingTowardPosInf: "pos_moving_toward_pos_inf",
	PosMovingTowardNegInf: "pos_moving_toward_neg_inf",
	NegMovingTowardPosInf: "neg_moving_toward_pos_inf",
	NegMovingTowardNegInf: "neg_moving_toward_neg_inf",
}

func (s State) String() string {
	if s < Off || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState returns the State named s.
func ParseState(s string) (State, error) {
	for i, n := range stateNames {
		if n == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown transition state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsDirectional reports whether s owns a Definition.
func (s State) IsDirectional() bool { return s >= PosToOff && s <= NegMovingTowardNegInf }

// towardPosInf reports the direction X moves in for a directional state.
func (s State) towardPosInf() bool {
	switch s {
	case NegToOff, OffToPos, MovingTowardPosInf, PosMovingTowardPosInf, NegMovingTowardPosInf:
		return true
	}
	return false
}

func (s State) index() int { return int(s - PosToOff) }

// CriteriaType decides where a transition segment ends.
type CriteriaType int

const (
	// TimeDelay ends the segment Value seconds after it starts.
	TimeDelay CriteriaType = iota
	// DeltaX ends the segment once X moved by Value.
	DeltaX
	// FromFinalX ends the segment Value short of the current target.
	FromFinalX
)

var criteriaNames = [...]string{TimeDelay: "time_delay", DeltaX: "delta_X", FromFinalX: "from_final_X"}

func (c CriteriaType) String() string {
	if c < TimeDelay || int(c) >= len(criteriaNames) {
		return fmt.Sprintf("CriteriaType(%d)", int(c))
	}
	return criteriaNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c CriteriaType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Status is the outcome of integrating one transition over an interval.
type Status int

const (
	ReachedTargetNotNow Status = iota
	ReachedNowNotTarget
	InterruptedSameDirection
	InterruptedOppositeDirection
	CrossingZeroNow
)

var statusNames = [...]string{
	ReachedTargetNotNow:          "reached_target_not_now_time",
	ReachedNowNotTarget:          "reached_now_time_not_target",
	InterruptedSameDirection:     "interrupted_same_direction",
	InterruptedOppositeDirection: "interrupted_opposite_direction",
	CrossingZeroNow:              "crossing_zero_now",
}

func (s Status) String() string {
	if s < ReachedTargetNotNow || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

type interruption int

const (
	notInterrupted interruption = iota
	interruptedOpposite
	interruptedSame
)
