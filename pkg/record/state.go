package record

import "fmt"

// State is the submission lifecycle of a record instance.
type State string

const (
	StateDraft        State = "draft"
	StateValidating   State = "validating"
	StateValid        State = "valid"
	StateInvalid      State = "invalid"
	StateSubmitting   State = "submitting"
	StateSubmitted    State = "submitted"
	StateSubmitFailed State = "submit_failed"
)

// transitions holds the legal lifecycle moves. Submitted is terminal; edits
// return non-terminal states to Draft.
var transitions = map[State][]State{
	StateDraft:        {StateValidating},
	StateValidating:   {StateValid, StateInvalid},
	StateValid:        {StateSubmitting, StateDraft},
	StateInvalid:      {StateValidating, StateDraft},
	StateSubmitting:   {StateSubmitted, StateSubmitFailed},
	StateSubmitFailed: {StateValidating, StateDraft},
	StateSubmitted:    nil,
}

// CanTransition reports whether moving from s to target is legal.
func (s State) CanTransition(target State) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record: illegal transition %s -> %s", e.From, e.To)
}
