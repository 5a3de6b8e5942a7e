package model

// SubmissionState is a step of the submission state machine.
// Both workflows share the machine:
//
//	BUILT → VALIDATED → SIGNED → SUBMITTED → {ACCEPTED | REJECTED | ERROR}
type SubmissionState string

const (
	StateBuilt     SubmissionState = "BUILT"
	StateValidated SubmissionState = "VALIDATED"
	StateSigned    SubmissionState = "SIGNED"
	StateSubmitted SubmissionState = "SUBMITTED"
	StateAccepted  SubmissionState = "ACCEPTED"
	StateRejected  SubmissionState = "REJECTED"
	StateError     SubmissionState = "ERROR"
)

var stateTransitions = map[SubmissionState][]SubmissionState{
	StateBuilt:     {StateValidated, StateError},
	StateValidated: {StateSigned, StateError},
	StateSigned:    {StateSubmitted, StateError},
	StateSubmitted: {StateAccepted, StateRejected, StateError},
}

// CanTransition reports whether moving from s to next is a legal transition
func (s SubmissionState) CanTransition(next SubmissionState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state has no outgoing transitions
func (s SubmissionState) Terminal() bool {
	return len(stateTransitions[s]) == 0
}
