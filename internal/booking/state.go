package booking

import (
	"fmt"
	"strings"
)

// State is a step of a booking attempt.
type State string

const (
	StateReceived           State = "received"
	StateRateChecked        State = "rate_checked"
	StateScheduleValidated  State = "schedule_validated"
	StatePartySizeValidated State = "party_size_validated"
	StateCapacityValidated  State = "capacity_validated"
	StateTableResolved      State = "table_resolved"
	StateCommitted          State = "committed"
	StateRejected           State = "rejected"
)

// FSM holds the allowed transitions of a booking attempt. Every step may reject.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the booking FSM.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateReceived:           {StateRateChecked, StateRejected},
			StateRateChecked:        {StateScheduleValidated, StateRejected},
			StateScheduleValidated:  {StatePartySizeValidated, StateRejected},
			StatePartySizeValidated: {StateCapacityValidated, StateRejected},
			StateCapacityValidated:  {StateTableResolved, StateRejected},
			StateTableResolved:      {StateCommitted, StateRejected},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// attempt tracks the progress of one Book call.
type attempt struct {
	fsm   *FSM
	trail []State
}

func newAttempt(fsm *FSM) *attempt {
	return &attempt{fsm: fsm, trail: []State{StateReceived}}
}

func (a *attempt) current() State {
	return a.trail[len(a.trail)-1]
}

func (a *attempt) advance(to State) error {
	from := a.current()
	if !a.fsm.CanTransition(from, to) {
		return fmt.Errorf("illegal booking transition %s -> %s", from, to)
	}
	a.trail = append(a.trail, to)
	return nil
}

func (a *attempt) reject() {
	if a.current() != StateRejected && a.current() != StateCommitted {
		a.trail = append(a.trail, StateRejected)
	}
}

func (a *attempt) String() string {
	parts := make([]string, len(a.trail))
	for i, s := range a.trail {
		parts[i] = string(s)
	}
	return strings.Join(parts, ">")
}
