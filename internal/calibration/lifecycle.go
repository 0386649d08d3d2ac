package calibration

import (
	"errors"
	"fmt"
	"sync"
)

// State is the calibration lifecycle state.
type State string

const (
	StateUntrained State = "untrained"
	StateFitting   State = "fitting"
	StateTrained   State = "trained"
	StateServing   State = "serving"
	StateRejected  State = "rejected"
)

// ErrInvalidTransition is returned for a transition the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid calibration state transition")

var transitions = map[State][]State{
	StateUntrained: {StateFitting},
	StateFitting:   {StateTrained, StateRejected},
	StateTrained:   {StateFitting, StateServing},
	StateRejected:  {StateFitting, StateServing, StateUntrained},
	StateServing:   {StateFitting},
}

// Lifecycle tracks the calibration state machine.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// NewLifecycle starts in initial.
func NewLifecycle(initial State) *Lifecycle {
	return &Lifecycle{state: initial}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Transition moves to next. Moving to the current state is a no-op.
func (l *Lifecycle) Transition(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == next {
		return nil
	}
	for _, s := range transitions[l.state] {
		if s == next {
			l.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, next)
}
