package notebook

import "fmt"

// State is the lifecycle position of one notebook query session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateAwaitingResponse
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateUninitialized:    "uninitialized",
	StateInitializing:     "initializing",
	StateReady:            "ready",
	StateAwaitingResponse: "awaiting-response",
	StateDone:             "done",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// transitions lists the forward moves allowed from each state.
// Any non-terminal state may also move to StateFailed.
var transitions = map[State]State{
	StateUninitialized:    StateInitializing,
	StateInitializing:     StateReady,
	StateReady:            StateAwaitingResponse,
	StateAwaitingResponse: StateDone,
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return transitions[from] == to
}
