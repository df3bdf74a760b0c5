package domain

import "time"

// State is the speech session state.
type State int

const (
	StateIdle State = iota
	StateSpeaking
)

func (s State) String() string {
	if s == StateSpeaking {
		return "speaking"
	}
	return "idle"
}

// StateChange describes one session transition.
type StateChange struct {
	From   State
	To     State
	At     time.Time
	Reason string
}
