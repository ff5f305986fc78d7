package download

import (
	"github.com/google/uuid"

	"github.com/alanbriolat/download-manager/generic"
)

type ID string

func NewID() ID {
	return ID(generic.Unwrap(uuid.NewRandom()).String())
}

type State string

const (
	StateNotStarted  State = "not_started"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateWaiting     State = "waiting"
	StateFinished    State = "finished"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

var (
	allStates = generic.NewSet(
		StateNotStarted,
		StateDownloading,
		StatePaused,
		StateWaiting,
		StateFinished,
		StateCancelled,
		StateFailed,
	)
	activeStates   = generic.NewSet(StateDownloading, StateWaiting)
	terminalStates = generic.NewSet(StateFinished, StateCancelled, StateFailed)
)

func (s State) Valid() bool {
	return allStates.Contains(s)
}

// IsActive returns true if a transfer should be in flight for a task in this state.
func (s State) IsActive() bool {
	return activeStates.Contains(s)
}

func (s State) IsTerminal() bool {
	return terminalStates.Contains(s)
}

// NonRunning returns the state to restore a task to when no transfer can be in flight, e.g. after a restart. An
// interrupted transfer becomes Paused if it can be resumed, otherwise it has to start over.
func (s State) NonRunning(resumable bool, hasCheckpoint bool) State {
	switch {
	case !s.Valid():
		return StateNotStarted
	case s.IsActive() && resumable && hasCheckpoint:
		return StatePaused
	case s.IsActive():
		return StateNotStarted
	case s == StatePaused && !resumable:
		return StateNotStarted
	default:
		return s
	}
}
