package supervisor

import "errors"

// State is a supervisor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNoConfigPath is returned by Run when no configuration path was given.
	ErrNoConfigPath = errors.New("supervisor: no configuration path")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("supervisor: already run")
)
