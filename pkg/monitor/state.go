package monitor

import "fmt"

// State is the lifecycle state of a Session.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Stopped
)

var stateNames = map[State]string{
	Idle:      "idle",
	Running:   "running",
	Completed: "completed",
	Stopped:   "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether sampling has ended and buffers are final.
func (s State) Terminal() bool {
	return s == Completed || s == Stopped
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}
