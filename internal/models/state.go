package models

import "fmt"

// State is where a note stands in the sync lifecycle.
type State int

const (
	StateUnsynced State = iota
	StateSyncing
	StateSynced
	StateError
)

var stateNames = [...]string{"unsynced", "syncing", "synced", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record states and visibilities accepted by the remote service.
var (
	RecordStates       = []string{"active", "inactive"}
	RecordVisibilities = []string{"private", "public"}
)

// ConflictResolution values of the settings.
var ConflictResolutions = []string{"local", "remote", "ask"}
