package session

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle phase of the backend session.
type State int

const (
	Initializing State = iota
	AwaitingPairing
	Authenticated
	Ready
	AuthFailed
	Disconnected
)

var stateNames = map[State]string{
	Initializing:    "initializing",
	AwaitingPairing: "awaiting_pairing",
	Authenticated:   "authenticated",
	Ready:           "ready",
	AuthFailed:      "auth_failed",
	Disconnected:    "disconnected",
}

var stateFromName = map[string]State{
	"initializing":     Initializing,
	"awaiting_pairing": AwaitingPairing,
	"authenticated":    Authenticated,
	"ready":            Ready,
	"auth_failed":      AuthFailed,
	"disconnected":     Disconnected,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, ok := stateFromName[name]
	if !ok {
		return fmt.Errorf("unknown session state %q", name)
	}
	*s = v
	return nil
}

// IsFault reports whether the state requires the supervisor to recycle the
// backend connection.
func (s State) IsFault() bool {
	return s == AuthFailed || s == Disconnected
}

// PairingArtifact is the short-lived payload (QR content or pairing code) a
// human approves on a paired device.
type PairingArtifact string
