package session

// EventKind classifies backend-originated lifecycle events.
type EventKind int

const (
	EventUnknown          EventKind = iota
	EventPairingChallenge           // backend produced a QR / pairing code
	EventAuthenticated              // credentials accepted
	EventReady                      // session can send messages
	EventAuthFailure                // credentials rejected
	EventDisconnected               // connection to the network lost
)

var eventNames = map[EventKind]string{
	EventUnknown:          "unknown",
	EventPairingChallenge: "qr",
	EventAuthenticated:    "authenticated",
	EventReady:            "ready",
	EventAuthFailure:      "auth_failure",
	EventDisconnected:     "disconnected",
}

var eventFromName = map[string]EventKind{
	"qr":            EventPairingChallenge,
	"authenticated": EventAuthenticated,
	"ready":         EventReady,
	"auth_failure":  EventAuthFailure,
	"disconnected":  EventDisconnected,
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseEventKind maps a backend event name to its kind. Unrecognized names
// yield EventUnknown.
func ParseEventKind(name string) EventKind {
	return eventFromName[name]
}

// Event is a single backend lifecycle event.
type Event struct {
	Kind     EventKind
	Artifact PairingArtifact // set for EventPairingChallenge
	Reason   string          // optional detail for failures
}

// Transition describes an accepted state change.
type Transition struct {
	From     State
	To       State
	Event    Event
	Artifact PairingArtifact // artifact held after the transition
}

// Restarted reports whether the transition was produced by a supervisor
// restart rather than a backend event.
func (t Transition) Restarted() bool {
	return t.Event.Kind == EventUnknown && t.To == Initializing
}
