package session

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Notifier receives every accepted transition.
type Notifier interface {
	Publish(Transition)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Transition)

func (f NotifierFunc) Publish(t Transition) { f(t) }

// Machine owns the single session state. Transitions are driven only by
// backend events; Restart is reserved for the supervisor.
type Machine struct {
	// pubMu serialises apply+publish so observers see transitions in order.
	// It is never held while mu is wanted by an observer.
	pubMu sync.Mutex

	mu        sync.RWMutex
	state     State
	artifact  PairingArtifact
	notifiers []Notifier

	faults chan Transition
}

func NewMachine() *Machine {
	return &Machine{
		state:  Initializing,
		faults: make(chan Transition, 1),
	}
}

// Observe registers n to receive future transitions.
func (m *Machine) Observe(n Notifier) {
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the current state and pairing artifact together.
func (m *Machine) Snapshot() (State, PairingArtifact) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.artifact
}

// Faults delivers AuthFailed and Disconnected transitions. A pending signal
// is not duplicated.
func (m *Machine) Faults() <-chan Transition {
	return m.faults
}

// Apply feeds a backend event through the transition table. It returns the
// resulting transition and whether the event changed anything.
func (m *Machine) Apply(ev Event) (Transition, bool) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	from, held := m.state, m.artifact
	to, artifact, ok := next(from, held, ev)
	if !ok {
		m.mu.Unlock()
		if ev.Kind == EventUnknown {
			log.Warn().Str("component", "session").Str("state", from.String()).Msg("ignoring unrecognized backend event")
		} else {
			log.Debug().Str("component", "session").Str("state", from.String()).Str("event", ev.Kind.String()).Msg("event does not apply in current state")
		}
		return Transition{From: from, To: from, Event: ev, Artifact: held}, false
	}
	m.state = to
	m.artifact = artifact
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	t := Transition{From: from, To: to, Event: ev, Artifact: artifact}
	log.Info().Str("component", "session").Str("from", from.String()).Str("to", to.String()).Str("event", ev.Kind.String()).Msg("session transition")

	for _, n := range notifiers {
		n.Publish(t)
	}
	if to.IsFault() {
		select {
		case m.faults <- t:
		default:
		}
	}
	return t, true
}

// Restart returns the machine to Initializing after the supervisor has
// recycled the backend. Any fault signal still pending is discarded since it
// refers to the connection that was just torn down.
func (m *Machine) Restart() Transition {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	from := m.state
	m.state = Initializing
	m.artifact = ""
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	select {
	case <-m.faults:
	default:
	}

	t := Transition{From: from, To: Initializing}
	for _, n := range notifiers {
		n.Publish(t)
	}
	return t
}

// next is the transition table. It is pure so it can be tested in isolation.
func next(cur State, artifact PairingArtifact, ev Event) (State, PairingArtifact, bool) {
	switch ev.Kind {
	case EventPairingChallenge:
		switch {
		case cur == Initializing:
			return AwaitingPairing, ev.Artifact, true
		case cur == AwaitingPairing && ev.Artifact != artifact:
			return AwaitingPairing, ev.Artifact, true
		}
	case EventAuthenticated:
		if cur == AwaitingPairing || cur == Initializing {
			return Authenticated, "", true
		}
	case EventReady:
		if cur == Authenticated {
			return Ready, "", true
		}
	case EventAuthFailure:
		if cur != AuthFailed {
			return AuthFailed, "", true
		}
	case EventDisconnected:
		if cur != Initializing && cur != Disconnected {
			return Disconnected, "", true
		}
	}
	return cur, artifact, false
}
