package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/pairing"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

const (
	DefaultBuffer = 64
	minBuffer     = 8
)

// SnapshotSource supplies the state delivered to new subscribers.
type SnapshotSource interface {
	Snapshot() (session.State, session.PairingArtifact)
}

// Subscription is one observer's queue of encoded messages. The channel is
// closed when the subscription is removed, either explicitly or because the
// observer fell too far behind.
type Subscription struct {
	id string
	ch chan []byte
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) C() <-chan []byte { return s.ch }

// Broadcaster fans session transitions out to every subscriber. Each
// subscriber sees messages in publish order; a subscriber whose queue is
// full is dropped rather than stalling the others.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	source SnapshotSource
	buffer int
	render func(string) (string, error)
}

func NewBroadcaster(source SnapshotSource, buffer int) *Broadcaster {
	if buffer < minBuffer {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		source: source,
		buffer: buffer,
		render: pairing.DataURL,
	}
}

// Subscribe registers a new subscriber and queues a snapshot of the current
// state as its first messages.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id: uuid.NewString(),
		ch: make(chan []byte, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state, artifact := b.source.Snapshot()
	for _, data := range b.encode(b.snapshotMessages(state, artifact)) {
		sub.ch <- data
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub. It is safe to call repeatedly.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	b.removeLocked(sub)
	b.mu.Unlock()
}

// Publish implements session.Notifier.
func (b *Broadcaster) Publish(t session.Transition) {
	encoded := b.encode(b.transitionMessages(t))
	if len(encoded) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		for _, data := range encoded {
			if !b.trySendLocked(sub, data) {
				break
			}
		}
	}
}

func (b *Broadcaster) trySendLocked(sub *Subscription, data []byte) bool {
	select {
	case sub.ch <- data:
		return true
	default:
		log.Warn().Str("component", "ws").Str("subscriber", sub.id).Msg("subscriber too slow, dropping")
		b.removeLocked(sub)
		return false
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Broadcaster) snapshotMessages(state session.State, artifact session.PairingArtifact) []WSMessage {
	msgs := []WSMessage{
		statusMessage(state),
		{Type: MsgMessage, Payload: textConnecting},
	}
	if state == session.Ready {
		return append(msgs,
			WSMessage{Type: MsgReady, Payload: textReady},
			WSMessage{Type: MsgMessage, Payload: textReady},
		)
	}
	msgs = append(msgs, WSMessage{Type: MsgMessage, Payload: textNotReady})
	if state == session.AwaitingPairing && artifact != "" {
		msgs = append(msgs, b.qrMessages(artifact)...)
	}
	return msgs
}

func (b *Broadcaster) transitionMessages(t session.Transition) []WSMessage {
	msgs := []WSMessage{statusMessage(t.To)}
	switch t.To {
	case session.Initializing:
		msgs = append(msgs, WSMessage{Type: MsgMessage, Payload: textConnecting})
	case session.AwaitingPairing:
		msgs = append(msgs, b.qrMessages(t.Artifact)...)
	case session.Authenticated:
		msgs = append(msgs,
			WSMessage{Type: MsgAuthenticated, Payload: textAuthenticated},
			WSMessage{Type: MsgMessage, Payload: textAuthenticated},
		)
	case session.Ready:
		msgs = append(msgs,
			WSMessage{Type: MsgReady, Payload: textReady},
			WSMessage{Type: MsgMessage, Payload: textReady},
		)
	case session.AuthFailed:
		msgs = append(msgs, WSMessage{Type: MsgMessage, Payload: textAuthFailure})
	case session.Disconnected:
		msgs = append(msgs, WSMessage{Type: MsgMessage, Payload: textDisconnected})
	}
	return msgs
}

func (b *Broadcaster) qrMessages(artifact session.PairingArtifact) []WSMessage {
	url, err := b.render(string(artifact))
	if err != nil {
		log.Error().Err(err).Str("component", "ws").Msg("error generating QR code")
		return nil
	}
	return []WSMessage{
		{Type: MsgQR, Payload: url},
		{Type: MsgMessage, Payload: textQRReceived},
	}
}

func (b *Broadcaster) encode(msgs []WSMessage) [][]byte {
	out := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Error().Err(err).Str("component", "ws").Msg("broadcast marshal error")
			continue
		}
		out = append(out, data)
	}
	return out
}

func statusMessage(state session.State) WSMessage {
	return WSMessage{
		Type:    MsgStatus,
		Payload: StatusPayload{State: state, Ready: state == session.Ready},
	}
}
