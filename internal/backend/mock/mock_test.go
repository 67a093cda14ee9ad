package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

type eventLog struct {
	mu  sync.Mutex
	evs []session.Event
}

func (l *eventLog) sink(ev session.Event) {
	l.mu.Lock()
	l.evs = append(l.evs, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []session.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.EventKind, len(l.evs))
	for i, ev := range l.evs {
		out[i] = ev.Kind
	}
	return out
}

func TestScriptedTimeline(t *testing.T) {
	c := New(Config{})
	log := &eventLog{}
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	defer c.Destroy(context.Background())

	require.Eventually(t, func() bool { return len(log.kinds()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []session.EventKind{
		session.EventPairingChallenge,
		session.EventAuthenticated,
		session.EventReady,
	}, log.kinds())

	id, err := c.SendMessage(context.Background(), "6281@c.us", "hi")
	require.NoError(t, err)
	assert.Len(t, id, 20)
	require.Len(t, c.Sent(), 1)
	assert.Equal(t, "6281@c.us", c.Sent()[0].ChatID)
}

func TestRestoredSessionSkipsPairing(t *testing.T) {
	c := New(Config{RestoredSession: true})
	log := &eventLog{}
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	defer c.Destroy(context.Background())

	require.Eventually(t, func() bool { return len(log.kinds()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, session.EventAuthenticated, log.kinds()[0])
}

func TestDisconnectAfter(t *testing.T) {
	c := New(Config{RestoredSession: true, DisconnectAfter: 10 * time.Millisecond})
	log := &eventLog{}
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	defer c.Destroy(context.Background())

	require.Eventually(t, func() bool { return len(log.kinds()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, session.EventDisconnected, log.kinds()[2])

	_, err := c.SendMessage(context.Background(), "6281@c.us", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendBeforeReady(t *testing.T) {
	c := New(Config{AuthDelay: time.Hour})
	_, err := c.SendMessage(context.Background(), "6281@c.us", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestFailSends(t *testing.T) {
	c := New(Config{FailSends: true})
	_, err := c.SendMessage(context.Background(), "6281@c.us", "hi")
	assert.Error(t, err)
}

func TestDestroyStopsEvents(t *testing.T) {
	c := New(Config{PairingDelay: time.Hour})
	log := &eventLog{}
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	require.NoError(t, c.Destroy(context.Background()))
	assert.Empty(t, log.kinds())

	// Destroy is safe to repeat, and the client can be initialized again.
	require.NoError(t, c.Destroy(context.Background()))
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	require.NoError(t, c.Destroy(context.Background()))
}

func TestDoubleInitialize(t *testing.T) {
	c := New(Config{PairingDelay: time.Hour})
	require.NoError(t, c.Initialize(context.Background(), func(session.Event) {}))
	defer c.Destroy(context.Background())
	assert.Error(t, c.Initialize(context.Background(), func(session.Event) {}))
}

func TestPairingRefresh(t *testing.T) {
	c := New(Config{AuthDelay: 200 * time.Millisecond, PairingRefresh: 20 * time.Millisecond})
	log := &eventLog{}
	require.NoError(t, c.Initialize(context.Background(), log.sink))
	defer c.Destroy(context.Background())

	require.Eventually(t, func() bool {
		n := 0
		for _, k := range log.kinds() {
			if k == session.EventPairingChallenge {
				n++
			}
		}
		return n >= 3
	}, time.Second, 5*time.Millisecond)
}
