package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulhijaya18/wa-service-api/internal/backend"
	"github.com/zulhijaya18/wa-service-api/internal/backend/bridge"
	"github.com/zulhijaya18/wa-service-api/internal/backend/mock"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

type fakeBackend struct {
	mu       sync.Mutex
	initErrs []error
	inits    int
	destroys int
	sink     backend.Sink
	exited   chan struct{}
}

func (f *fakeBackend) Initialize(_ context.Context, sink backend.Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	if len(f.initErrs) > 0 {
		err := f.initErrs[0]
		f.initErrs = f.initErrs[1:]
		return err
	}
	f.sink = sink
	f.exited = make(chan struct{})
	return nil
}

func (f *fakeBackend) Exited() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

// die simulates the backend process going away without reporting anything.
func (f *fakeBackend) die() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.exited)
}

func (f *fakeBackend) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	return nil
}

func (f *fakeBackend) SendMessage(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeBackend) emit(ev session.Event) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink(ev)
}

func (f *fakeBackend) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits, f.destroys
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

func (r *delayRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func runSupervisor(t *testing.T, s *Supervisor) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("supervisor did not stop")
		}
	}
}

func TestBackoffSequence(t *testing.T) {
	s := New(&fakeBackend{}, session.NewMachine(), Options{BaseDelay: time.Second, MaxDelay: 30 * time.Second})

	var got []time.Duration
	for i := 0; i < 7; i++ {
		got = append(got, s.nextDelay())
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestBackoffResetsOnReady(t *testing.T) {
	m := session.NewMachine()
	s := New(&fakeBackend{}, m, Options{BaseDelay: time.Second, MaxDelay: time.Minute})
	s.nextDelay()
	s.nextDelay()

	m.Apply(session.Event{Kind: session.EventAuthenticated})
	m.Apply(session.Event{Kind: session.EventReady})

	assert.Equal(t, time.Second, s.nextDelay())
}

func TestRecyclesOnDisconnect(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	rec := &delayRecorder{}
	s.sleep = rec.sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)

	b.emit(session.Event{Kind: session.EventAuthenticated})
	b.emit(session.Event{Kind: session.EventReady})
	b.emit(session.Event{Kind: session.EventDisconnected})

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)
	_, destroys := b.counts()
	assert.Equal(t, 1, destroys)
	assert.Equal(t, int64(1), s.Restarts())
	assert.Equal(t, session.Initializing, m.Current())
	assert.Equal(t, []time.Duration{DefaultBaseDelay}, rec.all())
}

func TestRecyclesOnAuthFailure(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	s.sleep = (&delayRecorder{}).sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)
	b.emit(session.Event{Kind: session.EventPairingChallenge, Artifact: "qr"})
	b.emit(session.Event{Kind: session.EventAuthFailure})

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, session.Initializing, m.Current())
}

func TestStaleEventsAreDropped(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	s.sleep = (&delayRecorder{}).sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)
	b.mu.Lock()
	oldSink := b.sink
	b.mu.Unlock()

	b.emit(session.Event{Kind: session.EventAuthFailure})
	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)

	oldSink(session.Event{Kind: session.EventPairingChallenge, Artifact: "stale"})
	assert.Equal(t, session.Initializing, m.Current())
}

func TestInitializeRetries(t *testing.T) {
	b := &fakeBackend{initErrs: []error{errors.New("no chrome"), errors.New("no chrome")}}
	s := New(b, session.NewMachine(), Options{BaseDelay: time.Second, MaxDelay: 10 * time.Second})
	rec := &delayRecorder{}
	s.sleep = rec.sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.all())
}

func TestPauseDefersRecovery(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	s.sleep = (&delayRecorder{}).sleep

	stop := runSupervisor(t, s)
	defer stop()
	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)

	s.Pause()
	assert.True(t, s.Paused())
	b.emit(session.Event{Kind: session.EventAuthFailure})

	time.Sleep(20 * time.Millisecond)
	inits, destroys := b.counts()
	assert.Equal(t, 1, inits)
	assert.Zero(t, destroys)
	assert.Equal(t, session.AuthFailed, m.Current())

	s.Resume()
	assert.False(t, s.Paused())
	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)
}

func TestRunDestroysOnExit(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, session.NewMachine(), Options{})
	stop := runSupervisor(t, s)
	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)
	stop()
	_, destroys := b.counts()
	assert.Equal(t, 1, destroys)
}

func TestWithMockBackend(t *testing.T) {
	m := session.NewMachine()
	b := mock.New(mock.Config{RestoredSession: true, DisconnectAfter: 20 * time.Millisecond})
	s := New(b, m, Options{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { return s.Restarts() >= 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestRecyclesWhenBackendExitsBeforeAnyEvent(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	rec := &delayRecorder{}
	s.sleep = rec.sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)
	require.Equal(t, session.Initializing, m.Current())
	b.die()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)
	_, destroys := b.counts()
	assert.Equal(t, 1, destroys)
	assert.Equal(t, int64(1), s.Restarts())
	assert.Equal(t, []time.Duration{DefaultBaseDelay}, rec.all())
}

func TestExitAndFaultFromSameConnectionRecycleOnce(t *testing.T) {
	b := &fakeBackend{}
	m := session.NewMachine()
	s := New(b, m, Options{})
	s.sleep = (&delayRecorder{}).sleep

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 1 }, time.Second, time.Millisecond)
	b.emit(session.Event{Kind: session.EventAuthenticated})
	b.emit(session.Event{Kind: session.EventReady})
	b.die()
	b.emit(session.Event{Kind: session.EventDisconnected})

	require.Eventually(t, func() bool { inits, _ := b.counts(); return inits == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	inits, _ := b.counts()
	assert.Equal(t, 2, inits)
	assert.Equal(t, int64(1), s.Restarts())
}

func TestRecyclesCrashingBridgeSidecar(t *testing.T) {
	m := session.NewMachine()
	b := bridge.New(bridge.Config{Command: "sh", Args: []string{"-c", "exit 1"}})
	s := New(b, m, Options{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	stop := runSupervisor(t, s)
	defer stop()

	require.Eventually(t, func() bool { return s.Restarts() >= 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, session.Initializing, m.Current())
}
