// Package supervisor keeps the backend connection alive: it reacts to
// AuthFailed and Disconnected by tearing the connection down and bringing up
// a fresh one, backing off between attempts.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/backend"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 30 * time.Second

	destroyTimeout = 10 * time.Second
)

type Options struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

type Supervisor struct {
	backend backend.Client
	machine *session.Machine

	baseDelay time.Duration
	maxDelay  time.Duration

	// attempts since the session was last Ready; drives the backoff.
	attempts atomic.Int32
	restarts atomic.Int64
	gen      atomic.Uint64

	pauseMu sync.Mutex
	resume  chan struct{} // non-nil while paused

	sleep func(ctx context.Context, d time.Duration) bool
}

func New(b backend.Client, m *session.Machine, opts Options) *Supervisor {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = max(DefaultMaxDelay, opts.BaseDelay)
	}
	s := &Supervisor{
		backend:   b,
		machine:   m,
		baseDelay: opts.BaseDelay,
		maxDelay:  opts.MaxDelay,
		sleep:     sleepCtx,
	}
	m.Observe(session.NotifierFunc(func(t session.Transition) {
		if t.To == session.Ready {
			s.attempts.Store(0)
		}
	}))
	return s
}

// Run initializes the backend and recovers it on every fault until ctx is
// cancelled. A fault is either an AuthFailed/Disconnected transition or the
// backend exiting on its own, which may happen before any event reached the
// machine. The backend is destroyed before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.destroy()

	if !s.start(ctx) {
		return nil
	}

	for {
		exited := s.backend.Exited()
		select {
		case <-ctx.Done():
			return nil
		case fault := <-s.machine.Faults():
			log.Warn().Str("component", "supervisor").
				Str("state", fault.To.String()).
				Str("reason", fault.Event.Reason).
				Msg("session fault, recycling backend")
		case <-exited:
			log.Warn().Str("component", "supervisor").
				Str("state", s.machine.Current().String()).
				Msg("backend exited, recycling")
		}
		if !s.recycle(ctx) {
			return nil
		}
	}
}

// recycle tears the backend down, waits out the backoff and brings up a
// fresh connection. It reports false once ctx is cancelled.
func (s *Supervisor) recycle(ctx context.Context) bool {
	if !s.waitResumed(ctx) {
		return false
	}
	s.destroy()
	if !s.sleep(ctx, s.nextDelay()) {
		return false
	}
	s.machine.Restart()
	s.restarts.Add(1)
	return s.start(ctx)
}

// Pause defers recovery of future faults until Resume is called. The
// current connection is left untouched.
func (s *Supervisor) Pause() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume == nil {
		s.resume = make(chan struct{})
	}
}

func (s *Supervisor) Resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
	}
}

func (s *Supervisor) Paused() bool {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	return s.resume != nil
}

// Restarts returns how many times the backend has been recycled.
func (s *Supervisor) Restarts() int64 {
	return s.restarts.Load()
}

// start initializes the backend, retrying with backoff until it succeeds or
// ctx is cancelled.
func (s *Supervisor) start(ctx context.Context) bool {
	for {
		gen := s.gen.Add(1)
		err := s.backend.Initialize(ctx, s.sinkFor(gen))
		if err == nil {
			log.Info().Str("component", "supervisor").Uint64("generation", gen).Msg("backend initialized")
			return true
		}
		delay := s.nextDelay()
		log.Error().Err(err).Str("component", "supervisor").Dur("retry_in", delay).Msg("backend initialize failed")
		if !s.sleep(ctx, delay) {
			return false
		}
	}
}

// sinkFor drops events from connections older than gen.
func (s *Supervisor) sinkFor(gen uint64) backend.Sink {
	return func(ev session.Event) {
		if s.gen.Load() != gen {
			return
		}
		s.machine.Apply(ev)
	}
}

func (s *Supervisor) destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
	defer cancel()
	// Invalidate the sink first so teardown noise never reaches the machine.
	s.gen.Add(1)
	if err := s.backend.Destroy(ctx); err != nil {
		log.Error().Err(err).Str("component", "supervisor").Msg("backend destroy failed")
	}
}

func (s *Supervisor) nextDelay() time.Duration {
	n := s.attempts.Add(1) - 1
	d := s.baseDelay
	for i := int32(0); i < n && d < s.maxDelay; i++ {
		d *= 2
	}
	return min(d, s.maxDelay)
}

func (s *Supervisor) waitResumed(ctx context.Context) bool {
	s.pauseMu.Lock()
	resume := s.resume
	s.pauseMu.Unlock()
	if resume == nil {
		return true
	}
	log.Info().Str("component", "supervisor").Msg("recovery paused")
	select {
	case <-resume:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
