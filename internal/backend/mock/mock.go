// Package mock provides a scripted backend that walks through pairing,
// authentication and readiness on a timer. It is used for demos and tests.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/backend"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

// ErrNotConnected is returned by SendMessage before the scripted session is
// ready or after it has been destroyed.
var ErrNotConnected = errors.New("mock session is not connected")

// Config controls the scripted timeline. Zero delays fire immediately.
type Config struct {
	PairingDelay    time.Duration // until the first pairing challenge
	PairingRefresh  time.Duration // rotate the pairing code this often (0 = never)
	AuthDelay       time.Duration // from challenge to authenticated
	ReadyDelay      time.Duration // from authenticated to ready
	DisconnectAfter time.Duration // from ready to a simulated disconnect (0 = never)
	RestoredSession bool          // skip pairing as if credentials were stored
	FailSends       bool          // every send fails
}

// SentMessage records a message accepted by the mock.
type SentMessage struct {
	ID     string
	ChatID string
	Body   string
	At     time.Time
}

type Client struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	ready  bool
	sent   []SentMessage
}

var _ backend.Client = (*Client)(nil)

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Initialize(ctx context.Context, sink backend.Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("mock client already initialized")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.ready = false
	go c.run(runCtx, sink, c.done)
	return nil
}

func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.ready = false
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) SendMessage(ctx context.Context, chatID, body string) (string, error) {
	if c.cfg.FailSends {
		return "", errors.Errorf("evaluation failed: chat %s not found", chatID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return "", ErrNotConnected
	}
	id := "3EB0" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	c.sent = append(c.sent, SentMessage{ID: id, ChatID: chatID, Body: body, At: time.Now()})
	return id, nil
}

// Exited returns nil: the scripted session only ends through its own
// disconnect event or Destroy.
func (c *Client) Exited() <-chan struct{} {
	return nil
}

// Sent returns a copy of the messages accepted so far.
func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

func (c *Client) run(ctx context.Context, sink backend.Sink, done chan struct{}) {
	defer close(done)

	if !c.cfg.RestoredSession {
		if !sleep(ctx, c.cfg.PairingDelay) {
			return
		}
		sink(session.Event{Kind: session.EventPairingChallenge, Artifact: newArtifact()})

		if !c.awaitScan(ctx, sink) {
			return
		}
	}

	sink(session.Event{Kind: session.EventAuthenticated})

	if !sleep(ctx, c.cfg.ReadyDelay) {
		return
	}
	c.mu.Lock()
	c.ready = ctx.Err() == nil
	c.mu.Unlock()
	sink(session.Event{Kind: session.EventReady})

	if c.cfg.DisconnectAfter <= 0 {
		<-ctx.Done()
		return
	}
	if !sleep(ctx, c.cfg.DisconnectAfter) {
		return
	}
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	log.Debug().Str("component", "mock").Msg("simulating disconnect")
	sink(session.Event{Kind: session.EventDisconnected, Reason: "NAVIGATION"})
}

// awaitScan waits AuthDelay, rotating the pairing code on PairingRefresh.
func (c *Client) awaitScan(ctx context.Context, sink backend.Sink) bool {
	if c.cfg.PairingRefresh <= 0 || c.cfg.PairingRefresh >= c.cfg.AuthDelay {
		return sleep(ctx, c.cfg.AuthDelay)
	}
	deadline := time.NewTimer(c.cfg.AuthDelay)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PairingRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return true
		case <-ticker.C:
			sink(session.Event{Kind: session.EventPairingChallenge, Artifact: newArtifact()})
		}
	}
}

func newArtifact() session.PairingArtifact {
	return session.PairingArtifact("2@" + uuid.NewString())
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
