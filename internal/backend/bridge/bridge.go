// Package bridge drives an external automation sidecar (for example a
// headless-browser WhatsApp client) over newline-delimited JSON on its
// standard streams.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/backend"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

const maxLineSize = 1 << 20

var (
	ErrNotRunning    = errors.New("bridge sidecar is not running")
	ErrSidecarExited = errors.New("bridge sidecar exited")
)

type Config struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
}

type Client struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[string]chan reply
	closing bool
	exited  chan struct{} // closed once the process has been reaped
	died    chan struct{} // closed when the process exits without Destroy

	writeMu sync.Mutex
}

var _ backend.Client = (*Client)(nil)

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Initialize(ctx context.Context, sink backend.Sink) error {
	if c.cfg.Command == "" {
		return errors.New("bridge command is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return errors.New("bridge already initialized")
	}

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	cmd.Env = append(os.Environ(), c.cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "sidecar stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "sidecar stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "sidecar stderr")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start sidecar %s", c.cfg.Command)
	}

	log.Info().Str("component", "bridge").Int("pid", cmd.Process.Pid).Str("command", c.cfg.Command).Msg("sidecar started")

	c.cmd = cmd
	c.stdin = stdin
	c.pending = make(map[string]chan reply)
	c.closing = false
	exited := make(chan struct{})
	c.exited = exited
	died := make(chan struct{})
	c.died = died

	go c.logStderr(stderr)
	go c.readLoop(cmd, stdout, sink, exited, died)
	return nil
}

// Exited implements backend.Client.
func (c *Client) Exited() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.died
}

func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	cmd, stdin, exited := c.cmd, c.stdin, c.exited
	if cmd == nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	_ = stdin.Close()
	killTree(cmd.Process.Pid)

	select {
	case <-exited:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	if c.cmd == cmd {
		c.cmd = nil
		c.stdin = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, body string) (string, error) {
	id := uuid.NewString()
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.cmd == nil || c.closing {
		c.mu.Unlock()
		return "", ErrNotRunning
	}
	stdin := c.stdin
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(stdin, command{ID: id, Op: "send", To: chatID, Body: body}); err != nil {
		c.forget(id)
		return "", err
	}

	select {
	case r := <-ch:
		return r.messageID, r.err
	case <-ctx.Done():
		c.forget(id)
		return "", ctx.Err()
	}
}

func (c *Client) write(w io.Writer, cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "encode command")
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "write to sidecar")
	}
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop(cmd *exec.Cmd, stdout io.Reader, sink backend.Sink, exited, died chan struct{}) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		var in inbound
		if err := json.Unmarshal(scanner.Bytes(), &in); err != nil {
			log.Debug().Str("component", "bridge").Err(err).Msg("skipping malformed sidecar line")
			continue
		}
		if in.ID != "" {
			c.resolve(in)
			continue
		}
		if in.Event == "" {
			continue
		}
		if c.isClosing() {
			continue
		}
		sink(toEvent(in))
	}

	waitErr := cmd.Wait()

	// Release the handle in the same section as the pending swap so no send
	// can register against a process that is already gone.
	c.mu.Lock()
	closing := c.closing
	pending := c.pending
	c.pending = make(map[string]chan reply)
	if !closing && c.cmd == cmd {
		c.cmd = nil
		c.stdin = nil
	}
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- reply{err: ErrSidecarExited}
	}
	close(exited)

	if closing {
		return
	}

	reason := "sidecar exited"
	if waitErr != nil {
		reason = waitErr.Error()
	}
	log.Warn().Str("component", "bridge").Str("reason", reason).Msg("sidecar exited unexpectedly")
	sink(session.Event{Kind: session.EventDisconnected, Reason: reason})
	close(died)
}

func (c *Client) resolve(in inbound) {
	c.mu.Lock()
	ch, ok := c.pending[in.ID]
	delete(c.pending, in.ID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if in.OK {
		ch <- reply{messageID: in.MessageID}
		return
	}
	detail := in.Error
	if detail == "" {
		detail = "send rejected by sidecar"
	}
	ch <- reply{err: errors.New(detail)}
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		log.Debug().Str("component", "bridge").Str("stream", "stderr").Msg(scanner.Text())
	}
}

func toEvent(in inbound) session.Event {
	kind := session.ParseEventKind(in.Event)
	ev := session.Event{Kind: kind}
	switch kind {
	case session.EventPairingChallenge:
		ev.Artifact = session.PairingArtifact(in.dataString())
	case session.EventAuthFailure, session.EventDisconnected:
		ev.Reason = in.dataString()
	case session.EventUnknown:
		ev.Reason = in.Event
	}
	return ev
}
