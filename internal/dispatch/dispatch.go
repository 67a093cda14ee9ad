// Package dispatch sends outbound messages through the backend once the
// session is ready.
package dispatch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/zulhijaya18/wa-service-api/internal/phone"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

var (
	ErrValidation = errors.New("number and message are required")
	ErrNotReady   = errors.New("session is not ready")
	ErrBusy       = errors.New("too many messages in flight")
)

// SendError reports a failure of the backend send primitive.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "backend send failed: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// StateReader exposes the current session state.
type StateReader interface {
	Current() session.State
}

// Sender is the backend send primitive.
type Sender interface {
	SendMessage(ctx context.Context, chatID, body string) (string, error)
}

type Request struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type Outcome struct {
	Success         bool
	To              string // number as supplied by the caller
	FormattedNumber string // canonical digits
	ChatID          string // canonical digits plus backend suffix
	MessageID       string
	ErrorDetail     string
}

type Options struct {
	// MaxInFlight bounds concurrent backend sends. Zero means unbounded.
	MaxInFlight int64
	// SendTimeout bounds a single backend send. Zero means no timeout.
	SendTimeout time.Duration
}

type Dispatcher struct {
	state      StateReader
	backend    Sender
	normalizer phone.Normalizer
	sem        *semaphore.Weighted
	timeout    time.Duration
}

func New(state StateReader, backend Sender, normalizer phone.Normalizer, opts Options) *Dispatcher {
	d := &Dispatcher{
		state:      state,
		backend:    backend,
		normalizer: normalizer,
		timeout:    opts.SendTimeout,
	}
	if opts.MaxInFlight > 0 {
		d.sem = semaphore.NewWeighted(opts.MaxInFlight)
	}
	return d
}

// Send validates req, checks readiness once, and makes a single send
// attempt. ErrValidation, ErrNotReady and ErrBusy are returned before the
// backend is contacted. A backend failure yields an unsuccessful Outcome
// together with a *SendError.
func (d *Dispatcher) Send(ctx context.Context, req Request) (Outcome, error) {
	if req.Number == "" || req.Message == "" {
		return Outcome{}, ErrValidation
	}
	if d.state.Current() != session.Ready {
		return Outcome{}, ErrNotReady
	}

	formatted := d.normalizer.Normalize(req.Number)
	out := Outcome{
		To:              req.Number,
		FormattedNumber: formatted,
		ChatID:          d.normalizer.ChatID(formatted),
	}

	if d.sem != nil {
		if !d.sem.TryAcquire(1) {
			return out, ErrBusy
		}
		defer d.sem.Release(1)
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	id, err := d.backend.SendMessage(sendCtx, out.ChatID, req.Message)
	if err != nil {
		log.Error().Err(err).Str("component", "dispatch").Str("to", out.ChatID).Msg("error sending message")
		out.ErrorDetail = err.Error()
		return out, &SendError{Err: err}
	}

	out.Success = true
	out.MessageID = id
	log.Info().Str("component", "dispatch").Str("to", out.ChatID).Str("message_id", id).Msg("message sent")
	return out, nil
}
