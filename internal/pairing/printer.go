package pairing

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

// Printer draws every new pairing QR on a terminal so the session can be
// paired without opening the web page.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Publish implements session.Notifier.
func (p *Printer) Publish(t session.Transition) {
	if t.To != session.AwaitingPairing || t.Artifact == "" {
		return
	}
	log.Info().Str("component", "pairing").Msg("QR RECEIVED")
	art, err := Terminal(string(t.Artifact))
	if err != nil {
		log.Error().Err(err).Str("component", "pairing").Msg("error generating QR code")
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, art)
}
