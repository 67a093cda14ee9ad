// Package backend defines the boundary to the chat-automation backend that
// owns the actual connection to the messaging network.
package backend

import (
	"context"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

// Sink receives lifecycle events from a backend, one at a time.
type Sink func(session.Event)

// Client is a chat-automation backend connection.
//
// Initialize starts the connection and returns once it is underway; lifecycle
// events arrive later on sink. Destroy releases the connection and its
// resources; after it returns no further events are delivered. SendMessage
// hands a text message to the backend and returns the provider message id.
//
// Exited is closed when the connection started by the last Initialize ends
// on its own, without Destroy. It fires even when no lifecycle event was
// produced, for example when the process dies before reporting anything.
// A nil channel means the backend cannot die on its own.
type Client interface {
	Initialize(ctx context.Context, sink Sink) error
	Destroy(ctx context.Context) error
	SendMessage(ctx context.Context, chatID, body string) (string, error)
	Exited() <-chan struct{}
}
