package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	pongTimeout        = 60 * time.Second
)

// WSClient manages the realtime connection to the wa-service API.
type WSClient struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url string) *WSClient {
	return &WSClient{url: url}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSStatusMsg carries the session state.
type WSStatusMsg struct{ Payload StatusPayload }

// WSTextMsg carries a human-readable status line.
type WSTextMsg struct{ Text string }

// WSQRMsg carries a pairing QR code as a PNG data URL.
type WSQRMsg struct{ DataURL string }

// WSAuthenticatedMsg is sent once pairing succeeds.
type WSAuthenticatedMsg struct{}

// WSReadyMsg is sent when the session can send messages.
type WSReadyMsg struct{}

// Listen returns a Bubble Tea command that connects and reports
// WSConnectedMsg. It retries with exponential backoff until ctx ends.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err == nil {
				c.mu.Lock()
				c.conn = conn
				c.mu.Unlock()
				return WSConnectedMsg{}
			}
			log.Debug().Err(err).Dur("retry", delay).Msg("ws dial failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// ReadLoop returns a Bubble Tea command that reads the next message from the
// connection. It should be reissued after every message it delivers.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		conn.SetPingHandler(func(data string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			if ctx.Err() != nil {
				conn.Close()
				return nil
			}
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return WSDisconnectedMsg{Err: err}
			}
			conn.SetReadDeadline(time.Now().Add(pongTimeout))

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if teaMsg := Decode(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// Close drops the active connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Decode maps a realtime frame onto its Bubble Tea message. Unknown or
// malformed frames yield nil.
func Decode(msg WSMessage) tea.Msg {
	switch msg.Type {
	case MsgStatus:
		var p StatusPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSStatusMsg{Payload: p}
		}
	case MsgMessage:
		var text string
		if json.Unmarshal(msg.Payload, &text) == nil {
			return WSTextMsg{Text: text}
		}
	case MsgQR:
		var url string
		if json.Unmarshal(msg.Payload, &url) == nil {
			return WSQRMsg{DataURL: url}
		}
	case MsgAuthenticated:
		return WSAuthenticatedMsg{}
	case MsgReady:
		return WSReadyMsg{}
	}
	return nil
}
