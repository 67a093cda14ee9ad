package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// client pumps one subscription onto one websocket connection.
type client struct {
	conn *websocket.Conn
	sub  *Subscription
	done chan struct{}
}

func newClient(conn *websocket.Conn, sub *Subscription) *client {
	return &client{
		conn: conn,
		sub:  sub,
		done: make(chan struct{}),
	}
}

// writePump owns all writes to the connection. It exits when the
// subscription is closed or the reader goes away.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.C():
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards inbound frames and returns when the peer disconnects.
func (c *client) readPump() {
	defer close(c.done)
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
