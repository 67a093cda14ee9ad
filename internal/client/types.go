package client

import (
	"encoding/json"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

// Message types pushed by the realtime channel.
const (
	MsgStatus        = "status"
	MsgMessage       = "message"
	MsgQR            = "qr"
	MsgAuthenticated = "authenticated"
	MsgReady         = "ready"
)

// WSMessage is the envelope of every realtime frame.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type StatusPayload struct {
	State session.State `json:"state"`
	Ready bool          `json:"ready"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// SendResponse is the body of POST /send-message for both outcomes.
type SendResponse struct {
	Status  bool      `json:"status"`
	Message string    `json:"message"`
	Data    *SendData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type SendData struct {
	To              string `json:"to"`
	FormattedNumber string `json:"formattedNumber"`
	MessageID       string `json:"messageId"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	State       session.State `json:"state"`
	Realtime    bool          `json:"realtime"`
	Subscribers int           `json:"subscribers"`
	Uptime      string        `json:"uptime"`
}
