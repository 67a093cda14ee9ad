package ws

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

type MessageType string

const (
	MsgStatus        MessageType = "status"
	MsgMessage       MessageType = "message"
	MsgQR            MessageType = "qr"
	MsgAuthenticated MessageType = "authenticated"
	MsgReady         MessageType = "ready"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusPayload struct {
	State session.State `json:"state"`
	Ready bool          `json:"ready"`
}

// Human-readable texts pushed on the "message" channel.
const (
	textConnecting    = "Connecting to WhatsApp..."
	textReady         = "WhatsApp is ready!"
	textNotReady      = "WhatsApp is not ready!"
	textQRReceived    = "QR Code received, scan please!"
	textAuthenticated = "WhatsApp is authenticated!"
	textAuthFailure   = "Auth failure, restarting..."
	textDisconnected  = "WhatsApp is disconnected!"
)

// Bodies of the JSON HTTP API.

type sendRequestBody struct {
	Number  digitsOrString `json:"number"`
	Message string         `json:"message"`
}

// digitsOrString accepts a phone number sent either as a JSON string or as a
// bare JSON number. Number literals keep their exact digits.
type digitsOrString string

func (d *digitsOrString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*d = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = digitsOrString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("number must be a string or a number, got %s", data)
	}
	*d = digitsOrString(n.String())
	return nil
}

type statusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status  bool      `json:"status"`
	Message string    `json:"message"`
	Data    *sendData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type sendData struct {
	To              string `json:"to"`
	FormattedNumber string `json:"formattedNumber"`
	MessageID       string `json:"messageId"`
}

type healthResponse struct {
	State       session.State `json:"state"`
	Realtime    bool          `json:"realtime"`
	Subscribers int           `json:"subscribers"`
	Uptime      string        `json:"uptime"`
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

type capabilitiesResponse struct {
	Message   string     `json:"message"`
	Note      string     `json:"note"`
	Endpoints []endpoint `json:"endpoints"`
}
