package bridge

import "encoding/json"

// Lines written by the sidecar on stdout. A line is either a lifecycle
// event ({"event": ...}) or a reply to a command ({"id": ...}).
type inbound struct {
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	ID        string          `json:"id,omitempty"`
	OK        bool            `json:"ok,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Commands written to the sidecar on stdin.
type command struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	To   string `json:"to,omitempty"`
	Body string `json:"body,omitempty"`
}

type reply struct {
	messageID string
	err       error
}

// dataString extracts a string payload; non-string payloads are returned as
// raw JSON text.
func (in inbound) dataString() string {
	if len(in.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(in.Data, &s); err == nil {
		return s
	}
	return string(in.Data)
}
