package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulhijaya18/wa-service-api/internal/session"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  interface{}
	}{
		{"status", `{"type":"status","payload":{"state":"ready","ready":true}}`, WSStatusMsg{Payload: StatusPayload{State: session.Ready, Ready: true}}},
		{"message", `{"type":"message","payload":"WhatsApp is ready!"}`, WSTextMsg{Text: "WhatsApp is ready!"}},
		{"qr", `{"type":"qr","payload":"data:image/png;base64,AAAA"}`, WSQRMsg{DataURL: "data:image/png;base64,AAAA"}},
		{"authenticated", `{"type":"authenticated","payload":"WhatsApp is authenticated!"}`, WSAuthenticatedMsg{}},
		{"ready", `{"type":"ready","payload":"WhatsApp is ready!"}`, WSReadyMsg{}},
		{"unknown type", `{"type":"bogus","payload":null}`, nil},
		{"bad status", `{"type":"status","payload":{"state":"sleeping"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg WSMessage
			require.NoError(t, json.Unmarshal([]byte(tt.frame), &msg))
			assert.Equal(t, tt.want, Decode(msg))
		})
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:3000/ws", DeriveWSURL("http://127.0.0.1:3000"))
	assert.Equal(t, "wss://wa.example.com/ws", DeriveWSURL("https://wa.example.com/"))
}

func TestHTTPClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"WhatsApp is ready"}`))
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL).Status(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Status)
	assert.Equal(t, "WhatsApp is ready", got.Message)
}

func TestHTTPClientSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0812", body["number"])
		assert.Equal(t, "hi", body["message"])
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"WhatsApp is not ready!"}`))
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL).Send(context.Background(), "0812", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	require.NotNil(t, got)
	assert.Equal(t, "WhatsApp is not ready!", got.Message)
}

func TestHTTPClientSendOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"Message sent successfully","data":{"to":"0812","formattedNumber":"62812@c.us","messageId":"3EB0ABC"}}`))
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL).Send(context.Background(), "0812", "hi")
	require.NoError(t, err)
	require.NotNil(t, got.Data)
	assert.Equal(t, "62812@c.us", got.Data.FormattedNumber)
	assert.Equal(t, "3EB0ABC", got.Data.MessageID)
}

func TestWSClientReadsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus","payload":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","payload":"Connecting to WhatsApp..."}`))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewWSClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer c.Close()

	assert.Equal(t, WSConnectedMsg{}, c.Listen(ctx)())
	assert.Equal(t, WSTextMsg{Text: "Connecting to WhatsApp..."}, c.ReadLoop(ctx)())
}

func TestWSClientReadLoopWithoutConnection(t *testing.T) {
	msg := NewWSClient("ws://127.0.0.1:1/ws").ReadLoop(context.Background())()
	_, ok := msg.(WSDisconnectedMsg)
	assert.True(t, ok)
}
