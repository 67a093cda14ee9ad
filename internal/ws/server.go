package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/dispatch"
	"github.com/zulhijaya18/wa-service-api/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// StateReader exposes the current session state.
type StateReader interface {
	Current() session.State
}

// Sender is the dispatch entry point used by /send-message.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (dispatch.Outcome, error)
}

// Server is the HTTP surface. With a Broadcaster it is the realtime
// variant: it serves the pairing page and the /ws channel. Without one it is
// the degraded variant for hosts that cannot keep connections open, and /
// lists the available endpoints instead.
type Server struct {
	state          StateReader
	sender         Sender
	broadcaster    *Broadcaster
	page           http.Handler
	allowAll       bool
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
}

func NewServer(state StateReader, sender Sender, broadcaster *Broadcaster, page http.Handler, allowedOrigins []string) *Server {
	s := &Server{
		state:          state,
		sender:         sender,
		broadcaster:    broadcaster,
		page:           page,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			s.allowAll = true
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Realtime reports whether the server pushes live events.
func (s *Server) Realtime() bool {
	return s.broadcaster != nil
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /send-message", s.handleSendMessage)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.Realtime() {
		mux.HandleFunc("GET /ws", s.handleWS)
		if s.page != nil {
			log.Info().Str("component", "http").Msg("serving pairing page")
			mux.Handle("GET /{$}", s.page)
		}
		return
	}
	log.Info().Str("component", "http").Msg("realtime channel disabled, serving capability listing")
	mux.HandleFunc("GET /{$}", s.handleCapabilities)
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.cors(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ready := s.state.Current() == session.Ready
	msg := "WhatsApp is not ready"
	if ready {
		msg = "WhatsApp is ready"
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: ready, Message: msg})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendRequest(r)
	if err != nil {
		log.Debug().Err(err).Str("component", "http").Msg("unreadable send request")
		writeJSON(w, http.StatusBadRequest, sendResponse{
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}

	out, err := s.sender.Send(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sendResponse{
			Status:  true,
			Message: "Message sent successfully",
			Data: &sendData{
				To:              out.To,
				FormattedNumber: out.FormattedNumber,
				MessageID:       out.MessageID,
			},
		})
	case errors.Is(err, dispatch.ErrValidation):
		writeJSON(w, http.StatusBadRequest, sendResponse{Message: "Number and message are required!"})
	case errors.Is(err, dispatch.ErrNotReady):
		writeJSON(w, http.StatusBadRequest, sendResponse{Message: textNotReady})
	case errors.Is(err, dispatch.ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, sendResponse{Message: "Too many messages in flight, try again later"})
	default:
		detail := out.ErrorDetail
		if detail == "" {
			detail = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, sendResponse{
			Message: "Error sending message",
			Error:   detail,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		State:    s.state.Current(),
		Realtime: s.Realtime(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
	if s.broadcaster != nil {
		resp.Subscribers = s.broadcaster.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, capabilitiesResponse{
		Message: "WhatsApp API Service",
		Note:    "Real-time QR delivery is not available in this deployment. Pair the session from a long-running instance.",
		Endpoints: []endpoint{
			{Method: http.MethodGet, Path: "/status", Description: "Check whether WhatsApp is ready"},
			{Method: http.MethodPost, Path: "/send-message", Description: "Send a text message: {number, message}"},
			{Method: http.MethodGet, Path: "/healthz", Description: "Service health"},
		},
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "ws").Msg("ws upgrade error")
		return
	}

	sub := s.broadcaster.Subscribe()
	log.Info().Str("component", "ws").Str("remote", r.RemoteAddr).Str("subscriber", sub.ID()).Msg("websocket client connected")

	c := newClient(conn, sub)
	go c.writePump()
	go func() {
		defer func() {
			s.broadcaster.Unsubscribe(sub)
			log.Info().Str("component", "ws").Str("remote", r.RemoteAddr).Msg("websocket client disconnected")
		}()
		c.readPump()
	}()
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			if s.allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if s.allowAll {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		return s.allowedHosts[parsed.Host]
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if s.allowAll || len(s.allowedOrigins) > 0 {
		return s.originAllowed(origin)
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// decodeSendRequest accepts JSON and form-encoded bodies. An empty body
// decodes to an empty request so it is rejected as missing fields.
func decodeSendRequest(r *http.Request) (dispatch.Request, error) {
	var req dispatch.Request
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return req, errors.Wrap(err, "parse form")
		}
		req.Number = r.PostForm.Get("number")
		req.Message = r.PostForm.Get("message")
		return req, nil
	}

	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, errors.Wrap(err, "decode json body")
	}
	req.Number = string(body.Number)
	req.Message = body.Message
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Str("component", "http").Msg("write response")
	}
}

func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
