// Package frontend serves the pairing page. The page opens a websocket to
// the service (or to BACKEND_URL when the page is hosted elsewhere) and
// renders QR codes and status messages as they arrive.
package frontend

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed static/*
var staticFiles embed.FS

const backendURLPlaceholder = "window.BACKEND_URL = null;"

// Handler serves index.html with backendURL injected. An empty backendURL
// makes the page connect to the host it was loaded from.
func Handler(backendURL string) http.Handler {
	return pageHandler(staticFiles, "static/index.html", backendURL)
}

func pageHandler(fsys fs.FS, name, backendURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := render(fsys, name, backendURL)
		if err != nil {
			log.Error().Err(err).Str("component", "frontend").Msg("error serving index.html")
			http.Error(w, "Error loading the page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
}

func render(fsys fs.FS, name, backendURL string) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	quoted, err := json.Marshal(backendURL)
	if err != nil {
		return nil, errors.Wrap(err, "encode backend url")
	}
	html := strings.Replace(string(raw), backendURLPlaceholder, "window.BACKEND_URL = "+string(quoted)+";", 1)
	return []byte(html), nil
}
