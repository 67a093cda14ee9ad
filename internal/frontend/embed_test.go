package frontend

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerInjectsBackendURL(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler("https://wa.example.com").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `window.BACKEND_URL = "https://wa.example.com";`)
	assert.NotContains(t, rec.Body.String(), backendURLPlaceholder)
}

func TestHandlerEscapesBackendURL(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(`"</script><script>alert(1)</script>`).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, rec.Body.String(), "</script><script>alert(1)")
}

func TestHandlerMissingPage(t *testing.T) {
	rec := httptest.NewRecorder()
	pageHandler(fstest.MapFS{}, "static/index.html", "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error loading the page\n", rec.Body.String())
}
