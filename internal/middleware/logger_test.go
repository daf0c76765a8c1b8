package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lixing-Zhang/ebook-landing/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRequestRecorder struct {
	requests []recordedRequest
}

func (f *fakeRequestRecorder) RequestObserved(method, route string, status int) {
	f.requests = append(f.requests, recordedRequest{method: method, route: route, status: status})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	rec := &fakeRequestRecorder{}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Logger(logger.NewWithWriter(&buf, "info"), rec))
	r.Get("/api/discount/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/discount/WIZ99", nil))

	require.Len(t, rec.requests, 1)
	assert.Equal(t, recordedRequest{method: http.MethodGet, route: "/api/discount/{code}", status: http.StatusNotFound}, rec.requests[0])

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "/api/discount/WIZ99", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestTrace_PassesThrough(t *testing.T) {
	h := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
