package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termserve/internal/environment"
	"termserve/internal/registry"
	"termserve/internal/terminal"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestRegistry(t *testing.T) (*registry.Registry, *terminal.Context) {
	t.Helper()

	reg := registry.New(nil)
	tc, err := reg.Allocate(func(id terminal.ID) (*terminal.Context, error) {
		env := environment.New(environment.CRLF, environment.MustParseLocale("en-AU"), nil)
		require.NoError(t, env.SetUser(environment.User("miroir@example.com")))
		return terminal.New(
			id,
			strings.NewReader(""),
			io.Discard,
			io.Discard,
			nopCloser{},
			env,
			func(string, *terminal.Context) (any, error) { return nil, nil },
		)
	})
	require.NoError(t, err)
	return reg, tc
}

func perform(router http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "termserve", body["service"])
}

func TestHealth(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	sessions := body["sessions"].(map[string]any)
	assert.Equal(t, float64(1), sessions["active"])
}

func TestListSessions(t *testing.T) {
	reg, tc := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/sessions")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)

	first := sessions[0].(map[string]any)
	assert.Equal(t, tc.ID().String(), first["id"])
	assert.Equal(t, true, first["open"])
	assert.Equal(t, "miroir@example.com", first["user"])
}

func TestGetSession(t *testing.T) {
	reg, tc := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/sessions/"+tc.ID().String())

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, tc.ID().String(), body["id"])
	assert.Contains(t, body["environment"], "user=")
}

func TestGetSessionNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/sessions/999")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSessionBadID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodGet, "/sessions/not-a-number")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseSession(t *testing.T) {
	reg, tc := newTestRegistry(t)
	router := NewRouter(reg, prometheus.NewRegistry(), nil)

	w := perform(router, http.MethodDelete, "/sessions/"+tc.ID().String())

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, tc.IsOpen())

	// A second close is reported as success: the session is already
	// in the state the caller asked for.
	w = perform(router, http.MethodDelete, "/sessions/"+tc.ID().String())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg, _ := newTestRegistry(t)
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "termserve_test_counter",
	}))
	router := NewRouter(reg, promReg, nil)

	w := perform(router, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "termserve_test_counter")
}
