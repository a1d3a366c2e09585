package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/routing"
	"github.com/soyeahso/shaperelay/internal/version"
)

type fakePlatforms []domain.ChannelStatus

func (f fakePlatforms) Status() []domain.ChannelStatus { return f }

type fakeActive []string

func (f fakeActive) List() []string { return f }

type fakeStats routing.Stats

func (f fakeStats) Stats() routing.Stats { return routing.Stats(f) }

func testLogger() *logging.Logger {
	return logging.New(&bytes.Buffer{}, "debug")
}

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger(),
		WithPlatforms(fakePlatforms{{ChannelID: "guilded", Connected: true, Running: true}}),
		WithActivation(fakeActive{"c1", "c2"}),
		WithStats(fakeStats{Received: 5, Commands: 2, Forwarded: 3}),
	)

	rr := serve(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, version.Version, resp.Version)
	assert.Equal(t, "tenshi", resp.Shape)
	assert.Equal(t, 2, resp.ActiveChannels)
	require.Len(t, resp.Platforms, 1)
	assert.Equal(t, "guilded", resp.Platforms[0].ChannelID)
	require.NotNil(t, resp.Router)
	assert.Equal(t, int64(5), resp.Router.Received)
	assert.Equal(t, int64(3), resp.Router.Forwarded)
}

func TestHealthDegradedWhenNothingConnected(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger(),
		WithPlatforms(fakePlatforms{{ChannelID: "irc", Running: true}}),
	)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(serve(t, s, http.MethodGet, "/health").Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Nil(t, resp.Router)
}

func TestChannels(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger(), WithActivation(fakeActive{"a", "b"}))
	var resp ChannelsResponse
	require.NoError(t, json.Unmarshal(serve(t, s, http.MethodGet, "/channels").Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Channels)
}

func TestChannelsEmpty(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger())
	rr := serve(t, s, http.MethodGet, "/channels")
	assert.JSONEq(t, `{"channels":[]}`, rr.Body.String())
}

func TestNotFound(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger())
	rr := serve(t, s, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found","path":"/nope"}`, rr.Body.String())
}

func TestHealthIsReadOnly(t *testing.T) {
	s := New(config.AdminConfig{}, "tenshi", testLogger())
	rr := serve(t, s, http.MethodPost, "/health")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := requestIDMiddleware(inner)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	loggingMiddleware(inner, log).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tea", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/tea"`)
}

func TestStartServesUntilCancelled(t *testing.T) {
	s := New(config.AdminConfig{Bind: "127.0.0.1", Port: 0}, "tenshi", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18790", listenAddr(config.AdminConfig{Port: 18790}))
	assert.Equal(t, "0.0.0.0:80", listenAddr(config.AdminConfig{Bind: "0.0.0.0", Port: 80}))
}
