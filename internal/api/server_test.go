package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/observability"
)

func newTestServer(t *testing.T) (*Server, *Bridge) {
	t.Helper()
	b, _ := newTestBridge(t)
	m, err := observability.NewMetrics(b.Session().Pool())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.AppendTimeout = 100 * time.Millisecond
	s, err := New(cfg, b, WithMetrics(m))
	require.NoError(t, err)
	return s, b
}

func do(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_DeviceLifecycle(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/rx/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "HACKRF_ERROR_NOT_FOUND", decodeStatus(t, rec).Name)

	rec = do(t, s, http.MethodPost, "/api/v1/device/open", strings.NewReader(`{"fd":3}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusResponse{Code: 0, Name: "HACKRF_SUCCESS", Message: "no error"}, decodeStatus(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/device/open", strings.NewReader(`{"fd":3}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, -6, decodeStatus(t, rec).Code)

	rec = do(t, s, http.MethodGet, "/api/v1/device", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dev DeviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dev))
	assert.Equal(t, "open", dev.State)
	assert.Equal(t, "off", dev.Mode)
	assert.NotEmpty(t, dev.SessionID)

	rec = do(t, s, http.MethodPost, "/api/v1/device/close", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SetParams(t *testing.T) {
	t.Parallel()
	s, b := newTestServer(t)
	require.Zero(t, b.Open(3).Code())

	tests := []struct {
		name   string
		param  string
		body   string
		status int
	}{
		{"frequency ok", "frequency", `{"value":433000000}`, http.StatusOK},
		{"frequency below range", "frequency", `{"value":100}`, http.StatusBadRequest},
		{"sample rate ok", "samplerate", `{"value":2000000}`, http.StatusOK},
		{"vga gain above range", "vgagain", `{"value":70}`, http.StatusBadRequest},
		{"gain overflows uint32", "lnagain", `{"value":4294967296}`, http.StatusBadRequest},
		{"amp", "amp", `{"enable":true}`, http.StatusOK},
		{"unknown", "squelch", `{"value":1}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := do(t, s, http.MethodPut, "/api/v1/params/"+tt.param, strings.NewReader(tt.body))
		assert.Equal(t, tt.status, rec.Code, tt.name)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"frequency_hz":433000000`)
	assert.Contains(t, rec.Body.String(), `"amp_enable":true`)
}

func TestServer_StreamRoutes(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/streams/sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/streams/tx/next", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/streams/tx/append", bytes.NewReader([]byte{9, 8, 7}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/streams/tx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st StreamStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.HasData)
	assert.Equal(t, 3, st.Bytes)

	rec = do(t, s, http.MethodGet, "/api/v1/streams/tx/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{9, 8, 7}, rec.Body.Bytes())

	rec = do(t, s, http.MethodPost, "/api/v1/streams/tx/discard", strings.NewReader(`{"bytes":10}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"discarded":3}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/streams/tx/append", bytes.NewReader([]byte{1}))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/v1/streams/tx", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/streams/tx/next", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_AppendTimesOutWhenFull(t *testing.T) {
	t.Parallel()
	s, b := newTestServer(t)

	for range b.Session().TxStream().Cap() {
		rec := do(t, s, http.MethodPost, "/api/v1/streams/tx/append", bytes.NewReader([]byte{1}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/streams/tx/append", bytes.NewReader([]byte{1}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "HACKRF_ERROR_OTHER", decodeStatus(t, rec).Name)
}

func TestServer_RecordingRequiresPath(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/recording/start", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/recording/start", strings.NewReader(`{"path":"/x.iq"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/recording", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"recording":false,"bytes_written":0}`, rec.Body.String())
}

func TestServer_MetricsAndHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"device_open":false`)

	do(t, s, http.MethodPost, "/api/v1/rx/start", nil)

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/health",status_code="200"} 1`)
	assert.Contains(t, body, `http_request_errors_total{method="POST",path="/api/v1/rx/start",status="HACKRF_ERROR_NOT_FOUND"} 1`)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Listen = "no-port"
	require.Error(t, cfg.Validate())

	_, err := New(cfg, NewBridge(t.Context(), nil, nil))
	require.Error(t, err)
}

func TestServer_RequestIDInHeaderAndLog(t *testing.T) {
	t.Parallel()
	b, _ := newTestBridge(t)

	buf := &syncBuffer{}
	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	s, err := New(cfg, b, WithLogger(logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)))
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, id)
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "client-supplied")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), `"request_id":"client-supplied"`)
}

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
