package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, upstream http.HandlerFunc, key string) *Server {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)
	return New(Config{UpstreamURL: up.URL, APIKey: key},
		WithHTTPClient(up.Client()),
		WithLogger(zerolog.Nop()))
}

func decodeDetail(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Detail
}

func TestRootAndHealth(t *testing.T) {
	s := New(Config{}, WithLogger(zerolog.Nop()))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Chatbot MVP Backend API","version":"1.0.0"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestChatCompletions_RequiresKey(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called")
	}, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decodeDetail(t, rec.Body), "API key required")
}

func TestChatCompletions_RelaysStream(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		w.(http.Flusher).Flush()
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\ndata: [DONE]\n\n")
	}, "env-key")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "env-key", gotKey)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, true, gotBody["stream"])
	assert.EqualValues(t, 1000, gotBody["max_tokens"])
	assert.Equal(t, map[string]any{"include_usage": true}, gotBody["stream_options"])

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)
	assert.Contains(t, rec.Body.String(), `"content":"Hel"`)
	assert.True(t, strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n"))
}

func TestChatCompletions_HeaderKeyWins(t *testing.T) {
	var gotKey string
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		io.WriteString(w, "data: [DONE]\n\n")
	}, "env-key")

	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("X-API-Key", "client-key")
	s.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "client-key", gotKey)
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}, "k")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}],"stream":false}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"choices":[{"message":{"content":"hello"}}]}`, rec.Body.String())
}

func TestChatCompletions_UpstreamError(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}, "k")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Upstream API error: slow down", decodeDetail(t, rec.Body))
}

func TestChatCompletions_UpstreamUnreachable(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	url := up.URL
	up.Close()

	s := New(Config{UpstreamURL: url, APIKey: "k"}, WithLogger(zerolog.Nop()))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeDetail(t, rec.Body), "Request to upstream API failed")
}

func TestChatCompletions_InvalidBody(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called")
	}, "k")

	for _, body := range []string{`not json`, `{"messages":[]}`} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestCORS(t *testing.T) {
	s := New(Config{}, WithLogger(zerolog.Nop()))

	req := httptest.NewRequest(http.MethodOptions, "/chat/completions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-api-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "content-type,x-api-key", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvUpstreamURL, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvHost, "")
	t.Setenv(EnvPort, "not-a-port")
	t.Setenv(EnvDebug, "")

	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultUpstreamURL, cfg.UpstreamURL)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.False(t, cfg.Debug)

	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvHost, "127.0.0.1")
	t.Setenv(EnvDebug, "True")

	cfg = ConfigFromEnv()
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.True(t, cfg.Debug)
}
