package ai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enoch-sit/project-1-xx/internal/stream"
)

const helloStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: [DONE]\n\n"

func TestHTTPTransport_SendsPayloadAndHeaders(t *testing.T) {
	var got chatRequest
	var apiKey, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-Key")
		accept = r.Header.Get("Accept")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, helloStream)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "k-123")
	body, err := tr.SendStreamingRequest(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		RequestOptions{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 1000})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())

	assert.Equal(t, helloStream, string(data))
	assert.Equal(t, "k-123", apiKey)
	assert.Equal(t, "text/event-stream", accept)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.True(t, got.Stream)
	require.NotNil(t, got.StreamOptions)
	assert.True(t, got.StreamOptions.IncludeUsage)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, got.Messages)
}

func TestHTTPTransport_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	var present bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-Api-Key"]
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	body, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	require.NoError(t, err)
	body.Close()
	assert.False(t, present)
}

func TestHTTPTransport_UpstreamErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"detail":"rate limited"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, "rate limited", err.Error())
	var se *stream.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stream.KindUpstream, se.Kind)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestHTTPTransport_UpstreamErrorWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	assert.ErrorIs(t, err, stream.ErrUpstream)
	assert.Equal(t, "HTTP 502: Bad Gateway", err.Error())
}

func TestHTTPTransport_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	assert.ErrorIs(t, err, stream.ErrNoResponseBody)
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(url, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	assert.ErrorIs(t, err, stream.ErrTransportUnreachable)
	assert.Contains(t, err.Error(), url)
}

func TestHTTPTransport_BrotliBody(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte(helloStream))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, helloStream, string(data))
}

func TestHTTPTransport_GzipBody(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(helloStream))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, helloStream, string(data))
}

func TestHTTPTransport_UnsupportedEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		io.WriteString(w, "garbage")
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zstd")
	assert.ErrorIs(t, err, stream.ErrRead)
	assert.NotErrorIs(t, err, stream.ErrTransportUnreachable)
}

func TestHTTPTransport_UpstreamErrorGzipBody(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(`{"detail":"rate limited"}`))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	_, err = NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	assert.ErrorIs(t, err, stream.ErrUpstream)
	assert.Equal(t, "rate limited", err.Error())
}

func TestHTTPTransport_UpstreamErrorUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"detail":"rate limited"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").SendStreamingRequest(context.Background(), nil, RequestOptions{})
	var se *stream.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stream.KindUpstream, se.Kind)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "HTTP 429: Too Many Requests", err.Error())
}
