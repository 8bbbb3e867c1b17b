package ai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/enoch-sit/project-1-xx/internal/stream"
)

const (
	defaultTimeout = 300 * time.Second
	maxErrorBody   = 64 * 1024
	apiKeyHeader   = "X-API-Key"
)

// HTTPTransport implements Transport for an OpenAI-compatible chat
// completions endpoint, such as the proxy started by `xx serve`.
type HTTPTransport struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport posting to endpoint. An empty apiKey
// leaves authentication to the server.
func NewHTTPTransport(endpoint, apiKey string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
					return operation + " " + r.URL.Path
				}),
			),
		},
	}
}

// Endpoint returns the URL requests are sent to.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// SendStreamingRequest posts the conversation and returns the response body
// once a success status has been received.
func (t *HTTPTransport) SendStreamingRequest(ctx context.Context, history []Message, opts RequestOptions) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Messages:      history,
		Model:         opts.Model,
		Temperature:   opts.Temperature,
		MaxTokens:     opts.MaxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", "br, gzip")
	if t.apiKey != "" {
		req.Header.Set(apiKeyHeader, t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, stream.TransportUnreachable(t.endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, upstreamFailure(resp)
	}

	// Instrumented transports wrap the body, so an empty answer is only
	// visible through its length.
	if resp.Body == nil || resp.Body == http.NoBody || resp.ContentLength == 0 {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, stream.NoResponseBody()
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return decoded, nil
}

// upstreamFailure builds the error for a non-success answer. A body that
// cannot be decoded still yields the status.
func upstreamFailure(resp *http.Response) *stream.Error {
	if resp.Body == nil || resp.Body == http.NoBody {
		return stream.UpstreamError(resp.StatusCode, nil)
	}
	decoded, err := decodeBody(resp)
	if err != nil {
		return stream.UpstreamError(resp.StatusCode, nil)
	}
	errBody, _ := io.ReadAll(io.LimitReader(decoded, maxErrorBody))
	return stream.UpstreamError(resp.StatusCode, errBody)
}

// decodeBody undoes the content encodings we advertise. The returned
// closer always closes the underlying response body.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "br":
		return &encodedBody{Reader: brotli.NewReader(resp.Body), body: resp.Body}, nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &stream.Error{Kind: stream.KindRead, Message: fmt.Sprintf("failed to read gzip stream: %v", err), Err: err}
		}
		return &encodedBody{Reader: gz, body: resp.Body, extra: gz}, nil
	default:
		return nil, &stream.Error{Kind: stream.KindRead, Message: fmt.Sprintf("unsupported content encoding %q", enc)}
	}
}

type encodedBody struct {
	io.Reader
	body  io.Closer
	extra io.Closer
}

func (b *encodedBody) Close() error {
	if b.extra != nil {
		_ = b.extra.Close()
	}
	return b.body.Close()
}
