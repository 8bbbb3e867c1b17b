// Package server implements the streaming chat completions proxy: it adds
// the upstream API key and relays the upstream event stream unchanged.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/enoch-sit/project-1-xx/internal/ai"
)

const (
	Version = "1.0.0"

	upstreamTimeout = 300 * time.Second
	maxRequestBody  = 4 << 20
	maxErrorBody    = 64 << 10
	relayBufferSize = 4 << 10
)

// Server proxies chat completion requests to the upstream API.
type Server struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.client = c }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the proxy and its routes.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		client: &http.Client{
			Timeout:   upstreamTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "server").Logger()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(cors)
	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Post("/chat/completions", s.chatCompletions)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Chatbot MVP Backend API",
		"version": Version,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// completionRequest mirrors the client payload. Absent fields take the
// defaults the upstream expects.
type completionRequest struct {
	Messages      []ai.Message   `json:"messages"`
	Model         *string        `json:"model,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	Stream        *bool          `json:"stream,omitempty"`
	StreamOptions map[string]any `json:"stream_options,omitempty"`
}

func (c *completionRequest) applyDefaults() {
	if c.Model == nil {
		m := "gpt-4o-mini"
		c.Model = &m
	}
	if c.Temperature == nil {
		t := 0.7
		c.Temperature = &t
	}
	if c.MaxTokens == nil {
		n := 1000
		c.MaxTokens = &n
	}
	if c.Stream == nil {
		b := true
		c.Stream = &b
	}
	if c.StreamOptions == nil {
		c.StreamOptions = map[string]any{"include_usage": true}
	}
}

func (s *Server) chatCompletions(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = s.cfg.APIKey
	}
	if key == "" {
		writeDetail(w, http.StatusUnauthorized,
			"API key required. Provide via X-API-Key header or "+EnvAPIKey+" environment variable.")
		return
	}

	var req completionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "messages must not be empty")
		return
	}
	req.applyDefaults()

	payload, err := json.Marshal(req)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}

	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}
	upReq.Header.Set("Content-Type", "application/json")
	upReq.Header.Set("api-key", key)

	logger := zerolog.Ctx(r.Context())
	resp, err := s.client.Do(upReq)
	if err != nil {
		logger.Warn().Err(err).Msg("upstream request failed")
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Request to upstream API failed: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn().Int("status", resp.StatusCode).Msg("upstream returned error")
		writeDetail(w, resp.StatusCode, "Upstream API error: "+string(body))
		return
	}

	if !*req.Stream {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.Copy(w, resp.Body)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	n, err := relay(w, resp.Body)
	if err != nil && r.Context().Err() == nil {
		logger.Warn().Err(err).Int64("bytes", n).Msg("stream relay interrupted")
		return
	}
	logger.Debug().Int64("bytes", n).Msg("stream relayed")
}

// relay copies src to w, flushing after every chunk so the client sees
// events as soon as they arrive.
func relay(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, relayBufferSize)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return total, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
