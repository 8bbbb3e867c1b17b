// Package ai sends conversations to a chat completions endpoint and streams
// the assistant's reply back through the stream package.
package ai

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/stream"
)

// maxHistory caps how many turns are sent to stay within the model's
// context window.
const maxHistory = 20

// Client streams chat replies through a Transport.
type Client struct {
	transport Transport
	opts      RequestOptions
	mode      stream.Mode
	cadence   time.Duration
}

// NewClient creates a client for the configured HTTP endpoint.
func NewClient(cfg *config.Config) *Client {
	return NewClientWithTransport(NewHTTPTransport(cfg.APIURL, cfg.APIKey), cfg)
}

// NewClientWithTransport creates a client using a custom transport.
// Useful for testing or alternative backends.
func NewClientWithTransport(t Transport, cfg *config.Config) *Client {
	mode, ok := stream.ParseMode(cfg.StreamMode)
	if !ok {
		mode = stream.ModeInstant
	}
	return &Client{
		transport: t,
		opts: RequestOptions{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		mode:    mode,
		cadence: cfg.Cadence(),
	}
}

// Mode returns the client's default presentation mode.
func (c *Client) Mode() stream.Mode {
	return c.mode
}

// ChatOption adjusts a single Chat call.
type ChatOption func(*chatCall)

type chatCall struct {
	mode        stream.Mode
	cadence     time.Duration
	sessionOpts []stream.Option
}

// WithMode overrides the presentation mode for one call.
func WithMode(m stream.Mode) ChatOption {
	return func(c *chatCall) { c.mode = m }
}

// WithCadence overrides the typewriter speed for one call.
func WithCadence(d time.Duration) ChatOption {
	return func(c *chatCall) {
		if d > 0 {
			c.cadence = d
		}
	}
}

// WithSessionOptions passes extra options to the underlying stream session.
func WithSessionOptions(opts ...stream.Option) ChatOption {
	return func(c *chatCall) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// Chat sends history and streams the reply. onUpdate receives the text as
// it grows; the returned Reply carries the complete text.
func (c *Client) Chat(ctx context.Context, history []Message, onUpdate stream.Observer, opts ...ChatOption) (*Reply, error) {
	call := chatCall{mode: c.mode, cadence: c.cadence}
	for _, opt := range opts {
		opt(&call)
	}

	trimmed := TrimHistory(history, maxHistory)
	sessionOpts := append([]stream.Option{
		stream.WithMode(call.mode),
		stream.WithCadence(call.cadence),
	}, call.sessionOpts...)
	session := stream.NewSession(onUpdate, sessionOpts...)

	log.Debug().
		Str("model", c.opts.Model).
		Int("turns", len(trimmed)).
		Str("mode", string(call.mode)).
		Msg("sending chat request")

	text, err := session.Run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return c.transport.SendStreamingRequest(ctx, trimmed, c.opts)
	})
	reply := &Reply{
		Text:    text,
		Usage:   session.Usage(),
		Metrics: session.Metrics(),
		Mode:    call.mode,
	}
	if err != nil {
		reply.Text = session.Text()
		log.Debug().Err(err).Stringer("kind", stream.KindOf(err)).Msg("chat request failed")
		return reply, err
	}
	return reply, nil
}

// TrimHistory keeps the last limit turns. Leading system turns are always
// kept so instructions survive trimming.
func TrimHistory(history []Message, limit int) []Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	var system []Message
	rest := history
	for len(rest) > 0 && rest[0].Role == RoleSystem {
		system = append(system, rest[0])
		rest = rest[1:]
	}
	keep := limit - len(system)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	out := make([]Message, 0, len(system)+len(rest))
	out = append(out, system...)
	return append(out, rest...)
}
