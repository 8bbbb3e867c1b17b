// Package ai provides types for the chat completions client.
package ai

import "github.com/enoch-sit/project-1-xx/internal/stream"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation. Order is chronological.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// RequestOptions controls generation parameters for one request.
type RequestOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Reply is the outcome of a streamed chat request.
type Reply struct {
	Text    string
	Usage   *stream.Usage
	Metrics stream.Metrics
	Mode    stream.Mode
}

// chatRequest is the request body sent to the chat completions endpoint.
type chatRequest struct {
	Messages      []Message      `json:"messages"`
	Model         string         `json:"model"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     int            `json:"max_tokens"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}
