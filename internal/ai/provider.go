package ai

import (
	"context"
	"io"
)

// Transport is the interface any chat backend must implement. It sends the
// conversation with streaming enabled and returns the raw event stream.
// Failures should be *stream.Error values so callers can tell them apart.
type Transport interface {
	SendStreamingRequest(ctx context.Context, history []Message, opts RequestOptions) (io.ReadCloser, error)
}
