package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies why a session failed.
type Kind int

const (
	// KindNoResponseBody means the transport answered without a stream.
	KindNoResponseBody Kind = iota + 1
	// KindTransportUnreachable means the request never reached the server.
	KindTransportUnreachable
	// KindUpstream means the server answered with a non-success status.
	KindUpstream
	// KindRead means the stream broke while being read.
	KindRead
	// KindCancelled means the caller gave up on the session.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNoResponseBody:
		return "no_response_body"
	case KindTransportUnreachable:
		return "transport_unreachable"
	case KindUpstream:
		return "upstream_error"
	case KindRead:
		return "read_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the failure of a streaming exchange. Its message is meant to be
// shown to the user as is.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Err* sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNoResponseBody       = &Error{Kind: KindNoResponseBody}
	ErrTransportUnreachable = &Error{Kind: KindTransportUnreachable}
	ErrUpstream             = &Error{Kind: KindUpstream}
	ErrRead                 = &Error{Kind: KindRead}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// NoResponseBody reports a transport answer that carried no stream.
func NoResponseBody() *Error {
	return &Error{Kind: KindNoResponseBody, Message: "no response body received from server"}
}

// TransportUnreachable reports a network failure before any byte arrived.
func TransportUnreachable(endpoint string, err error) *Error {
	return &Error{
		Kind:    KindTransportUnreachable,
		Message: fmt.Sprintf("unable to connect to the backend server at %s, please ensure it is running", endpoint),
		Err:     err,
	}
}

// UpstreamError reports a non-success status. The message comes from the
// structured error body when it has one.
func UpstreamError(status int, body []byte) *Error {
	return &Error{
		Kind:       KindUpstream,
		StatusCode: status,
		Message:    upstreamMessage(status, body),
	}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// upstreamMessage pulls a message out of the error bodies we know:
// {"detail": "..."}, {"error": {"message": "..."}} and {"error": "..."}.
func upstreamMessage(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := rawMessage(payload.Detail); msg != "" {
			return msg
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		if msg := rawMessage(payload.Error); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

// rawMessage returns a JSON string value unquoted, or any other non-null
// value in its compact JSON form.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if raw[0] == '{' {
		return ""
	}
	return string(raw)
}
