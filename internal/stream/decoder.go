package stream

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Usage is the token accounting carried by a usage-only trailer record.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event is the meaningful content of one data line.
type Event struct {
	// Delta is the incremental text of the first choice, if any.
	Delta string
	// Done is set for the end-of-stream sentinel.
	Done bool
	// Usage is set when the record carries token accounting.
	Usage *Usage
}

// completionChunk is the subset of a chat-completions stream record we read.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// EventDecoder interprets single lines of an event stream. Lines that are not
// data records, or whose payload does not parse, are skipped without error
// because upstreams interleave keep-alives and comments freely.
type EventDecoder struct {
	logger  zerolog.Logger
	skipped int
}

func NewEventDecoder(logger zerolog.Logger) *EventDecoder {
	return &EventDecoder{logger: logger}
}

// Decode returns the event carried by line. ok is false when the line
// yields nothing: no data prefix, malformed payload, or a record with neither
// text nor usage.
func (d *EventDecoder) Decode(line string) (Event, bool) {
	payload, isData := dataPayload(line)
	if !isData {
		return Event{}, false
	}
	if payload == doneSentinel {
		return Event{Done: true}, true
	}

	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		d.skipped++
		d.logger.Debug().Err(err).Str("payload", preview(payload)).Msg("skipping malformed event")
		return Event{}, false
	}

	ev := Event{Usage: chunk.Usage}
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != nil {
		ev.Delta = *chunk.Choices[0].Delta.Content
	}
	if ev.Delta == "" && ev.Usage == nil {
		return Event{}, false
	}
	return ev, true
}

// Skipped returns how many data lines were dropped as malformed.
func (d *EventDecoder) Skipped() int {
	return d.skipped
}

func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, dataPrefix)), true
}

func preview(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
