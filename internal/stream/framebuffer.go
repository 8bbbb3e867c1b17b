package stream

import (
	"iter"
	"strings"
)

// FrameBuffer reassembles newline-terminated lines from text that arrives in
// arbitrary pieces. Text after the last separator stays pending until a later
// Push completes it or Flush releases it.
type FrameBuffer struct {
	pending string
}

// Push appends text and returns the complete lines it made available, with
// the separator (and a trailing carriage return) stripped. Lines leave the
// buffer as the sequence is iterated; breaking out early keeps the rest for
// the next Push or Flush.
func (b *FrameBuffer) Push(text string) iter.Seq[string] {
	b.pending += text
	return func(yield func(string) bool) {
		for {
			i := strings.IndexByte(b.pending, '\n')
			if i < 0 {
				return
			}
			line := strings.TrimSuffix(b.pending[:i], "\r")
			b.pending = b.pending[i+1:]
			if !yield(line) {
				return
			}
		}
	}
}

// Pending returns the buffered text not yet terminated by a separator.
func (b *FrameBuffer) Pending() string {
	return b.pending
}

// Flush empties the buffer and returns what was left as one final line.
// The result may be empty.
func (b *FrameBuffer) Flush() string {
	line := strings.TrimSuffix(b.pending, "\r")
	b.pending = ""
	return line
}
