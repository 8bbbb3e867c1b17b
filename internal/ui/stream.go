package ui

import (
	"io"
	"strings"
	"sync"
)

// StreamRenderer writes successive snapshots of a reply to w. Each snapshot
// extends the one before it, so only the new suffix is written. Every line
// of output starts with prefix.
type StreamRenderer struct {
	mu          sync.Mutex
	w           io.Writer
	prefix      string
	written     int
	atLineStart bool
}

// NewStreamRenderer creates a renderer writing to w with the given line prefix.
func NewStreamRenderer(w io.Writer, prefix string) *StreamRenderer {
	return &StreamRenderer{w: w, prefix: prefix, atLineStart: true}
}

// Update renders snapshot. It matches stream.Observer so it can be passed
// straight to a session. Snapshots that do not extend what was already
// written are ignored.
func (r *StreamRenderer) Update(snapshot string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snapshot) <= r.written {
		return
	}
	r.write(snapshot[r.written:])
	r.written = len(snapshot)
}

// Finish terminates the output with a blank line. It returns the number of
// bytes of reply text that were rendered.
func (r *StreamRenderer) Finish() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.atLineStart {
		io.WriteString(r.w, "\n")
		r.atLineStart = true
	}
	if r.written > 0 {
		io.WriteString(r.w, "\n")
	}
	return r.written
}

// Started reports whether any reply text has been rendered.
func (r *StreamRenderer) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written > 0
}

func (r *StreamRenderer) write(s string) {
	var b strings.Builder
	for len(s) > 0 {
		if r.atLineStart {
			b.WriteString(r.prefix)
			r.atLineStart = false
		}
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i+1])
		s = s[i+1:]
		r.atLineStart = true
	}
	io.WriteString(r.w, b.String())
}
