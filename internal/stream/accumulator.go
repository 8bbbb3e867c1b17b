package stream

import (
	"strings"
	"sync"
)

// Accumulator is the append-only text assembled from deltas. One goroutine
// appends while others may read; strings handed out are never modified.
type Accumulator struct {
	mu  sync.RWMutex
	buf strings.Builder
}

// Append adds fragment to the end and returns the full text so far.
func (a *Accumulator) Append(fragment string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.WriteString(fragment)
	return a.buf.String()
}

func (a *Accumulator) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.String()
}

// Len returns the accumulated length in bytes.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buf.Len()
}
