package stream

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTicker hands out ticks only when a test sends them.
type fakeTicker struct {
	c     chan time.Time
	stops atomic.Int32
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{c: make(chan time.Time)}
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()                  { f.stops.Add(1) }

func (f *fakeTicker) factory() TickerFunc {
	return func(time.Duration) Ticker { return f }
}

// recorder collects observer updates.
type recorder struct {
	mu      sync.Mutex
	updates []string
	notify  chan string
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan string, 64)}
}

func (r *recorder) observe(text string) {
	r.mu.Lock()
	r.updates = append(r.updates, text)
	r.mu.Unlock()
	r.notify <- text
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updates...)
}

// chunkBody replays fixed chunks and then io.EOF, counting Close calls.
type chunkBody struct {
	chunks [][]byte
	err    error
	read   int
	closes atomic.Int32
}

func newChunkBody(chunks ...string) *chunkBody {
	b := &chunkBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

func (b *chunkBody) Read(p []byte) (int, error) {
	if b.read >= len(b.chunks) {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[b.read])
	if n < len(b.chunks[b.read]) {
		b.chunks[b.read] = b.chunks[b.read][n:]
	} else {
		b.read++
	}
	return n, nil
}

func (b *chunkBody) Close() error {
	b.closes.Add(1)
	return nil
}

// blockingBody serves its chunks, then blocks until closed.
type blockingBody struct {
	*chunkBody
	closed chan struct{}
	once   sync.Once
}

func newBlockingBody(chunks ...string) *blockingBody {
	return &blockingBody{chunkBody: newChunkBody(chunks...), closed: make(chan struct{})}
}

func (b *blockingBody) Read(p []byte) (int, error) {
	if b.chunkBody.read < len(b.chunkBody.chunks) {
		return b.chunkBody.Read(p)
	}
	<-b.closed
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return b.chunkBody.Close()
}

func deltaLine(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n"
}
