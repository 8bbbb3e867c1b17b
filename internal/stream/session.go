// Package stream consumes chat-completion event streams. It reassembles lines
// from raw chunks, decodes data records into text deltas, accumulates them,
// and reports the growing reply to an observer either as it arrives
// (instant mode) or revealed one character per tick (typewriter mode).
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultCadence is the typewriter reveal interval per character.
	DefaultCadence = 30 * time.Millisecond

	defaultReadSize = 4 * 1024
)

// Observer receives the current text: the accumulated reply in instant
// mode, the revealed prefix in typewriter mode. Typewriter updates come from
// the pacer goroutine; calls never overlap.
type Observer func(text string)

// Mode selects how updates reach the observer.
type Mode string

const (
	ModeInstant    Mode = "instant"
	ModeTypewriter Mode = "typewriter"
)

// ParseMode accepts "instant" or "typewriter".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeInstant, ModeTypewriter:
		return Mode(s), true
	}
	return "", false
}

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateResolved
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Opener acquires the response stream. The returned body is closed by the
// session exactly once.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Metrics describes a finished session.
type Metrics struct {
	Deltas      int
	Bytes       int64
	Skipped     int
	SawSentinel bool
	FirstDelta  time.Duration
	Elapsed     time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithMode selects instant or typewriter presentation.
func WithMode(m Mode) Option {
	return func(s *Session) { s.mode = m }
}

// WithCadence sets the typewriter interval per revealed character.
func WithCadence(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.cadence = d
		}
	}
}

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithTicker replaces the ticker used for typewriter pacing.
func WithTicker(f TickerFunc) Option {
	return func(s *Session) { s.newTicker = f }
}

// WithReadSize sets the transport read buffer size.
func WithReadSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.readSize = n
		}
	}
}

// Session drives one request/response exchange. It is single-use.
type Session struct {
	mode      Mode
	cadence   time.Duration
	observe   Observer
	logger    zerolog.Logger
	newTicker TickerFunc
	readSize  int

	mu    sync.Mutex
	state State
	used  bool

	text    textDecoder
	frames  FrameBuffer
	decoder *EventDecoder
	acc     Accumulator
	usage   *Usage
	done    bool
	metrics Metrics
	start   time.Time
}

// NewSession returns an idle session reporting to observe, which may be nil.
func NewSession(observe Observer, opts ...Option) *Session {
	s := &Session{
		mode:      ModeInstant,
		cadence:   DefaultCadence,
		observe:   observe,
		logger:    log.Logger,
		newTicker: NewTicker,
		readSize:  defaultReadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := ParseMode(string(s.mode)); !ok {
		s.mode = ModeInstant
	}
	s.logger = s.logger.With().Str("component", "stream").Str("mode", string(s.mode)).Logger()
	s.decoder = NewEventDecoder(s.logger)
	return s
}

// Run opens the stream, pumps it to the end and returns the full reply.
// Cancelling ctx interrupts a blocked read; in that case no final update is
// delivered and the error has KindCancelled.
func (s *Session) Run(ctx context.Context, open Opener) (reply string, err error) {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		return "", errors.New("stream: session already used")
	}
	s.used = true
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "stream.Session.Run",
		trace.WithAttributes(attribute.String("stream.mode", string(s.mode))))
	s.start = time.Now()
	defer func() {
		s.metrics.Elapsed = time.Since(s.start)
		s.metrics.Skipped = s.decoder.Skipped()
		span.SetAttributes(
			attribute.String("stream.state", s.State().String()),
			attribute.Int("stream.deltas", s.metrics.Deltas),
			attribute.Int64("stream.bytes", s.metrics.Bytes),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := open(ctx)
	if err != nil {
		if body != nil {
			_ = body.Close()
		}
		if ctx.Err() != nil {
			return "", s.cancelled(ctx)
		}
		return "", s.fail(err)
	}
	if body == nil {
		return "", s.fail(NoResponseBody())
	}

	rc := &releaser{rc: body}
	defer rc.release()
	stopWatch := context.AfterFunc(ctx, rc.release)
	defer stopWatch()

	s.setState(StateStreaming)

	var pacer *Pacer
	if s.mode == ModeTypewriter {
		pacer = NewPacer(s.cadence, s.acc.String, s.observe, s.newTicker)
		pacer.Start()
		defer pacer.Stop()
	}

	readErr := s.pump(rc)
	if ctx.Err() != nil {
		return "", s.cancelled(ctx)
	}
	if readErr != nil {
		return "", s.fail(&Error{Kind: KindRead, Message: fmt.Sprintf("stream interrupted: %v", readErr), Err: readErr})
	}

	if pacer != nil {
		s.setState(StateDraining)
		pacer.Finish()
		select {
		case <-pacer.Done():
		case <-ctx.Done():
			pacer.Stop()
			return "", s.cancelled(ctx)
		}
	}

	s.setState(StateResolved)
	return s.acc.String(), nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the reply accumulated so far.
func (s *Session) Text() string {
	return s.acc.String()
}

// Usage returns the token accounting of the last usage record seen, if any.
func (s *Session) Usage() *Usage {
	return s.usage
}

// Metrics returns counters for the session. It is meant to be read after Run.
func (s *Session) Metrics() Metrics {
	return s.metrics
}

// pump reads the transport until it ends. Lines after the sentinel are not
// decoded, but the body is still drained so the connection is released
// cleanly.
func (s *Session) pump(r io.Reader) error {
	buf := make([]byte, s.readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.metrics.Bytes += int64(n)
			s.consume(s.text.Decode(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			s.consume(s.text.Flush())
			if !s.done {
				s.handleLine(s.frames.Flush())
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) consume(text string) {
	if s.done || text == "" {
		return
	}
	for line := range s.frames.Push(text) {
		s.handleLine(line)
		if s.done {
			return
		}
	}
}

func (s *Session) handleLine(line string) {
	ev, ok := s.decoder.Decode(line)
	if !ok {
		return
	}
	if ev.Done {
		s.done = true
		s.metrics.SawSentinel = true
		s.logger.Debug().Int("deltas", s.metrics.Deltas).Msg("stream sentinel received, draining")
		return
	}
	if ev.Usage != nil {
		s.usage = ev.Usage
	}
	if ev.Delta == "" {
		return
	}
	if s.metrics.Deltas == 0 {
		s.metrics.FirstDelta = time.Since(s.start)
	}
	s.metrics.Deltas++
	text := s.acc.Append(ev.Delta)
	if s.mode == ModeInstant && s.observe != nil {
		s.observe(text)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	s.logger.Debug().Stringer("from", prev).Stringer("to", st).Msg("stream state")
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindTransportUnreachable, Message: err.Error(), Err: err}
}

func (s *Session) cancelled(ctx context.Context) error {
	s.setState(StateCancelled)
	return &Error{Kind: KindCancelled, Message: "request cancelled", Err: context.Cause(ctx)}
}

// releaser closes the transport body once, whichever exit path gets there
// first.
type releaser struct {
	rc   io.ReadCloser
	once sync.Once
}

func (r *releaser) Read(p []byte) (int, error) {
	return r.rc.Read(p)
}

func (r *releaser) release() {
	r.once.Do(func() {
		_ = r.rc.Close()
	})
}
