package stream

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Ticker is the part of *time.Ticker the pacer relies on.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time { return t.C }

// NewTicker is the default TickerFunc, backed by time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Pacer reveals a growing text one character per tick, independently of how
// fast the text itself grows. After Finish it keeps ticking until the
// revealed text has caught up, reports the complete text once more, and
// exits. Stop ends it at once without that final report.
type Pacer struct {
	cadence   time.Duration
	source    func() string
	observe   Observer
	newTicker TickerFunc

	shown int // bytes of source revealed so far

	startOnce  sync.Once
	finishOnce sync.Once
	stopOnce   sync.Once
	finish     chan struct{}
	stop       chan struct{}
	done       chan struct{}
}

// NewPacer returns a pacer reading from source and reporting to observe.
// A nil newTicker means NewTicker.
func NewPacer(cadence time.Duration, source func() string, observe Observer, newTicker TickerFunc) *Pacer {
	if newTicker == nil {
		newTicker = NewTicker
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Pacer{
		cadence:   cadence,
		source:    source,
		observe:   observe,
		newTicker: newTicker,
		finish:    make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the tick loop. Calling it more than once has no effect.
func (p *Pacer) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

// Finish tells the pacer no more text will arrive.
func (p *Pacer) Finish() {
	p.finishOnce.Do(func() { close(p.finish) })
}

// Stop halts the pacer and waits for the tick loop to exit. It is safe to
// call repeatedly and from any exit path.
func (p *Pacer) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.startOnce.Do(func() { close(p.done) })
	<-p.done
}

// Done is closed once the tick loop has exited.
func (p *Pacer) Done() <-chan struct{} {
	return p.done
}

func (p *Pacer) run() {
	defer close(p.done)
	t := p.newTicker(p.cadence)
	defer t.Stop()

	finish := p.finish
	finishing := false
	for {
		select {
		case <-p.stop:
			return
		case <-finish:
			finish = nil
			finishing = true
			if p.stopped() || p.complete() {
				return
			}
		case <-t.Chan():
			if p.stopped() {
				return
			}
			p.step()
			if finishing && p.complete() {
				return
			}
		}
	}
}

// step reveals one more character if the source is ahead of the display.
func (p *Pacer) step() {
	text := p.source()
	if p.shown >= len(text) {
		return
	}
	_, size := utf8.DecodeRuneInString(text[p.shown:])
	p.shown += size
	p.notify(text[:p.shown])
}

// complete delivers the final report once the display has caught up. A
// stopped pacer reports nothing.
func (p *Pacer) complete() bool {
	text := p.source()
	if p.shown < len(text) {
		return false
	}
	if p.stopped() {
		return true
	}
	p.notify(text)
	return true
}

func (p *Pacer) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *Pacer) notify(text string) {
	if p.observe != nil {
		p.observe(text)
	}
}
