// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner shows a waiting indicator until the first text of a reply arrives.
// Stop may be called from any goroutine, any number of times.
type Spinner struct {
	s    *spinner.Spinner
	w    io.Writer
	once sync.Once
}

// NewSpinner creates a spinner on stderr with the given message.
func NewSpinner(msg string) *Spinner {
	return newSpinner(os.Stderr, msg)
}

func newSpinner(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line. It reports whether this call
// was the one that stopped it.
func (sp *Spinner) Stop() bool {
	stopped := false
	sp.once.Do(func() {
		sp.s.Stop()
		stopped = true
	})
	return stopped
}

// Fail stops the spinner and prints msg with a red cross. Nothing is printed
// if the spinner was already stopped, since reply text then owns the line.
func (sp *Spinner) Fail(msg string) {
	if !sp.Stop() {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(sp.w, "  ✗ %s\n", msg)
}
