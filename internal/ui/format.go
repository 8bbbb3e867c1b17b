package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderMarkdown styles a finished reply for the terminal. width <= 0
// disables wrapping.
func RenderMarkdown(text string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// Wrap word-wraps text to width and indents every line by pad spaces.
func Wrap(text string, width int, pad uint) string {
	if width > 0 {
		text = wordwrap.String(text, width)
	}
	return indent.String(text, pad)
}

// Preview collapses text onto one line and cuts it to width cells.
func Preview(text string, width int) string {
	line := strings.Join(strings.Fields(text), " ")
	return truncate.StringWithTail(line, uint(width), "…")
}
