package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
)

// StepSpinner shows progress for the start and check commands: a braille
// spinner on a terminal, static text otherwise.
type StepSpinner struct {
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	noSpin bool
}

// NewStepSpinner creates a spinner that writes to w. Set noSpin when w is
// not a terminal.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

// Start begins a named step.
func (ss *StepSpinner) Start(msg string) {
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s", msg)
		return
	}
	ss.s = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(ss.w))
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.Start()
}

// Done marks the current step as successful.
func (ss *StepSpinner) Done() { ss.finish(StyleSuccess, SymbolCheck) }

// Fail marks the current step as failed.
func (ss *StepSpinner) Fail() { ss.finish(StyleError, SymbolCross) }

func (ss *StepSpinner) finish(style lipgloss.Style, symbol string) {
	if ss.noSpin {
		fmt.Fprintf(ss.w, " %s\n", style.Render(symbol))
		return
	}
	ss.Stop()
	fmt.Fprintf(ss.w, "\r  %s %s\n", ss.msg, style.Render(symbol))
}

// Stop halts the spinner without printing a status.
func (ss *StepSpinner) Stop() {
	if ss.s != nil {
		ss.s.Stop()
		ss.s = nil
	}
}
