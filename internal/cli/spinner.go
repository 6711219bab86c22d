package cli

import (
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Spinner shows progress on stderr while a call is in flight. A nil
// Spinner is valid and does nothing.
type Spinner struct {
	s *spinner.Spinner
}

// StartSpinner starts a spinner with message. Quiet and structured output
// get a nil Spinner.
func (p *Printer) StartSpinner(message string) *Spinner {
	if p.Quiet || p.Structured() {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(p.Err))
	s.Suffix = " " + message
	s.Start()
	return &Spinner{s: s}
}

// Update replaces the spinner message.
func (sp *Spinner) Update(message string) {
	if sp == nil {
		return
	}
	sp.s.Lock()
	sp.s.Suffix = " " + message
	sp.s.Unlock()
}

// Stop clears the spinner.
func (sp *Spinner) Stop() {
	if sp == nil {
		return
	}
	sp.s.Stop()
}

// Fail stops the spinner leaving a red failure line behind.
func (sp *Spinner) Fail(message string) {
	if sp == nil {
		return
	}
	sp.s.FinalMSG = text.FgRed.Sprint("✗ "+message) + "\n"
	sp.s.Stop()
}
