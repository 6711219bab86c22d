package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks the operator yes/no questions.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// AssumeYes answers every question with yes, e.g. for --yes.
	AssumeYes bool
}

// NewPrompter returns a Prompter on stdin and stderr.
func NewPrompter(assumeYes bool) *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr, AssumeYes: assumeYes}
}

// Confirm prints prompt and returns true only for "y" or "yes". Read
// errors, including EOF, count as no.
func (p *Prompter) Confirm(prompt string) bool {
	if p.AssumeYes {
		return true
	}
	fmt.Fprintf(p.Out, "%s [y/N] ", prompt)

	reader := bufio.NewReader(p.In)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
