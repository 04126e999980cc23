package policy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// StdinPrompter reads one line from an interactive terminal and accepts
// iff the response is "y" or "yes", case-insensitive — the engine's
// "Ask interactive" branch. Deliberately a plain single-line read rather
// than a richer rate-limited approval workflow.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{In: in, Out: out}
}

func (p *StdinPrompter) Confirm(tool, primaryArg, rule string) (bool, error) {
	if p.Out != nil {
		if primaryArg != "" {
			fmt.Fprintf(p.Out, "Allow %s(%s)? [matched %q] (y/N): ", tool, primaryArg, rule)
		} else {
			fmt.Fprintf(p.Out, "Allow %s? [matched %q] (y/N): ", tool, rule)
		}
	}
	reader := bufio.NewReader(p.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

// NewAutoPrompter picks the right Prompter for in without the caller
// having to check interactivity itself: a real terminal gets a
// StdinPrompter, anything else (a pipe, a redirected file, a CI runner)
// gets AutoDeny, since there is no one on the other end to answer an
// Ask decision.
func NewAutoPrompter(in *os.File, out io.Writer) Prompter {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return NewStdinPrompter(in, out)
	}
	return AutoDeny{}
}
