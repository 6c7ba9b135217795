package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompter asks on Out and reads answers from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm accepts "y" or "yes" in any case. Anything else, including EOF,
// is a no.
func (p *TerminalPrompter) Confirm(msg string) bool {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "%s [y/N]: ", msg)
	line, _ := p.reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Alert prints msg on its own line.
func (p *TerminalPrompter) Alert(msg string) {
	fmt.Fprintln(p.Out, msg)
}

// FixedPrompter answers Confirm with Answer and records alerts. The web front
// end builds one per request from the submitted form.
type FixedPrompter struct {
	Answer bool
	Alerts []string
}

func (p *FixedPrompter) Confirm(string) bool {
	return p.Answer
}

func (p *FixedPrompter) Alert(msg string) {
	p.Alerts = append(p.Alerts, msg)
}
