// Package render draws transcript entries on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/x/ansi"

	"MediChat/internal/chatclient"
	"MediChat/internal/session"
)

// Terminal writes entries to an io.Writer. Server text is sanitized before it
// is printed, so a reply cannot move the cursor or recolour the terminal.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	options []chatclient.Option
}

// NewTerminal creates a renderer writing to out
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// AppendEntry prints a text entry with its role badge
func (t *Terminal) AppendEntry(e session.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Role {
	case session.RoleUser:
		fmt.Fprintf(t.out, "%s %s\n", userRoleStyle.Render("You"), Sanitize(e.Text))
	default:
		fmt.Fprintf(t.out, "%s %s\n", botRoleStyle.Render("Bot"), formatBotText(Sanitize(e.Text), e.Diagnosis))
	}
}

// AppendActions prints the options numbered from 1 and remembers them as the
// current set for Select.
func (t *Terminal) AppendActions(opts []chatclient.Option) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.options = append([]chatclient.Option(nil), opts...)
	t.writeOptionsLocked()
}

// AppendLinks prints one line per link
func (t *Terminal) AppendLinks(links []session.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range links {
		fmt.Fprintf(t.out, "    %s %s\n", dimStyle.Render("•"), linkStyle.Render(Sanitize(l.URL)))
	}
}

// ScrollToLatest separates rounds with a blank line; a terminal is always
// scrolled to its latest output.
func (t *Terminal) ScrollToLatest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out)
}

// Notice prints a message that is not part of the transcript
func (t *Terminal) Notice(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, noticeStyle.Render(Sanitize(msg)))
}

// Option returns option n (1-based) of the latest set.
func (t *Terminal) Option(n int) (chatclient.Option, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n < 1 || n > len(t.options) {
		return chatclient.Option{}, false
	}
	return t.options[n-1], true
}

// ReprintOptions prints the latest option set again. It reports false when
// no options have been offered yet.
func (t *Terminal) ReprintOptions() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.options) == 0 {
		return false
	}
	t.writeOptionsLocked()
	return true
}

// Replay prints a transcript from the start
func (t *Terminal) Replay(entries []session.Entry) {
	for _, e := range entries {
		switch e.Kind {
		case session.KindText:
			t.AppendEntry(e)
		case session.KindActions:
			t.mu.Lock()
			for i, label := range e.Options {
				fmt.Fprintf(t.out, "    %s\n", dimStyle.Render(fmt.Sprintf("[%d] %s", i+1, Sanitize(label))))
			}
			t.mu.Unlock()
		case session.KindLink:
			t.AppendLinks([]session.Entry{e})
		}
	}
}

func (t *Terminal) writeOptionsLocked() {
	for i, opt := range t.options {
		fmt.Fprintf(t.out, "    %s\n", optionStyle.Render(fmt.Sprintf("[%d] %s", i+1, Sanitize(opt.Label))))
	}
}

// formatBotText bolds the headline of a diagnosis entry and indents its
// explanation.
func formatBotText(text string, diagnosis bool) string {
	if !diagnosis {
		return text
	}
	head, tail, _ := strings.Cut(text, "\n")
	out := diagnosisStyle.Render(head)
	if tail != "" {
		out += "\n    " + tail
	}
	return out
}

// c1Introducers rewrites 8-bit C1 sequence introducers to their 7-bit
// ESC forms so ansi.Strip removes the whole sequence, parameters included.
var c1Introducers = strings.NewReplacer(
	"\u0090", "\x1bP",
	"\u009b", "\x1b[",
	"\u009c", "\x1b\\",
	"\u009d", "\x1b]",
	"\u009e", "\x1b^",
	"\u009f", "\x1b_",
)

// Sanitize drops ANSI escape sequences and control characters other than
// newline and tab.
func Sanitize(s string) string {
	s = ansi.Strip(c1Introducers.Replace(s))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
