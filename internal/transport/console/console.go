// Package console implements an interactive line-based transport on a
// terminal: one command per line, the reply printed below it.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nadzzz/nagato/internal/message"
	"github.com/nadzzz/nagato/internal/transport"
)

var (
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

// Transport reads commands from in and writes replies to out.
type Transport struct {
	in     io.Reader
	out    io.Writer
	prompt string
	name   string
	styled bool
}

// Option customizes the console.
type Option func(*Transport)

// WithIO replaces stdin and stdout. Output written elsewhere is never styled.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(t *Transport) {
		t.in, t.out = in, out
		t.styled = false
	}
}

// New creates a console transport. Replies are styled when stdout is a
// terminal.
func New(prompt, assistantName string, opts ...Option) *Transport {
	t := &Transport{
		in:     os.Stdin,
		out:    os.Stdout,
		prompt: prompt,
		name:   assistantName,
		styled: term.IsTerminal(int(os.Stdout.Fd())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "console" }

// Listen runs the read-eval-print loop until ctx is cancelled, input ends,
// or the user types exit.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(t.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		readErr <- sc.Err()
	}()

	t.printf("%s\n", t.hint("Type a command, or exit to quit."))
	for {
		t.printf("%s", t.prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("reading console: %w", err)
					}
				default:
				}
				return nil
			}
			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
			t.handle(ctx, handler, line)
		}
	}
}

func (t *Transport) handle(ctx context.Context, handler transport.Handler, line string) {
	reply, err := handler(ctx, &message.Request{Source: "console", Text: line, Timestamp: time.Now()})
	switch {
	case err != nil:
		slog.Error("console command failed", "error", err)
		t.printf("%s\n", t.errorText(err.Error()))
	case reply.Error != "":
		t.printf("%s\n", t.errorText(reply.Error))
	default:
		t.printf("%s %s\n", t.label(), reply.Text)
	}
}

// Close is a no-op; Listen returns when its context ends.
func (t *Transport) Close() error { return nil }

func (t *Transport) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}

func (t *Transport) label() string {
	if t.styled {
		return nameStyle.Render(t.name + ":")
	}
	return t.name + ":"
}

func (t *Transport) errorText(s string) string {
	if t.styled {
		return errorStyle.Render("error: " + s)
	}
	return "error: " + s
}

func (t *Transport) hint(s string) string {
	if t.styled {
		return hintStyle.Render(s)
	}
	return s
}
