package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/models"
	"github.com/fatih/color"
)

// repl is the line-oriented chat. It renders only from Store contents:
// every message with a sequence number above lastSeq is printed once.
type repl struct {
	dispatcher *conversation.Dispatcher
	in         io.Reader
	out        io.Writer
	model      string
	lastSeq    int

	boldGreen func(a ...interface{}) string
	boldCyan  func(a ...interface{}) string
	red       func(a ...interface{}) string
	faint     func(a ...interface{}) string
}

func newREPL(d *conversation.Dispatcher, in io.Reader, out io.Writer) *repl {
	return &repl{
		dispatcher: d,
		in:         in,
		out:        out,
		boldGreen:  color.New(color.FgGreen, color.Bold).SprintFunc(),
		boldCyan:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		red:        color.New(color.FgRed).SprintFunc(),
		faint:      color.New(color.Faint).SprintFunc(),
	}
}

// Run reads lines until EOF, "exit" or ctx is cancelled
func (r *repl) Run(ctx context.Context) error {
	r.printBanner()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(r.out, r.boldGreen("You: "))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\nShutting down...")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return <-readErr
			}
			line = l
		}

		if quit := r.handle(ctx, line); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether to quit
func (r *repl) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)

	switch {
	case strings.EqualFold(input, "exit"):
		return true
	case input == "/actions":
		r.printActions()
		return false
	case input == "/history":
		r.printHistory()
		return false
	case input == "/quick" || strings.HasPrefix(input, "/quick "):
		id := strings.TrimSpace(strings.TrimPrefix(input, "/quick"))
		prompt := conversation.ResolveActionPrompt(id)
		fmt.Fprintln(r.out, r.faint("> "+prompt))
		r.turn(ctx, prompt)
		return false
	case input == "":
		// same as a disabled send button
		return false
	}

	r.turn(ctx, line)
	return false
}

func (r *repl) turn(ctx context.Context, utterance string) {
	fmt.Fprintln(r.out, r.faint("thinking..."))

	_, err := r.dispatcher.Turn(ctx, utterance)
	if errors.Is(err, conversation.ErrTurnInFlight) || errors.Is(err, conversation.ErrSessionClosed) {
		fmt.Fprintln(r.out, r.red(err.Error()))
		return
	}

	r.render()
}

// render prints the messages added since the last call. User messages were
// already typed at the prompt, so only assistant messages are echoed.
func (r *repl) render() {
	for _, msg := range r.dispatcher.Store().Messages() {
		if msg.Seq <= r.lastSeq {
			continue
		}
		r.lastSeq = msg.Seq
		if msg.Origin == models.OriginUser {
			continue
		}

		text := msg.Text
		if msg.Failed {
			text = r.red(text)
		}
		fmt.Fprintf(r.out, "%s%s\n\n", r.boldCyan("Assistant: "), text)
	}
}

func (r *repl) printBanner() {
	fmt.Fprintln(r.out, r.boldGreen("✦ Welcome Back"))
	if r.model != "" {
		fmt.Fprintf(r.out, "Using model: %s\n", r.boldCyan(r.model))
	}
	if r.dispatcher.Store().CurrentMode() == models.ModeLanding {
		fmt.Fprintln(r.out, "Type a message, or start with one of these (/quick <id>):")
		r.printActions()
	}
	fmt.Fprintln(r.out, "Type 'exit' or press Ctrl+C to quit.")
	fmt.Fprintln(r.out)
}

func (r *repl) printActions() {
	for _, a := range conversation.Actions() {
		fmt.Fprintf(r.out, "  %-11s %s\n", a.ID, r.faint(a.Prompt))
	}
}

func (r *repl) printHistory() {
	history := r.dispatcher.Store().SnapshotWireHistory()
	fmt.Fprintf(r.out, "%d turns sent as context on the next request\n", len(history))
	for _, turn := range history {
		fmt.Fprintf(r.out, "  %-9s %s\n", turn.Role, turn.Content)
	}
}
