// Package chatbot runs the interactive terminal front end of the chat client.
package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"MediChat/internal/chatclient"
	"MediChat/internal/render"
)

// Options wires a ChatBot. Client must use Terminal as its renderer.
type Options struct {
	Client    *chatclient.Client
	Terminal  *render.Terminal
	In        io.Reader
	Out       io.Writer
	Logger    *slog.Logger
	Endpoint  string
	Transport string
	// TurnTimeout bounds each turn; 0 waits until ctx is cancelled
	TurnTimeout time.Duration
}

// ChatBot reads turns from In and shows the conversation on the Terminal
type ChatBot struct {
	client    *chatclient.Client
	term      *render.Terminal
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger
	endpoint  string
	transport string
	timeout   time.Duration
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(opts Options) (*ChatBot, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Terminal == nil {
		return nil, fmt.Errorf("terminal is required")
	}
	if opts.In == nil || opts.Out == nil {
		return nil, fmt.Errorf("input and output are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &ChatBot{
		client:    opts.Client,
		term:      opts.Terminal,
		in:        opts.In,
		out:       opts.Out,
		logger:    opts.Logger,
		endpoint:  opts.Endpoint,
		transport: opts.Transport,
		timeout:   opts.TurnTimeout,
	}, nil
}

// Run reads lines until EOF, /quit or ctx is cancelled
func (cb *ChatBot) Run(ctx context.Context) error {
	sess := cb.client.Session()
	fmt.Fprintln(cb.out, "=== MediChat ===")
	fmt.Fprintf(cb.out, "Session: %s\n", sess.ID)
	if cb.endpoint != "" {
		fmt.Fprintf(cb.out, "Server: %s (%s)\n", cb.endpoint, cb.transport)
	}
	fmt.Fprintln(cb.out, "Describe your symptoms. Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	cb.logger.Info("chat started", "session_id", sess.ID, "endpoint", cb.endpoint, "transport", cb.transport)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cb.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(cb.out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(cb.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(cb.out)
				fmt.Fprintln(cb.out, "Goodbye!")
				return nil
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if cb.handleCommand(input) {
				fmt.Fprintln(cb.out, "Goodbye!")
				return nil
			}
			continue
		}

		if err := cb.send(ctx, input); err != nil {
			return nil
		}
	}
}

// send delivers one turn and waits for it to be applied. A bare option number
// selects that option from the latest set; any other input is sent verbatim.
func (cb *ChatBot) send(parent context.Context, input string) error {
	ctx := parent
	if cb.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, cb.timeout)
		defer cancel()
	}

	var pending *chatclient.Pending
	if n, err := strconv.Atoi(input); err == nil {
		if opt, ok := cb.term.Option(n); ok {
			cb.logger.Debug("option selected", "index", n, "label", opt.Label)
			pending = opt.Select(ctx)
		}
	}
	if pending == nil {
		p, err := cb.client.Submit(ctx, input)
		if err != nil {
			cb.term.Notice(err.Error())
			return nil
		}
		pending = p
	}

	_, err := pending.Wait(ctx)
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}

	var te *chatclient.TransportError
	if errors.Is(err, context.DeadlineExceeded) {
		cb.term.Notice(fmt.Sprintf("the assistant did not answer within %s", cb.timeout))
	} else if errors.As(err, &te) {
		cb.term.Notice("could not reach the assistant: " + te.Error())
	} else {
		cb.term.Notice("request failed: " + err.Error())
	}
	cb.logger.Error("turn failed", "session_id", cb.client.Session().ID, "error", err)
	return nil
}

// handleCommand runs a slash command and reports whether to quit
func (cb *ChatBot) handleCommand(cmd string) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true

	case "/session":
		sess := cb.client.Session()
		fmt.Fprintf(cb.out, "Session: %s (started %s)\n", sess.ID, sess.StartTime.Format("15:04:05"))
		fmt.Fprintf(cb.out, "Entries: %d, state: %s\n", cb.client.Transcript().Len(), cb.client.State())

	case "/history":
		entries := cb.client.Transcript().Entries()
		if len(entries) == 0 {
			cb.term.Notice("nothing yet")
			return false
		}
		cb.term.Replay(entries)
		fmt.Fprintln(cb.out)

	case "/options":
		if !cb.term.ReprintOptions() {
			cb.term.Notice("no options have been offered yet")
		}

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  <n>            - Answer with option n of the latest question")
		fmt.Fprintln(cb.out, "  /options       - Show the latest options again")
		fmt.Fprintln(cb.out, "  /history       - Show the conversation so far")
		fmt.Fprintln(cb.out, "  /session       - Show session details")
		fmt.Fprintln(cb.out, "  /quit, /exit   - Exit the chatbot")
		fmt.Fprintln(cb.out, "  /help          - Show this help message")

	default:
		cb.term.Notice(fmt.Sprintf("unknown command %s, type /help", parts[0]))
	}
	return false
}
