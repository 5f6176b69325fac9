// Package chatclient sends user turns to the /chat endpoint and applies the
// classified replies to a transcript and a renderer.
//
// Turns may overlap: each SendTurn runs its exchange on its own goroutine and
// replies are applied in the order they complete, not the order they were
// sent. There is no request correlation, so a slow first reply can land
// after a fast second one.
package chatclient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"MediChat/internal/interpret"
	"MediChat/internal/protocol"
	"MediChat/internal/session"
)

// Transport performs one request/response exchange and returns the raw body.
type Transport interface {
	Exchange(ctx context.Context, req protocol.ChatRequest) ([]byte, error)
}

// Renderer draws transcript entries.
type Renderer interface {
	AppendEntry(e session.Entry)
	AppendActions(opts []Option)
	AppendLinks(links []session.Entry)
	ScrollToLatest()
}

// State of the client's turn loop
type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// Options configures a Client. Transport is required.
type Options struct {
	Transport Transport
	Renderer  Renderer
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Meter     metric.Meter
}

// Client owns the session identity and the transcript.
type Client struct {
	session    session.Session
	transcript *session.Transcript
	transport  Transport
	renderer   Renderer
	logger     *slog.Logger
	tracer     trace.Tracer

	duration  metric.Float64Histogram
	responses metric.Int64Counter

	// applyMu keeps the entries of one reply contiguous
	applyMu  sync.Mutex
	inflight atomic.Int32
}

// New creates a client with a fresh session
func New(opts Options) *Client {
	c := &Client{
		session:    session.New(),
		transcript: session.NewTranscript(),
		transport:  opts.Transport,
		renderer:   opts.Renderer,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}
	if c.renderer == nil {
		c.renderer = nopRenderer{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("medichat")
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("medichat")
	}

	var err error
	c.duration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Chat exchange duration in milliseconds"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	c.responses, err = meter.Int64Counter(
		"medichat.responses",
		metric.WithDescription("Classified chat responses by kind"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}

	c.logger.Info("created new session", "session_id", c.session.ID)
	return c
}

// Session returns the client's session
func (c *Client) Session() session.Session {
	return c.session
}

// Transcript returns the client's transcript
func (c *Client) Transcript() *session.Transcript {
	return c.transcript
}

// State reports whether any turn is still waiting for its reply.
func (c *Client) State() State {
	if c.inflight.Load() > 0 {
		return AwaitingResponse
	}
	return Idle
}

// Submit sends user-typed text. Input that is empty after trimming returns
// session.ErrEmptyTurn and nothing is appended or sent.
func (c *Client) Submit(ctx context.Context, text string) (*Pending, error) {
	turn, err := session.NormalizeTurn(text)
	if err != nil {
		return nil, err
	}
	return c.SendTurn(ctx, turn), nil
}

// SendTurn appends text as a user entry and starts the exchange. The text is
// sent exactly as given.
func (c *Client) SendTurn(ctx context.Context, text string) *Pending {
	c.applyMu.Lock()
	e := c.transcript.Append(session.Entry{Role: session.RoleUser, Kind: session.KindText, Text: text})
	c.renderer.AppendEntry(e)
	c.renderer.ScrollToLatest()
	c.applyMu.Unlock()

	p := &Pending{Turn: text, done: make(chan struct{})}
	c.inflight.Add(1)
	go c.exchange(ctx, p)
	return p
}

func (c *Client) exchange(ctx context.Context, p *Pending) {
	defer close(p.done)
	defer c.inflight.Add(-1)

	ctx, span := c.tracer.Start(ctx, "chat_turn")
	defer span.End()

	start := time.Now()
	body, err := c.transport.Exchange(ctx, protocol.ChatRequest{
		SessionID: c.session.ID,
		Message:   p.Turn,
	})
	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		p.err = asTransportError(err)
		c.logger.Error("failed to send message", "session_id", c.session.ID, "error", err)
		return
	}

	instr, err := interpret.ClassifyBody(body)
	if err != nil {
		c.logger.Warn("discarding undecodable response", "session_id", c.session.ID, "error", err)
	}
	span.SetAttributes(attribute.String("medichat.kind", string(instr.Kind())))
	if c.responses != nil {
		c.responses.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(instr.Kind()))))
	}

	c.apply(instr)
	p.instr = instr
}

func (c *Client) apply(instr interpret.Instruction) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	switch in := instr.(type) {
	case interpret.FollowUp:
		c.appendBotText(in.Question)
		if len(in.Options) > 0 {
			c.transcript.Append(session.Entry{Role: session.RoleBot, Kind: session.KindActions, Options: in.Options})
			opts := make([]Option, len(in.Options))
			for i, label := range in.Options {
				opts[i] = Option{Label: label, client: c}
			}
			c.renderer.AppendActions(opts)
		}

	case interpret.Diagnosis:
		e := c.transcript.Append(session.Entry{Role: session.RoleBot, Kind: session.KindText, Text: in.Summary(), Diagnosis: true})
		c.renderer.AppendEntry(e)
		if len(in.Resources) > 0 {
			links := make([]session.Entry, len(in.Resources))
			for i, url := range in.Resources {
				links[i] = c.transcript.Append(session.Entry{Role: session.RoleBot, Kind: session.KindLink, URL: url})
			}
			c.renderer.AppendLinks(links)
		}

	case interpret.PlainReply:
		c.appendBotText(in.Text)

	default:
		return
	}
	c.renderer.ScrollToLatest()
}

func (c *Client) appendBotText(text string) {
	e := c.transcript.Append(session.Entry{Role: session.RoleBot, Kind: session.KindText, Text: text})
	c.renderer.AppendEntry(e)
}

// Option is one selectable follow-up answer. Selecting it sends its label as
// a new turn on the client that rendered it.
type Option struct {
	Label  string
	client *Client
}

// Select sends the option's label without trimming or validation.
func (o Option) Select(ctx context.Context) *Pending {
	return o.client.SendTurn(ctx, o.Label)
}

// Pending is the result of a turn that may still be in flight.
type Pending struct {
	Turn  string
	done  chan struct{}
	instr interpret.Instruction
	err   error
}

// Done is closed once the reply has been applied or the exchange failed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the turn completes or ctx ends. A transport failure is
// returned as *TransportError; an undecodable body yields interpret.None.
func (p *Pending) Wait(ctx context.Context) (interpret.Instruction, error) {
	select {
	case <-p.done:
		if p.err != nil {
			return nil, p.err
		}
		return p.instr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type nopRenderer struct{}

func (nopRenderer) AppendEntry(session.Entry)   {}
func (nopRenderer) AppendActions([]Option)      {}
func (nopRenderer) AppendLinks([]session.Entry) {}
func (nopRenderer) ScrollToLatest()             {}
