package chatbot

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediChat/internal/chatclient"
	"MediChat/internal/protocol"
	"MediChat/internal/render"
)

type scriptedTransport struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []string
}

func (s *scriptedTransport) Exchange(_ context.Context, req protocol.ChatRequest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.Message)
	body, ok := s.bodies[req.Message]
	if !ok {
		return nil, &chatclient.TransportError{Op: "POST /chat", StatusCode: 503, Body: "down"}
	}
	return []byte(body), nil
}

func runBot(t *testing.T, tr chatclient.Transport, input string) string {
	t.Helper()
	var out bytes.Buffer
	term := render.NewTerminal(&out)
	client := chatclient.New(chatclient.Options{Transport: tr, Renderer: term})

	bot, err := NewChatBot(Options{
		Client:   client,
		Terminal: term,
		In:       strings.NewReader(input),
		Out:      &out,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bot.Run(ctx))
	return out.String()
}

func TestRun_FollowUpThenDiagnosis(t *testing.T) {
	tr := &scriptedTransport{bodies: map[string]string{
		"I have a cough": `{"structured":{"question":"Do you have a fever?","options":["Yes","No"]}}`,
		"No": `{"structured":{"diagnosis":"Common cold","explanation":"A viral infection.",` +
			`"resources":["https://www.cdc.gov/common-cold/index.html"]}}`,
	}}

	out := runBot(t, tr, "I have a cough\n2\n/quit\n")

	assert.Equal(t, []string{"I have a cough", "No"}, tr.requests)
	assert.Contains(t, out, "Do you have a fever?")
	assert.Contains(t, out, "[1] Yes")
	assert.Contains(t, out, "[2] No")
	assert.Contains(t, out, "Diagnosis: Common cold")
	assert.Contains(t, out, "A viral infection.")
	assert.Contains(t, out, "https://www.cdc.gov/common-cold/index.html")
	assert.Contains(t, out, "Goodbye!")
}

func TestRun_NumberWithoutOptionsIsSentAsText(t *testing.T) {
	tr := &scriptedTransport{bodies: map[string]string{"3": `{"reply":"Three days, noted."}`}}

	out := runBot(t, tr, "3\n")

	assert.Equal(t, []string{"3"}, tr.requests)
	assert.Contains(t, out, "Three days, noted.")
}

func TestRun_TransportErrorShowsNotice(t *testing.T) {
	tr := &scriptedTransport{bodies: map[string]string{}}

	out := runBot(t, tr, "hello\n/session\n")

	assert.Contains(t, out, "could not reach the assistant")
	assert.Contains(t, out, "server returned 503")
	assert.Contains(t, out, "state: idle")
}

func TestRun_Commands(t *testing.T) {
	tr := &scriptedTransport{bodies: map[string]string{
		"hi": `{"structured":{"question":"Where does it hurt?","options":["Head","Chest"]}}`,
	}}

	out := runBot(t, tr, "/options\nhi\n/options\n/history\n/help\n/bogus\n/exit\nnever sent\n")

	assert.Equal(t, []string{"hi"}, tr.requests)
	assert.Contains(t, out, "no options have been offered yet")
	assert.Equal(t, 3, strings.Count(out, "[1] Head"), "offered, /options, /history")
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "unknown command /bogus")
}

func TestRun_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	term := render.NewTerminal(&out)
	client := chatclient.New(chatclient.Options{Transport: &scriptedTransport{}, Renderer: term})
	bot, err := NewChatBot(Options{Client: client, Terminal: term, In: pr, Out: &out})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewChatBot_Validation(t *testing.T) {
	_, err := NewChatBot(Options{})
	assert.Error(t, err)
}
