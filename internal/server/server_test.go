package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediChat/internal/assistant"
	"MediChat/internal/backend"
	"MediChat/internal/chatclient"
	"MediChat/internal/interpret"
	"MediChat/internal/protocol"
	"MediChat/internal/store"
	"MediChat/internal/transport"
)

type fakeReplier struct {
	resp protocol.Response
	err  error
	got  []protocol.ChatRequest
}

func (f *fakeReplier) Reply(_ context.Context, sessionID, message string) (protocol.Response, error) {
	f.got = append(f.got, protocol.ChatRequest{SessionID: sessionID, Message: message})
	return f.resp, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_Reply(t *testing.T) {
	rep := &fakeReplier{resp: protocol.Response{Reply: "Hello!"}}
	s := New(rep, "*", testLogger())

	rec := postChat(t, s.Router(), `{"session_id":"s-1","message":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"reply":"Hello!"}`, rec.Body.String())
	assert.Equal(t, []protocol.ChatRequest{{SessionID: "s-1", Message: "hi"}}, rep.got)
}

func TestHandleChat_Structured(t *testing.T) {
	rep := &fakeReplier{resp: protocol.Response{Structured: map[string]any{"question": "Fever?", "options": []any{"Yes", "No"}}}}
	s := New(rep, "*", testLogger())

	rec := postChat(t, s.Router(), `{"session_id":"s-1","message":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"structured":{"question":"Fever?","options":["Yes","No"]}}`, rec.Body.String())
}

func TestHandleChat_BadJSON(t *testing.T) {
	s := New(&fakeReplier{}, "*", testLogger())

	rec := postChat(t, s.Router(), `not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())
}

func TestHandleChat_InvalidRequest(t *testing.T) {
	s := New(&fakeReplier{err: assistant.ErrInvalidRequest}, "*", testLogger())

	rec := postChat(t, s.Router(), `{"session_id":"","message":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_id and message are required")
}

func TestHandleChat_GeneratorFailure(t *testing.T) {
	s := New(&fakeReplier{err: errors.New("upstream down")}, "*", testLogger())

	rec := postChat(t, s.Router(), `{"session_id":"s","message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "upstream down")
}

func TestHandleHealth(t *testing.T) {
	s := New(&fakeReplier{}, "", testLogger())
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	s := New(&fakeReplier{}, "http://localhost:3000", testLogger())
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.WSPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleChatWS(t *testing.T) {
	rep := &fakeReplier{resp: protocol.Response{Reply: "Hello!"}}
	srv := httptest.NewServer(New(rep, "*", testLogger()).Router())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"invalid JSON frame"}`, string(data))

	require.NoError(t, conn.WriteJSON(protocol.ChatRequest{SessionID: "s-1", Message: "hi"}))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"Hello!"}`, string(data))
}

func TestHandleChatWS_RejectsOrigin(t *testing.T) {
	srv := httptest.NewServer(New(&fakeReplier{}, "http://allowed.example", testLogger()).Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.WSPath
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// End to end: the client drives the scripted triage through both transports.
func TestEndToEnd_ScriptedTriage(t *testing.T) {
	svc, err := assistant.New(assistant.Options{
		Store:     store.NewMemory(0),
		Generator: backend.NewScripted(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(New(svc, "*", testLogger()).Router())
	defer srv.Close()

	httpTr, err := transport.NewHTTP(srv.URL, 5*time.Second, testLogger())
	require.NoError(t, err)
	wsTr, err := transport.NewWebSocket(srv.URL, testLogger())
	require.NoError(t, err)
	defer wsTr.Close()

	for name, tr := range map[string]chatclient.Transport{"http": httpTr, "ws": wsTr} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client := chatclient.New(chatclient.Options{Transport: tr})

			instr, err := client.SendTurn(ctx, "I have a headache").Wait(ctx)
			require.NoError(t, err)
			fu, ok := instr.(interpret.FollowUp)
			require.True(t, ok)
			require.NotEmpty(t, fu.Options)

			instr, err = client.SendTurn(ctx, fu.Options[1]).Wait(ctx)
			require.NoError(t, err)
			fu, ok = instr.(interpret.FollowUp)
			require.True(t, ok)

			instr, err = client.SendTurn(ctx, fu.Options[1]).Wait(ctx)
			require.NoError(t, err)
			dx, ok := instr.(interpret.Diagnosis)
			require.True(t, ok)
			assert.Equal(t, "Tension-type headache", dx.Diagnosis)

			instr, err = client.SendTurn(ctx, "thanks").Wait(ctx)
			require.NoError(t, err)
			assert.IsType(t, interpret.PlainReply{}, instr)
		})
	}
}
