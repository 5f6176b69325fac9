package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"MediChat/internal/chatclient"
	"MediChat/internal/protocol"
)

// WebSocket sends turns over a single WebSocket connection. Each exchange
// writes one request frame and reads one response frame, so exchanges on the
// same connection are serialized.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocket creates a WebSocket transport for an http(s) or ws(s)
// endpoint. The connection is dialed on first use.
func NewWebSocket(endpoint string, logger *slog.Logger) (*WebSocket, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	wsURL, err := websocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	logger.Info("created WebSocket transport", "url", wsURL)
	return &WebSocket{
		url:    wsURL,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}, nil
}

// Exchange sends one turn and returns the raw response frame
func (t *WebSocket) Exchange(ctx context.Context, req protocol.ChatRequest) ([]byte, error) {
	op := "ws " + protocol.WSPath

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, &chatclient.TransportError{Op: op, Err: fmt.Errorf("transport is closed")}
	}

	conn, err := t.connLocked(ctx)
	if err != nil {
		return nil, &chatclient.TransportError{Op: op, Err: err}
	}

	// a cancelled turn tears the connection down; the next turn redials
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		t.dropLocked()
		return nil, &chatclient.TransportError{Op: op, Err: fmt.Errorf("failed to write request: %w", err)}
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.dropLocked()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &chatclient.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var errResp protocol.ErrorResponse
	if json.Unmarshal(frame, &errResp) == nil && errResp.Error != "" {
		return nil, &chatclient.TransportError{Op: op, Body: errResp.Error, Err: fmt.Errorf("server error: %s", errResp.Error)}
	}

	return frame, nil
}

// Close sends a close frame and releases the connection
func (t *WebSocket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.conn != nil {
		_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.conn.Close()
		t.conn = nil
	}

	t.logger.Info("closed WebSocket transport", "url", t.url)
	return nil
}

func (t *WebSocket) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *WebSocket) dropLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

func websocketURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + protocol.WSPath
	return u.String(), nil
}
