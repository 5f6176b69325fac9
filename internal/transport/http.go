// Package transport implements chatclient.Transport over plain HTTP and over
// a WebSocket connection.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"MediChat/internal/chatclient"
	"MediChat/internal/protocol"
)

// maxErrorBody caps how much of a failed response is kept in the error
const maxErrorBody = 512

// HTTP posts each turn to {endpoint}/chat
type HTTP struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTP creates an HTTP transport. A zero timeout means requests only end
// when their context does.
func NewHTTP(endpoint string, timeout time.Duration, logger *slog.Logger) (*HTTP, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	t := &HTTP{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	logger.Info("created HTTP transport", "url", t.endpoint+protocol.ChatPath)
	return t, nil
}

// Exchange sends one turn and returns the raw response body
func (t *HTTP) Exchange(ctx context.Context, req protocol.ChatRequest) ([]byte, error) {
	op := "post " + protocol.ChatPath

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+protocol.ChatPath, bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, &chatclient.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &chatclient.TransportError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &chatclient.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &chatclient.TransportError{
			Op:         op,
			StatusCode: httpResp.StatusCode,
			Body:       excerpt(body),
		}
	}

	t.logger.Debug("chat exchange complete", "session_id", req.SessionID, "status", httpResp.StatusCode, "bytes", len(body))
	return body, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
