// Package store keeps per-session conversation history for the chat server.
package store

import (
	"context"
	"time"
)

// Message is one line of a session's history
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists session history
type Store interface {
	// EnsureSession registers a session and reports whether it was new.
	EnsureSession(ctx context.Context, sessionID, backend string) (bool, error)
	Append(ctx context.Context, sessionID string, msg Message) error
	// History returns the last limit messages in order; limit <= 0 means all.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Close() error
}
