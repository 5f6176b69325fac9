package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps history in process memory, trimmed to maxMessages per session.
type Memory struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
}

// NewMemory creates a memory store; maxMessages <= 0 keeps everything
func NewMemory(maxMessages int) *Memory {
	return &Memory{
		sessions:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

func (m *Memory) EnsureSession(_ context.Context, sessionID, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		return false, nil
	}
	m.sessions[sessionID] = []Message{}
	return true, nil
}

func (m *Memory) Append(_ context.Context, sessionID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	m.trimLocked(sessionID)
	return nil
}

func (m *Memory) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		m.sessions[sessionID] = msgs[len(msgs)-m.maxMessages:]
	}
}
