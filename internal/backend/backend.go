// Package backend produces the assistant's raw output for a conversation.
// Output is either a JSON object (a follow-up question or a diagnosis) or
// plain text; the caller decides which.
package backend

import (
	"context"

	"MediChat/internal/store"
)

// Generator produces the next assistant output for a history
type Generator interface {
	Name() string
	Generate(ctx context.Context, system string, history []store.Message) (string, error)
}

// History roles as stored and sent to chat APIs
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func chatMessages(system string, history []store.Message) []map[string]string {
	out := make([]map[string]string, 0, len(history)+1)
	if system != "" {
		out = append(out, map[string]string{"role": RoleSystem, "content": system})
	}
	for _, msg := range history {
		out = append(out, map[string]string{"role": msg.Role, "content": msg.Content})
	}
	return out
}
