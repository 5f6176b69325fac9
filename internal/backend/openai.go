package backend

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"MediChat/internal/store"
)

// OpenAI calls an OpenAI-compatible chat completions API
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the generator. baseURL is optional and points the client
// at any OpenAI-compatible server.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Name() string {
	return "openai"
}

// Generate calls the chat completions endpoint with deterministic sampling
func (o *OpenAI) Generate(ctx context.Context, system string, history []store.Message) (string, error) {
	msgs := chatMessages(system, history)
	reqMessages := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		reqMessages[i] = openai.ChatCompletionMessage{Role: m["role"], Content: m["content"]}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    reqMessages,
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI: %w", err)
	}

	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("empty response from OpenAI")
}
