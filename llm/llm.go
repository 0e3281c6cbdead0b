// Package llm handles communication with the text-generation backend and
// defensive extraction of JSON from free-text model output.
package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Message is one role-tagged prompt entry.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// Provider is the interface for text-generation backends.
type Provider interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// openaiProvider implements Provider using the OpenAI SDK.
type openaiProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a Provider backed by the OpenAI chat completions
// API.
func NewOpenAIProvider(apiKey, model string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: OPENAI_API_KEY not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiProvider{client: client, model: model}, nil
}

// unavailableProvider satisfies Provider when no backend is configured.
type unavailableProvider struct {
	err error
}

// NewUnavailableProvider returns a Provider whose calls always fail with the
// given reason. Callers then degrade through their usual fallback paths.
func NewUnavailableProvider(reason string) Provider {
	return &unavailableProvider{err: fmt.Errorf("llm: %s", reason)}
}

func (p *unavailableProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	return "", p.err
}

func (p *openaiProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat.completions.new: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("openai: response contained no content")
	}
	return content, nil
}
