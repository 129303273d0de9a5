package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// anthropicTransport streams chat completions over the Anthropic messages
// protocol. Unlike the OpenAI-compatible path, the system prompt is not a
// message-list entry but a dedicated request parameter.
type anthropicTransport struct{}

func (anthropicTransport) Stream(ctx context.Context, req core.ChatRequest, yield func(text string) error) error {
	opts := []option.RequestOption{option.WithAPIKey(req.Config.APIKey)}
	if req.Config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(req.Config.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	var systemText string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if systemText == "" {
				systemText = m.Content
			}
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    messages,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	stream := client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := yield(delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &ProviderError{Provider: req.Config.Provider, Err: err}
	}
	return nil
}
