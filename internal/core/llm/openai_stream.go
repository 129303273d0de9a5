package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// openaiTransport streams chat completions over the OpenAI-compatible
// protocol, used by every preset except Anthropic (DeepSeek, Qwen, Zhipu,
// Moonshot and custom endpoints all speak it with a different base URL).
type openaiTransport struct{}

func (openaiTransport) Stream(ctx context.Context, req core.ChatRequest, yield func(text string) error) error {
	opts := []option.RequestOption{option.WithAPIKey(req.Config.APIKey)}
	if req.Config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(req.Config.BaseURL))
	}
	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Messages:    messages,
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			if err := yield(text); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &ProviderError{Provider: req.Config.Provider, Err: err}
	}
	return nil
}
