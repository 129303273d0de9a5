package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatlas-ai/chatlas/internal/core"
)

func TestRouterStream(t *testing.T) {
	t.Run("missing api key aborts before any transport call", func(t *testing.T) {
		r := NewRouter()
		err := r.Stream(context.Background(), core.ChatRequest{
			Config: core.AIConfig{Provider: "openai"},
		}, func(string) error {
			t.Fatal("yield must not be called")
			return nil
		})
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}

func TestTransportSelection(t *testing.T) {
	r := NewRouter()

	t.Run("anthropic preset uses the messages transport", func(t *testing.T) {
		assert.IsType(t, anthropicTransport{}, r.transportFor("anthropic"))
	})

	t.Run("openai compatible presets use chat completions", func(t *testing.T) {
		for _, id := range []string{"openai", "deepseek", "qwen", "zhipu", "moonshot", "custom"} {
			assert.IsType(t, openaiTransport{}, r.transportFor(id), id)
		}
	})

	t.Run("unknown provider falls back to chat completions", func(t *testing.T) {
		assert.IsType(t, openaiTransport{}, r.transportFor("not-a-provider"))
	})
}

func TestProviderPresets(t *testing.T) {
	t.Run("every preset resolves by id", func(t *testing.T) {
		for _, p := range ProviderPresets {
			got, ok := PresetByID(p.ID)
			assert.True(t, ok)
			assert.Equal(t, p.Name, got.Name)
		}
	})

	t.Run("only anthropic speaks the messages protocol", func(t *testing.T) {
		for _, p := range ProviderPresets {
			assert.Equal(t, p.ID == "anthropic", p.UseAnthropicSDK, p.ID)
		}
	})

	t.Run("unknown id not found", func(t *testing.T) {
		_, ok := PresetByID("gemini")
		assert.False(t, ok)
	})
}

func TestProviderError(t *testing.T) {
	inner := assert.AnError
	err := &ProviderError{Provider: "deepseek", Err: inner}
	assert.Contains(t, err.Error(), "deepseek API error")
	assert.ErrorIs(t, err, inner)
}
