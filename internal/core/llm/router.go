package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatlas-ai/chatlas/internal/core"
)

// ErrMissingAPIKey means the resolved owner configuration has no key; the
// remedy is the owner's settings page, not a retry.
var ErrMissingAPIKey = errors.New("API key is not configured. Please set it in Settings")

// ProviderError wraps a vendor call failure with the provider id.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var _ core.ChatTransport = (*Router)(nil)

// Router dispatches a chat request to the transport matching the
// configured provider's protocol. The transport set is closed: an
// Anthropic messages stream, or the OpenAI-compatible chat-completions
// stream for everything else.
type Router struct {
	openai    openaiTransport
	anthropic anthropicTransport
}

func NewRouter() *Router {
	return &Router{}
}

// Stream selects the transport purely from the provider id and yields
// deltas in vendor order.
func (r *Router) Stream(ctx context.Context, req core.ChatRequest, yield func(text string) error) error {
	if req.Config.APIKey == "" {
		return ErrMissingAPIKey
	}
	return r.transportFor(req.Config.Provider).Stream(ctx, req, yield)
}

func (r *Router) transportFor(providerID string) core.ChatTransport {
	if preset, ok := PresetByID(providerID); ok && preset.UseAnthropicSDK {
		return r.anthropic
	}
	return r.openai
}
